package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TickerStatistic is one row of per-symbol output. Decimal columns are
// stored as text under gorm so SQLite keeps full precision; Postgres uses
// NUMERIC via its own schema.
type TickerStatistic struct {
	Symbol        string              `json:"symbol" gorm:"column:symbol;primaryKey"`
	Industry      string              `json:"industry" gorm:"column:industry;not null;index"`
	PeriodEnd     *time.Time          `json:"periodEnd,omitempty" gorm:"column:period_end;type:date"`
	PERatio       decimal.NullDecimal `json:"peRatio" gorm:"column:pe_ratio;type:text"`
	RevenueGrowth decimal.NullDecimal `json:"revenueGrowth" gorm:"column:revenue_growth;type:text"`
	NetIncomeTTM  decimal.NullDecimal `json:"netIncomeTtm" gorm:"column:net_income_ttm;type:text"`
	DebtRatio     decimal.NullDecimal `json:"debtRatio" gorm:"column:debt_ratio;type:text"`
	RunID         string              `json:"runId" gorm:"column:run_id;not null"`
	ComputedAt    time.Time           `json:"computedAt" gorm:"column:computed_at;not null"`
}

func (TickerStatistic) TableName() string { return "ticker_statistics" }

// IndustryAggregate holds the per-industry means. PECount and GrowthCount
// are the number of tickers that contributed to each average; an average
// is NULL exactly when its count is zero.
type IndustryAggregate struct {
	Industry       string              `json:"industry" gorm:"column:industry;primaryKey"`
	AvgPE          decimal.NullDecimal `json:"avgPe" gorm:"column:avg_pe;type:text"`
	PECount        int                 `json:"peCount" gorm:"column:pe_count;not null"`
	AvgGrowth      decimal.NullDecimal `json:"avgGrowth" gorm:"column:avg_growth;type:text"`
	GrowthCount    int                 `json:"growthCount" gorm:"column:growth_count;not null"`
	TickerCount    int                 `json:"tickerCount" gorm:"column:ticker_count;not null"`
	TotalNetIncome decimal.NullDecimal `json:"totalNetIncome" gorm:"column:total_net_income;type:text"`
	RunID          string              `json:"runId" gorm:"column:run_id;not null"`
	ComputedAt     time.Time           `json:"computedAt" gorm:"column:computed_at;not null"`
}

func (IndustryAggregate) TableName() string { return "industry_aggregates" }
