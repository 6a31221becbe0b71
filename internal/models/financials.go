package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TickerFinancials is the per-symbol input to the calculations. It is built
// from several API responses and never persisted as-is.
type TickerFinancials struct {
	Symbol    string     `json:"symbol" validate:"required"`
	Industry  string     `json:"industry" validate:"required"`
	PeriodEnd *time.Time `json:"periodEnd,omitempty"`

	Price decimal.NullDecimal `json:"price" validate:"required"`
	EPS   decimal.NullDecimal `json:"eps"`

	// RevenuePrev is the latest reported quarter, RevenuePrev2 the one before it.
	RevenuePrev  decimal.NullDecimal `json:"revenuePrev"`
	RevenuePrev2 decimal.NullDecimal `json:"revenuePrev2"`

	// Newest first, at most four entries.
	NetIncomeQuarters []decimal.NullDecimal `json:"netIncomeQuarters,omitempty"`

	TotalDebt   decimal.NullDecimal `json:"totalDebt"`
	TotalEquity decimal.NullDecimal `json:"totalEquity"`
}
