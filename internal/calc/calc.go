// Package calc holds the pure arithmetic of the pipeline. Every function
// treats an invalid decimal.NullDecimal as "missing" and answers with an
// invalid one when the metric cannot be computed.
package calc

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kjannette/fiindo-etl/internal/models"
)

// DivisionPrecision is the number of fractional digits kept by divisions.
const DivisionPrecision = 28

var null = decimal.NullDecimal{}

func valid(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NewNullDecimal(d)
}

// PERatio is price / eps. Zero or missing eps yields NULL; a negative eps is
// divided like any other value.
func PERatio(price, eps decimal.NullDecimal) decimal.NullDecimal {
	if !price.Valid || !eps.Valid || eps.Decimal.IsZero() {
		return null
	}
	return valid(price.Decimal.DivRound(eps.Decimal, DivisionPrecision))
}

// RevenueGrowth is (prev - prev2) / prev2, NULL when prev2 is zero or either
// input is missing.
func RevenueGrowth(prev, prev2 decimal.NullDecimal) decimal.NullDecimal {
	if !prev.Valid || !prev2.Valid || prev2.Decimal.IsZero() {
		return null
	}
	return valid(prev.Decimal.Sub(prev2.Decimal).DivRound(prev2.Decimal, DivisionPrecision))
}

// IndustryAverage is the arithmetic mean of the valid values together with
// how many values contributed. With no valid values the mean is NULL and the
// count 0.
func IndustryAverage(values []decimal.NullDecimal) (decimal.NullDecimal, int) {
	sum, n := decimal.Zero, 0
	for _, v := range values {
		if !v.Valid {
			continue
		}
		sum = sum.Add(v.Decimal)
		n++
	}
	if n == 0 {
		return null, 0
	}
	return valid(sum.DivRound(decimal.NewFromInt(int64(n)), DivisionPrecision)), n
}

// NetIncomeTTM sums exactly four quarters; anything else is NULL.
func NetIncomeTTM(quarters []decimal.NullDecimal) decimal.NullDecimal {
	if len(quarters) != 4 {
		return null
	}
	sum := decimal.Zero
	for _, q := range quarters {
		if !q.Valid {
			return null
		}
		sum = sum.Add(q.Decimal)
	}
	return valid(sum)
}

// DebtRatio is total debt / total equity, NULL on zero or missing equity.
func DebtRatio(debt, equity decimal.NullDecimal) decimal.NullDecimal {
	if !debt.Valid || !equity.Valid || equity.Decimal.IsZero() {
		return null
	}
	return valid(debt.Decimal.DivRound(equity.Decimal, DivisionPrecision))
}

// Sum adds the valid values; NULL when there are none.
func Sum(values []decimal.NullDecimal) decimal.NullDecimal {
	sum, seen := decimal.Zero, false
	for _, v := range values {
		if v.Valid {
			sum = sum.Add(v.Decimal)
			seen = true
		}
	}
	if !seen {
		return null
	}
	return valid(sum)
}

// ComputeStatistic runs every per-ticker calculation on f.
func ComputeStatistic(f *models.TickerFinancials, runID string, now time.Time) (models.TickerStatistic, error) {
	if f == nil || f.Symbol == "" || f.Industry == "" {
		return models.TickerStatistic{}, ErrIncomplete
	}
	if !f.Price.Valid {
		return models.TickerStatistic{}, ErrIncomplete
	}

	return models.TickerStatistic{
		Symbol:        f.Symbol,
		Industry:      f.Industry,
		PeriodEnd:     f.PeriodEnd,
		PERatio:       PERatio(f.Price, f.EPS),
		RevenueGrowth: RevenueGrowth(f.RevenuePrev, f.RevenuePrev2),
		NetIncomeTTM:  NetIncomeTTM(f.NetIncomeQuarters),
		DebtRatio:     DebtRatio(f.TotalDebt, f.TotalEquity),
		RunID:         runID,
		ComputedAt:    now,
	}, nil
}

// AggregateIndustries groups stats by industry and averages each metric.
// The result is ordered by industry name.
func AggregateIndustries(stats []models.TickerStatistic, runID string, now time.Time) []models.IndustryAggregate {
	byIndustry := make(map[string][]models.TickerStatistic)
	for _, s := range stats {
		byIndustry[s.Industry] = append(byIndustry[s.Industry], s)
	}

	industries := make([]string, 0, len(byIndustry))
	for ind := range byIndustry {
		industries = append(industries, ind)
	}
	sort.Strings(industries)

	out := make([]models.IndustryAggregate, 0, len(industries))
	for _, ind := range industries {
		group := byIndustry[ind]
		pes := make([]decimal.NullDecimal, len(group))
		growths := make([]decimal.NullDecimal, len(group))
		incomes := make([]decimal.NullDecimal, len(group))
		for i, s := range group {
			pes[i] = s.PERatio
			growths[i] = s.RevenueGrowth
			incomes[i] = s.NetIncomeTTM
		}

		avgPE, peCount := IndustryAverage(pes)
		avgGrowth, growthCount := IndustryAverage(growths)

		out = append(out, models.IndustryAggregate{
			Industry:       ind,
			AvgPE:          avgPE,
			PECount:        peCount,
			AvgGrowth:      avgGrowth,
			GrowthCount:    growthCount,
			TickerCount:    len(group),
			TotalNetIncome: Sum(incomes),
			RunID:          runID,
			ComputedAt:     now,
		})
	}
	return out
}
