package calc

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjannette/fiindo-etl/internal/models"
)

func d(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func assertDec(t *testing.T, want string, got decimal.NullDecimal) {
	t.Helper()
	require.True(t, got.Valid, "expected %s, got NULL", want)
	assert.True(t, got.Decimal.Equal(decimal.RequireFromString(want)), "expected %s, got %s", want, got.Decimal)
}

// --- PERatio ---

func TestPERatio(t *testing.T) {
	assertDec(t, "20", PERatio(d("100"), d("5")))
}

func TestPERatio_ZeroEPS(t *testing.T) {
	for _, price := range []string{"0", "1", "-3.5", "1000000"} {
		assert.False(t, PERatio(d(price), d("0")).Valid, "price %s", price)
	}
}

func TestPERatio_MissingInputs(t *testing.T) {
	assert.False(t, PERatio(d("100"), null).Valid)
	assert.False(t, PERatio(null, d("5")).Valid)
}

func TestPERatio_NegativeEPSPassesThrough(t *testing.T) {
	assertDec(t, "-25", PERatio(d("50"), d("-2")))
}

func TestPERatio_KeepsPrecision(t *testing.T) {
	got := PERatio(d("10"), d("3"))
	require.True(t, got.Valid)
	assert.Equal(t, "3.3333333333333333333333333333", got.Decimal.String())
}

// --- RevenueGrowth ---

func TestRevenueGrowth(t *testing.T) {
	assertDec(t, "0.1", RevenueGrowth(d("110"), d("100")))
	assertDec(t, "-0.5", RevenueGrowth(d("50"), d("100")))
}

func TestRevenueGrowth_ZeroPrevious(t *testing.T) {
	for _, prev := range []string{"0", "10", "-10"} {
		assert.False(t, RevenueGrowth(d(prev), d("0")).Valid, "prev %s", prev)
	}
}

func TestRevenueGrowth_Missing(t *testing.T) {
	assert.False(t, RevenueGrowth(null, d("100")).Valid)
	assert.False(t, RevenueGrowth(d("100"), null).Valid)
}

// --- IndustryAverage ---

func TestIndustryAverage(t *testing.T) {
	avg, n := IndustryAverage([]decimal.NullDecimal{d("10"), d("20"), null})
	assertDec(t, "15", avg)
	assert.Equal(t, 2, n)
}

func TestIndustryAverage_AllNull(t *testing.T) {
	avg, n := IndustryAverage([]decimal.NullDecimal{null, null})
	assert.False(t, avg.Valid)
	assert.Zero(t, n)

	avg, n = IndustryAverage(nil)
	assert.False(t, avg.Valid)
	assert.Zero(t, n)
}

// --- supplements ---

func TestNetIncomeTTM(t *testing.T) {
	assertDec(t, "10", NetIncomeTTM([]decimal.NullDecimal{d("1"), d("2"), d("3"), d("4")}))
	assert.False(t, NetIncomeTTM([]decimal.NullDecimal{d("1"), d("2"), d("3")}).Valid)
	assert.False(t, NetIncomeTTM([]decimal.NullDecimal{d("1"), null, d("3"), d("4")}).Valid)
}

func TestDebtRatio(t *testing.T) {
	assertDec(t, "0.5", DebtRatio(d("50"), d("100")))
	assert.False(t, DebtRatio(d("50"), d("0")).Valid)
	assert.False(t, DebtRatio(null, d("100")).Valid)
}

func TestSum(t *testing.T) {
	assertDec(t, "7", Sum([]decimal.NullDecimal{d("3"), null, d("4")}))
	assert.False(t, Sum([]decimal.NullDecimal{null}).Valid)
}

// --- ComputeStatistic ---

func TestComputeStatistic(t *testing.T) {
	now := time.Date(2025, 12, 10, 12, 0, 0, 0, time.UTC)
	end := time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC)
	f := &models.TickerFinancials{
		Symbol:            "JPM.US",
		Industry:          "Banks - Diversified",
		PeriodEnd:         &end,
		Price:             d("200"),
		EPS:               d("4"),
		RevenuePrev:       d("44"),
		RevenuePrev2:      d("40"),
		NetIncomeQuarters: []decimal.NullDecimal{d("10"), d("11"), d("12"), d("13")},
		TotalDebt:         d("300"),
		TotalEquity:       d("200"),
	}

	s, err := ComputeStatistic(f, "run-1", now)
	require.NoError(t, err)

	assert.Equal(t, "JPM.US", s.Symbol)
	assert.Equal(t, "Banks - Diversified", s.Industry)
	assert.Equal(t, &end, s.PeriodEnd)
	assertDec(t, "50", s.PERatio)
	assertDec(t, "0.1", s.RevenueGrowth)
	assertDec(t, "46", s.NetIncomeTTM)
	assertDec(t, "1.5", s.DebtRatio)
	assert.Equal(t, "run-1", s.RunID)
	assert.Equal(t, now, s.ComputedAt)
}

func TestComputeStatistic_Incomplete(t *testing.T) {
	_, err := ComputeStatistic(nil, "r", time.Now())
	assert.ErrorIs(t, err, ErrIncomplete)

	_, err = ComputeStatistic(&models.TickerFinancials{Symbol: "X", Industry: "Y"}, "r", time.Now())
	assert.ErrorIs(t, err, ErrIncomplete)
}

// --- AggregateIndustries ---

func TestAggregateIndustries(t *testing.T) {
	now := time.Now()
	stats := []models.TickerStatistic{
		{Symbol: "A", Industry: "Tech", PERatio: d("20"), RevenueGrowth: d("0.1")},
		{Symbol: "B", Industry: "Tech", PERatio: null, RevenueGrowth: d("0.2")},
		{Symbol: "C", Industry: "Banks", PERatio: null, RevenueGrowth: null},
	}

	aggs := AggregateIndustries(stats, "run-7", now)
	require.Len(t, aggs, 2)

	banks, tech := aggs[0], aggs[1]
	assert.Equal(t, "Banks", banks.Industry)
	assert.Equal(t, "Tech", tech.Industry)

	assertDec(t, "20", tech.AvgPE)
	assert.Equal(t, 1, tech.PECount)
	assertDec(t, "0.15", tech.AvgGrowth)
	assert.Equal(t, 2, tech.GrowthCount)
	assert.Equal(t, 2, tech.TickerCount)

	assert.False(t, banks.AvgPE.Valid)
	assert.False(t, banks.AvgGrowth.Valid)
	assert.Zero(t, banks.PECount)
	assert.Zero(t, banks.GrowthCount)
	assert.Equal(t, 1, banks.TickerCount)
	assert.False(t, banks.TotalNetIncome.Valid)

	for _, a := range aggs {
		assert.LessOrEqual(t, a.PECount, a.TickerCount)
		assert.LessOrEqual(t, a.GrowthCount, a.TickerCount)
		assert.Equal(t, "run-7", a.RunID)
	}
}

func TestAggregateIndustries_Empty(t *testing.T) {
	assert.Empty(t, AggregateIndustries(nil, "r", time.Now()))
}
