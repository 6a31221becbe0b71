package external

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

type symbolsResponse struct {
	Symbols *[]string `json:"symbols"`
}

type generalResponse struct {
	Fundamentals struct {
		Profile struct {
			Data []struct {
				Industry string `json:"industry"`
				Sector   string `json:"sector"`
			} `json:"data"`
		} `json:"profile"`
	} `json:"fundamentals"`
}

func (g *generalResponse) industry() string {
	data := g.Fundamentals.Profile.Data
	if len(data) == 0 {
		return ""
	}
	return strings.TrimSpace(data[0].Industry)
}

type statementResponse[T any] struct {
	Fundamentals struct {
		Financials map[string]struct {
			Data []T `json:"data"`
		} `json:"financials"`
	} `json:"fundamentals"`
}

func (s *statementResponse[T]) rows(statement string) []T {
	return s.Fundamentals.Financials[statement].Data
}

// incomeRow is one period of an income statement. Period is Q1..Q4 or FY.
type incomeRow struct {
	Period    string              `json:"period"`
	Date      string              `json:"date"`
	Revenue   decimal.NullDecimal `json:"revenue"`
	NetIncome decimal.NullDecimal `json:"netIncome"`
	EPS       decimal.NullDecimal `json:"eps"`

	periodEnd time.Time
}

type balanceRow struct {
	Period      string              `json:"period"`
	Date        string              `json:"date"`
	TotalDebt   decimal.NullDecimal `json:"totalDebt"`
	TotalEquity decimal.NullDecimal `json:"totalEquity"`

	periodEnd time.Time
}

type eodResponse struct {
	StockPrice struct {
		Data []eodRow `json:"data"`
	} `json:"stockprice"`
}

type eodRow struct {
	Date  string              `json:"date"`
	Close decimal.NullDecimal `json:"close"`

	day time.Time
}

func isQuarter(period string) bool { return strings.HasPrefix(period, "Q") }

// quarters returns the quarterly rows, newest first.
func quarters(rows []incomeRow) ([]incomeRow, error) {
	var out []incomeRow
	for _, r := range rows {
		if !isQuarter(r.Period) {
			continue
		}
		t, err := time.Parse(dateLayout, r.Date)
		if err != nil {
			return nil, fmt.Errorf("income statement %s: bad date %q", r.Period, r.Date)
		}
		r.periodEnd = t
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].periodEnd.After(out[j].periodEnd) })
	return out, nil
}

// latestFiscalYear returns the newest FY balance sheet, or nil.
func latestFiscalYear(rows []balanceRow) (*balanceRow, error) {
	var latest *balanceRow
	for i := range rows {
		r := rows[i]
		if r.Period != "FY" {
			continue
		}
		t, err := time.Parse(dateLayout, r.Date)
		if err != nil {
			return nil, fmt.Errorf("balance sheet FY: bad date %q", r.Date)
		}
		r.periodEnd = t
		if latest == nil || t.After(latest.periodEnd) {
			latest = &r
		}
	}
	return latest, nil
}

// latestClose returns the close of the newest trading day.
func latestClose(rows []eodRow) (decimal.NullDecimal, error) {
	var latest *eodRow
	for i := range rows {
		r := rows[i]
		t, err := time.Parse(dateLayout, r.Date)
		if err != nil {
			return decimal.NullDecimal{}, fmt.Errorf("eod: bad date %q", r.Date)
		}
		r.day = t
		if latest == nil || t.After(latest.day) {
			latest = &r
		}
	}
	if latest == nil {
		return decimal.NullDecimal{}, nil
	}
	return latest.Close, nil
}
