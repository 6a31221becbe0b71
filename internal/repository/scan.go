package repository

import (
	"github.com/shopspring/decimal"
)

// --- scan helpers ---

type scannable interface {
	Scan(dest ...any) error
}

type rowsIter interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// numeric turns a NullDecimal into a query argument. Strings are sent in
// text format, so Postgres parses them into NUMERIC without float rounding.
func numeric(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}
