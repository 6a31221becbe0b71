package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kjannette/fiindo-etl/internal/models"
)

const tickerColumns = `symbol, industry, period_end, pe_ratio, revenue_growth,
	net_income_ttm, debt_ratio, run_id, computed_at`

const upsertTickerSQL = `INSERT INTO ticker_statistics (` + tickerColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	ON CONFLICT (symbol) DO UPDATE SET
		industry       = EXCLUDED.industry,
		period_end     = EXCLUDED.period_end,
		pe_ratio       = EXCLUDED.pe_ratio,
		revenue_growth = EXCLUDED.revenue_growth,
		net_income_ttm = EXCLUDED.net_income_ttm,
		debt_ratio     = EXCLUDED.debt_ratio,
		run_id         = EXCLUDED.run_id,
		computed_at    = EXCLUDED.computed_at`

type TickerStatsRepo struct {
	pool *pgxpool.Pool
}

func NewTickerStatsRepo(pool *pgxpool.Pool) *TickerStatsRepo {
	return &TickerStatsRepo{pool: pool}
}

// UpsertAll writes every row inside tx as one batch.
func (r *TickerStatsRepo) UpsertAll(ctx context.Context, tx pgx.Tx, stats []models.TickerStatistic) error {
	b := &pgx.Batch{}
	for _, s := range stats {
		b.Queue(upsertTickerSQL,
			s.Symbol, s.Industry, s.PeriodEnd,
			numeric(s.PERatio), numeric(s.RevenueGrowth),
			numeric(s.NetIncomeTTM), numeric(s.DebtRatio),
			s.RunID, s.ComputedAt,
		)
	}
	return sendBatch(ctx, tx, b)
}

func (r *TickerStatsRepo) List(ctx context.Context) ([]models.TickerStatistic, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+tickerColumns+` FROM ticker_statistics ORDER BY symbol ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTickerStats(rows)
}

// Get returns nil when the symbol has never been stored.
func (r *TickerStatsRepo) Get(ctx context.Context, symbol string) (*models.TickerStatistic, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+tickerColumns+` FROM ticker_statistics WHERE symbol = $1`,
		symbol,
	)
	s, err := scanTickerStat(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func scanTickerStat(row scannable) (*models.TickerStatistic, error) {
	var s models.TickerStatistic
	err := row.Scan(
		&s.Symbol, &s.Industry, &s.PeriodEnd, &s.PERatio, &s.RevenueGrowth,
		&s.NetIncomeTTM, &s.DebtRatio, &s.RunID, &s.ComputedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func collectTickerStats(rows rowsIter) ([]models.TickerStatistic, error) {
	var out []models.TickerStatistic
	for rows.Next() {
		s, err := scanTickerStat(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func sendBatch(ctx context.Context, tx pgx.Tx, b *pgx.Batch) error {
	if b.Len() == 0 {
		return nil
	}
	br := tx.SendBatch(ctx, b)
	for i := 0; i < b.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return err
		}
	}
	return br.Close()
}
