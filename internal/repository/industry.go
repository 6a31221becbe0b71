package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kjannette/fiindo-etl/internal/models"
)

const industryColumns = `industry, avg_pe, pe_count, avg_growth, growth_count,
	ticker_count, total_net_income, run_id, computed_at`

const upsertIndustrySQL = `INSERT INTO industry_aggregates (` + industryColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	ON CONFLICT (industry) DO UPDATE SET
		avg_pe           = EXCLUDED.avg_pe,
		pe_count         = EXCLUDED.pe_count,
		avg_growth       = EXCLUDED.avg_growth,
		growth_count     = EXCLUDED.growth_count,
		ticker_count     = EXCLUDED.ticker_count,
		total_net_income = EXCLUDED.total_net_income,
		run_id           = EXCLUDED.run_id,
		computed_at      = EXCLUDED.computed_at`

type IndustryAggRepo struct {
	pool *pgxpool.Pool
}

func NewIndustryAggRepo(pool *pgxpool.Pool) *IndustryAggRepo {
	return &IndustryAggRepo{pool: pool}
}

func (r *IndustryAggRepo) UpsertAll(ctx context.Context, tx pgx.Tx, aggs []models.IndustryAggregate) error {
	b := &pgx.Batch{}
	for _, a := range aggs {
		b.Queue(upsertIndustrySQL,
			a.Industry, numeric(a.AvgPE), a.PECount,
			numeric(a.AvgGrowth), a.GrowthCount, a.TickerCount,
			numeric(a.TotalNetIncome), a.RunID, a.ComputedAt,
		)
	}
	return sendBatch(ctx, tx, b)
}

func (r *IndustryAggRepo) List(ctx context.Context) ([]models.IndustryAggregate, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+industryColumns+` FROM industry_aggregates ORDER BY industry ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIndustryAggs(rows)
}

func (r *IndustryAggRepo) Get(ctx context.Context, industry string) (*models.IndustryAggregate, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+industryColumns+` FROM industry_aggregates WHERE industry = $1`,
		industry,
	)
	a, err := scanIndustryAgg(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func scanIndustryAgg(row scannable) (*models.IndustryAggregate, error) {
	var a models.IndustryAggregate
	err := row.Scan(
		&a.Industry, &a.AvgPE, &a.PECount, &a.AvgGrowth, &a.GrowthCount,
		&a.TickerCount, &a.TotalNetIncome, &a.RunID, &a.ComputedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func collectIndustryAggs(rows rowsIter) ([]models.IndustryAggregate, error) {
	var out []models.IndustryAggregate
	for rows.Next() {
		a, err := scanIndustryAgg(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}
