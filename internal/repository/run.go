package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kjannette/fiindo-etl/internal/models"
)

const runColumns = `run_id, started_at, finished_at, symbols_total, fetch_succeeded,
	fetch_failed, skipped, compute_succeeded, compute_failed, industries`

type RunRepo struct {
	pool *pgxpool.Pool
}

func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

func (r *RunRepo) Record(ctx context.Context, run *models.PipelineRun) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO pipeline_runs (`+runColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		 ON CONFLICT (run_id) DO NOTHING`,
		run.RunID, run.StartedAt, run.FinishedAt, run.SymbolsTotal,
		run.FetchSucceeded, run.FetchFailed, run.Skipped,
		run.ComputeSucceeded, run.ComputeFailed, run.Industries,
	)
	return err
}

// Recent returns the newest runs first.
func (r *RunRepo) Recent(ctx context.Context, limit int) ([]models.PipelineRun, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+runColumns+` FROM pipeline_runs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PipelineRun
	for rows.Next() {
		var p models.PipelineRun
		if err := rows.Scan(
			&p.RunID, &p.StartedAt, &p.FinishedAt, &p.SymbolsTotal,
			&p.FetchSucceeded, &p.FetchFailed, &p.Skipped,
			&p.ComputeSucceeded, &p.ComputeFailed, &p.Industries,
		); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
