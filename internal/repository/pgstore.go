package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kjannette/fiindo-etl/internal/models"
)

// PGStore is the Postgres Store, backed by a pgx pool.
type PGStore struct {
	pool       *pgxpool.Pool
	tickers    *TickerStatsRepo
	industries *IndustryAggRepo
	runs       *RunRepo
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{
		pool:       pool,
		tickers:    NewTickerStatsRepo(pool),
		industries: NewIndustryAggRepo(pool),
		runs:       NewRunRepo(pool),
	}
}

func (s *PGStore) Migrate(ctx context.Context) error {
	for _, stmt := range pgSchema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return persistErr("migrate", err)
		}
	}
	return nil
}

func (s *PGStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PGStore) SaveTickerStatistics(ctx context.Context, stats []models.TickerStatistic) error {
	if len(stats) == 0 {
		return nil
	}
	return persistErr("save ticker statistics", s.inTx(ctx, func(tx pgx.Tx) error {
		return s.tickers.UpsertAll(ctx, tx, stats)
	}))
}

func (s *PGStore) SaveIndustryAggregates(ctx context.Context, aggs []models.IndustryAggregate) error {
	if len(aggs) == 0 {
		return nil
	}
	return persistErr("save industry aggregates", s.inTx(ctx, func(tx pgx.Tx) error {
		return s.industries.UpsertAll(ctx, tx, aggs)
	}))
}

func (s *PGStore) RecordRun(ctx context.Context, run *models.PipelineRun) error {
	return persistErr("record run", s.runs.Record(ctx, run))
}

func (s *PGStore) ListTickerStatistics(ctx context.Context) ([]models.TickerStatistic, error) {
	out, err := s.tickers.List(ctx)
	return out, persistErr("list ticker statistics", err)
}

func (s *PGStore) GetTickerStatistic(ctx context.Context, symbol string) (*models.TickerStatistic, error) {
	out, err := s.tickers.Get(ctx, symbol)
	return out, persistErr("get ticker statistic", err)
}

func (s *PGStore) ListIndustryAggregates(ctx context.Context) ([]models.IndustryAggregate, error) {
	out, err := s.industries.List(ctx)
	return out, persistErr("list industry aggregates", err)
}

func (s *PGStore) GetIndustryAggregate(ctx context.Context, industry string) (*models.IndustryAggregate, error) {
	out, err := s.industries.Get(ctx, industry)
	return out, persistErr("get industry aggregate", err)
}

func (s *PGStore) ListRuns(ctx context.Context, limit int) ([]models.PipelineRun, error) {
	out, err := s.runs.Recent(ctx, runLimit(limit))
	return out, persistErr("list runs", err)
}

func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PGStore) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
