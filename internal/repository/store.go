package repository

import (
	"context"
	"fmt"

	"github.com/kjannette/fiindo-etl/internal/models"
)

// Store persists pipeline output. Each Save call is one transaction: either
// the whole batch becomes visible or none of it does.
type Store interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error

	SaveTickerStatistics(ctx context.Context, stats []models.TickerStatistic) error
	SaveIndustryAggregates(ctx context.Context, aggs []models.IndustryAggregate) error
	RecordRun(ctx context.Context, run *models.PipelineRun) error

	ListTickerStatistics(ctx context.Context) ([]models.TickerStatistic, error)
	GetTickerStatistic(ctx context.Context, symbol string) (*models.TickerStatistic, error)
	ListIndustryAggregates(ctx context.Context) ([]models.IndustryAggregate, error)
	GetIndustryAggregate(ctx context.Context, industry string) (*models.IndustryAggregate, error)
	ListRuns(ctx context.Context, limit int) ([]models.PipelineRun, error)

	Close() error
}

// PersistenceError wraps any storage failure. A run that hits one is aborted.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// DefaultRunLimit applies when ListRuns is called with a non-positive limit.
const DefaultRunLimit = 20

func runLimit(limit int) int {
	if limit <= 0 {
		return DefaultRunLimit
	}
	return limit
}

func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}
