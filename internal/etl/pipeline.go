package etl

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kjannette/fiindo-etl/internal/calc"
	"github.com/kjannette/fiindo-etl/internal/external"
	"github.com/kjannette/fiindo-etl/internal/models"
	"github.com/kjannette/fiindo-etl/internal/quality"
	"github.com/kjannette/fiindo-etl/internal/repository"
)

const DefaultWorkers = 8

// Fetcher is the part of the Fiindo client the pipeline depends on.
type Fetcher interface {
	ListSymbols(ctx context.Context) ([]string, error)
	FetchFinancials(ctx context.Context, symbol string) (*models.TickerFinancials, error)
}

type Options struct {
	Workers  int
	Guard    *quality.Guard // nil disables the pre-persist check
	Logger   *zap.Logger
	Now      func() time.Time
	NewRunID func() string
}

// Pipeline runs one list → fetch → compute → aggregate → persist cycle per
// call to Run. Runs must not overlap; the scheduler guarantees that.
type Pipeline struct {
	fetcher  Fetcher
	store    repository.Store
	workers  int
	guard    *quality.Guard
	logger   *zap.Logger
	now      func() time.Time
	newRunID func() string
}

func NewPipeline(fetcher Fetcher, store repository.Store, opts Options) *Pipeline {
	p := &Pipeline{
		fetcher:  fetcher,
		store:    store,
		workers:  opts.Workers,
		guard:    opts.Guard,
		logger:   opts.Logger,
		now:      opts.Now,
		newRunID: opts.NewRunID,
	}
	if p.workers <= 0 {
		p.workers = DefaultWorkers
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	if p.now == nil {
		p.now = func() time.Time { return time.Now().UTC() }
	}
	if p.newRunID == nil {
		p.newRunID = func() string { return uuid.NewString() }
	}
	p.logger = p.logger.Named("etl")
	return p
}

type fetchResult struct {
	financials *models.TickerFinancials
	err        error
}

// Run executes one full pipeline pass. Per-ticker failures are reported in
// the summary and never fail the run unless the quality guard rejects the
// results. The returned error is non-nil when listing fails, the context is
// canceled, the guard blocks, or a save fails; the summary is still
// returned in those cases.
func (p *Pipeline) Run(ctx context.Context) (*models.RunSummary, error) {
	summary := &models.RunSummary{
		RunID:     p.newRunID(),
		StartedAt: p.now(),
	}
	log := p.logger.With(zap.String("run_id", summary.RunID))
	log.Info("run started", zap.Int("workers", p.workers))

	symbols, err := p.fetcher.ListSymbols(ctx)
	if err != nil {
		summary.Errors = append(summary.Errors, tickerError("", models.StageList, external.Kind(err), err))
		summary.FinishedAt = p.now()
		log.Error("listing symbols failed", zap.String("kind", external.Kind(err)), zap.Error(err))
		return summary, fmt.Errorf("list symbols: %w", err)
	}
	summary.SymbolsTotal = len(symbols)

	results := p.fetchAll(ctx, symbols, log)
	if err := ctx.Err(); err != nil {
		summary.FinishedAt = p.now()
		log.Warn("run canceled before persisting", zap.Error(err))
		return summary, fmt.Errorf("run canceled: %w", err)
	}

	sorted := make([]string, 0, len(results))
	for sym := range results {
		sorted = append(sorted, sym)
	}
	sort.Strings(sorted)

	computedAt := p.now()
	var stats []models.TickerStatistic
	for _, sym := range sorted {
		r := results[sym]
		switch {
		case errors.Is(r.err, external.ErrIndustryExcluded):
			summary.Skipped++
			log.Debug("skipped", zap.String("symbol", sym))
			continue
		case r.err != nil:
			summary.Fetch.Failed++
			p.recordFailure(log, summary, sym, models.StageFetch, external.Kind(r.err), r.err)
			continue
		}
		summary.Fetch.Succeeded++

		stat, err := calc.ComputeStatistic(r.financials, summary.RunID, computedAt)
		if err != nil {
			// Missing required fields are a schema mismatch, not a math fault.
			err = &external.ParseError{Endpoint: "financials", Symbol: sym, Err: err}
			summary.Compute.Failed++
			p.recordFailure(log, summary, sym, models.StageCompute, external.Kind(err), err)
			continue
		}
		summary.Compute.Succeeded++
		stats = append(stats, stat)
	}

	aggs := calc.AggregateIndustries(stats, summary.RunID, computedAt)
	summary.Industries = len(aggs)

	if err := p.guard.PrePersistCheck(summary); err != nil {
		summary.FinishedAt = p.now()
		log.Error("results rejected, nothing persisted", zap.Error(err))
		return summary, err
	}

	if err := p.store.SaveTickerStatistics(ctx, stats); err != nil {
		return p.abort(log, summary, err)
	}
	log.Info("saved ticker statistics", zap.Int("count", len(stats)))

	if err := p.store.SaveIndustryAggregates(ctx, aggs); err != nil {
		return p.abort(log, summary, err)
	}
	log.Info("saved industry aggregates", zap.Int("count", len(aggs)))

	summary.FinishedAt = p.now()
	if err := p.store.RecordRun(ctx, summary.Record()); err != nil {
		return p.abort(log, summary, err)
	}

	log.Info("run finished",
		zap.Int("symbols", summary.SymbolsTotal),
		zap.Int("fetch_ok", summary.Fetch.Succeeded),
		zap.Int("fetch_failed", summary.Fetch.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("compute_ok", summary.Compute.Succeeded),
		zap.Int("compute_failed", summary.Compute.Failed),
		zap.Int("industries", summary.Industries),
		zap.Duration("duration", summary.Duration()),
	)
	return summary, nil
}

// fetchAll fetches every symbol on a bounded pool. A failed ticker never
// cancels its siblings; cancellation of ctx stops new fetches.
func (p *Pipeline) fetchAll(ctx context.Context, symbols []string, log *zap.Logger) map[string]fetchResult {
	var (
		mu      sync.Mutex
		results = make(map[string]fetchResult, len(symbols))
		g       errgroup.Group
	)
	g.SetLimit(p.workers)

	for _, sym := range symbols {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			var r fetchResult
			if err := ctx.Err(); err != nil {
				r.err = err
			} else {
				r.financials, r.err = p.fetcher.FetchFinancials(ctx, sym)
			}

			mu.Lock()
			results[sym] = r
			mu.Unlock()

			if r.err == nil {
				log.Debug("fetched", zap.String("symbol", sym))
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Pipeline) recordFailure(log *zap.Logger, s *models.RunSummary, symbol, stage, kind string, err error) {
	s.Errors = append(s.Errors, tickerError(symbol, stage, kind, err))
	log.Warn("ticker failed",
		zap.String("symbol", symbol),
		zap.String("stage", stage),
		zap.String("kind", kind),
		zap.Error(err),
	)
}

func (p *Pipeline) abort(log *zap.Logger, s *models.RunSummary, err error) (*models.RunSummary, error) {
	s.FinishedAt = p.now()
	log.Error("persisting results failed, run aborted", zap.Error(err))
	return s, err
}

func tickerError(symbol, stage, kind string, err error) models.TickerError {
	return models.TickerError{
		Symbol:  symbol,
		Stage:   stage,
		Kind:    kind,
		Message: err.Error(),
		Err:     err,
	}
}
