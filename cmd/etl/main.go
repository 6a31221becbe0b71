package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"
	"go.uber.org/zap"

	"github.com/kjannette/fiindo-etl/internal/api"
	"github.com/kjannette/fiindo-etl/internal/config"
	"github.com/kjannette/fiindo-etl/internal/db"
	"github.com/kjannette/fiindo-etl/internal/etl"
	"github.com/kjannette/fiindo-etl/internal/external"
	"github.com/kjannette/fiindo-etl/internal/logging"
	"github.com/kjannette/fiindo-etl/internal/metrics"
	"github.com/kjannette/fiindo-etl/internal/models"
	"github.com/kjannette/fiindo-etl/internal/notifications"
	"github.com/kjannette/fiindo-etl/internal/quality"
	"github.com/kjannette/fiindo-etl/internal/repository"
	"github.com/kjannette/fiindo-etl/internal/scheduler"
)

const version = "0.3.0"

func main() {
	app := cli.NewApp()
	app.Name = "fiindo-etl"
	app.Usage = "compute per-ticker and per-industry statistics from the Fiindo API"
	app.Version = version
	app.Action = runAction
	app.Commands = []cli.Command{
		{
			Name:   "run",
			Usage:  "run the pipeline once and exit",
			Action: runAction,
		},
		{
			Name:  "schedule",
			Usage: "run the pipeline on ETL_SCHEDULE until interrupted",
			Flags: []cli.Flag{
				cli.BoolFlag{Name: "now", Usage: "also run once immediately on start"},
			},
			Action: scheduleAction,
		},
		{
			Name:   "migrate",
			Usage:  "create or update the database schema",
			Action: migrateAction,
		},
		{
			Name:  "runs",
			Usage: "print recent pipeline runs as JSON",
			Flags: []cli.Flag{
				cli.IntFlag{Name: "limit", Value: repository.DefaultRunLimit},
			},
			Action: runsAction,
		},
		{
			Name:      "industries",
			Usage:     "print stored industry aggregates as JSON",
			ArgsUsage: "[industry]",
			Action:    industriesAction,
		},
		{
			Name:      "ticker",
			Usage:     "print the stored statistics of one or all tickers as JSON",
			ArgsUsage: "[symbol]",
			Action:    tickerAction,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app bundles everything a command needs. Pipeline-related fields are nil
// for storage-only commands.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  repository.Store

	pipeline *etl.Pipeline
	notify   *notifications.Sender
	metrics  *metrics.Metrics
}

func setup(ctx context.Context, withPipeline bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, cli.NewExitError(fmt.Sprintf("config load error: %v", err), 2)
	}
	if err := cfg.Validate(); err != nil {
		return nil, cli.NewExitError(err.Error(), 2)
	}

	logger := logging.New(cfg.LogLevel)
	cfg.Print(logger)

	store, err := db.Open(ctx, cfg.DatabaseURL, true, logger)
	if err != nil {
		logger.Sync()
		return nil, cli.NewExitError(fmt.Sprintf("database: %v", err), 1)
	}

	a := &app{cfg: cfg, logger: logger, store: store}
	if !withPipeline {
		return a, nil
	}

	client := external.NewFiindoClient(cfg.APIBaseURL, cfg.APIToken, external.FiindoOptions{
		Timeout:    cfg.HTTPTimeout,
		Retries:    cfg.HTTPRetries,
		Backoff:    cfg.HTTPBackoff,
		RateLimit:  cfg.HTTPRateLimit,
		Industries: cfg.Industries,
		Logger:     logger.Named("fiindo"),
	})
	a.pipeline = etl.NewPipeline(client, store, etl.Options{
		Workers: cfg.Workers,
		Guard: quality.NewGuard(quality.Limits{
			MaxFailureRatio: cfg.MaxFailureRatio,
			MinTickers:      cfg.MinTickers,
		}),
		Logger: logger,
	})
	a.notify = notifications.NewSender(cfg.WebhookURL, cfg.NotifyName, logger)
	a.metrics = metrics.New()
	return a, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing store", zap.Error(err))
	}
	a.logger.Info("database closed")
	_ = a.logger.Sync()
}

// afterRun publishes the outcome of a run to metrics and the webhook.
func (a *app) afterRun(summary *models.RunSummary, err error) {
	a.metrics.Observe(summary, err)
	if a.cfg.MetricsTextfile != "" {
		if werr := a.metrics.WriteTextfile(a.cfg.MetricsTextfile); werr != nil {
			a.logger.Warn("writing metrics textfile", zap.String("path", a.cfg.MetricsTextfile), zap.Error(werr))
		}
	}

	if err != nil {
		a.notify.RunFailed(summary, err)
		return
	}
	a.notify.RunFinished(summary)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runAction(c *cli.Context) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := setup(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithTimeout(ctx, a.cfg.RunTimeout)
	defer cancel()

	summary, err := a.pipeline.Run(ctx)
	a.afterRun(summary, err)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("run failed: %v", err), 1)
	}
	fmt.Println(summary.String())
	return nil
}

func scheduleAction(c *cli.Context) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := setup(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	if a.cfg.Schedule == "" {
		return cli.NewExitError("ETL_SCHEDULE is not set", 2)
	}

	sched := scheduler.NewETLScheduler(a.pipeline, scheduler.ETLSchedulerConfig{
		Schedule:   a.cfg.Schedule,
		RunTimeout: a.cfg.RunTimeout,
		RunOnStart: c.Bool("now"),
		OnRunDone:  a.afterRun,
		Logger:     a.logger,
	})
	if err := sched.Start(); err != nil {
		return cli.NewExitError(err.Error(), 2)
	}
	a.logger.Info("waiting for scheduled runs", zap.Time("next", sched.Next()))

	var srv *api.Server
	if a.cfg.APIPort > 0 {
		srv = api.NewServer(a.store, api.ServerOptions{
			Port:       a.cfg.APIPort,
			APIKey:     a.cfg.APIKey,
			CORSOrigin: a.cfg.CORSOrigin,
			Metrics:    a.metrics.Registry,
			Logger:     a.logger,
		})
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("API server error", zap.Error(err))
				stop()
			}
		}()
	}

	<-ctx.Done()
	a.logger.Info("shutting down, waiting for in-flight run")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("API shutdown error", zap.Error(err))
		}
	}
	sched.Stop()
	return nil
}

func migrateAction(c *cli.Context) error {
	ctx, stop := signalContext()
	defer stop()

	// setup migrates on open.
	a, err := setup(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	backend, _ := db.Backend(a.cfg.DatabaseURL)
	a.logger.Info("schema up to date", zap.String("backend", backend))
	return nil
}

func runsAction(c *cli.Context) error {
	return withStore(c, func(ctx context.Context, store repository.Store) (any, error) {
		return store.ListRuns(ctx, c.Int("limit"))
	})
}

func industriesAction(c *cli.Context) error {
	return withStore(c, func(ctx context.Context, store repository.Store) (any, error) {
		if name := c.Args().First(); name != "" {
			return store.GetIndustryAggregate(ctx, name)
		}
		return store.ListIndustryAggregates(ctx)
	})
}

func tickerAction(c *cli.Context) error {
	return withStore(c, func(ctx context.Context, store repository.Store) (any, error) {
		if symbol := c.Args().First(); symbol != "" {
			return store.GetTickerStatistic(ctx, symbol)
		}
		return store.ListTickerStatistics(ctx)
	})
}

// withStore opens the store, runs query and prints its result as JSON.
func withStore(c *cli.Context, query func(ctx context.Context, store repository.Store) (any, error)) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := setup(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	out, err := query(ctx, a.store)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	return nil
}
