package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/kjannette/fiindo-etl/internal/config"
	"github.com/kjannette/fiindo-etl/internal/models"
)

// ErrRunInProgress is returned by RunNow while another run holds the store.
var ErrRunInProgress = errors.New("a pipeline run is already in progress")

// Runner is satisfied by *etl.Pipeline.
type Runner interface {
	Run(ctx context.Context) (*models.RunSummary, error)
}

type ETLSchedulerConfig struct {
	Schedule   string        // cron spec, seconds field optional
	RunTimeout time.Duration // per run, e.g. 30*time.Minute
	RunOnStart bool
	OnRunDone  func(summary *models.RunSummary, err error)
	Logger     *zap.Logger
}

// ETLScheduler triggers pipeline runs on a cron schedule. At most one run
// is active at any time, whether started by cron or by RunNow.
type ETLScheduler struct {
	runner Runner
	cfg    ETLSchedulerConfig
	logger *zap.Logger

	runMu sync.Mutex
	wg    sync.WaitGroup

	mu      sync.Mutex
	running bool
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewETLScheduler(runner Runner, cfg ETLSchedulerConfig) *ETLScheduler {
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 30 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ETLScheduler{
		runner: runner,
		cfg:    cfg,
		logger: logger.Named("scheduler"),
	}
}

func (s *ETLScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.logger.Warn("already running")
		return nil
	}
	if s.cfg.Schedule == "" {
		return errors.New("no schedule configured")
	}

	cl := cronLogger{s.logger.Sugar()}
	c := cron.New(
		cron.WithParser(config.ScheduleParser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(s.cfg.Schedule, s.scheduledRun); err != nil {
		return fmt.Errorf("schedule %q: %w", s.cfg.Schedule, err)
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	c.Start()
	s.cron = c
	s.running = true
	s.logger.Info("started", zap.String("schedule", s.cfg.Schedule), zap.Duration("run_timeout", s.cfg.RunTimeout))

	if s.cfg.RunOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.scheduledRun()
		}()
	}
	return nil
}

// Stop halts the schedule, cancels an in-flight scheduled run and waits
// for it to return.
func (s *ETLScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	c := s.cron
	cancel := s.cancel
	s.running = false
	s.cron = nil
	s.mu.Unlock()

	cancel()
	<-c.Stop().Done()
	s.wg.Wait()
	s.logger.Info("stopped")
}

func (s *ETLScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Next returns the next scheduled run time, or zero when stopped.
func (s *ETLScheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return time.Time{}
	}
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// RunNow triggers a run outside the schedule and waits for it.
func (s *ETLScheduler) RunNow(ctx context.Context) (*models.RunSummary, error) {
	if !s.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.runMu.Unlock()

	s.logger.Info("manual run triggered")
	return s.execute(ctx)
}

func (s *ETLScheduler) scheduledRun() {
	if !s.runMu.TryLock() {
		s.logger.Warn("skipping scheduled run, previous run still active")
		return
	}
	defer s.runMu.Unlock()

	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	_, _ = s.execute(ctx)
}

func (s *ETLScheduler) execute(parent context.Context) (*models.RunSummary, error) {
	ctx, cancel := context.WithTimeout(parent, s.cfg.RunTimeout)
	defer cancel()

	summary, err := s.runner.Run(ctx)
	if err != nil {
		s.logger.Error("run failed", zap.Error(err))
	}
	if s.cfg.OnRunDone != nil {
		s.cfg.OnRunDone(summary, err)
	}
	return summary, err
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
