package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kjannette/fiindo-etl/internal/models"
	"github.com/kjannette/fiindo-etl/internal/quality"
	"github.com/kjannette/fiindo-etl/internal/repository"
)

// Run outcomes for etl_runs_total.
const (
	ResultSuccess          = "success"
	ResultPersistenceError = "persistence_error"
	ResultBlocked          = "blocked"
	ResultFailed           = "failed"
)

// Metrics holds the pipeline collectors on a private registry so tests and
// repeated constructions never collide with the global one.
type Metrics struct {
	Registry *prometheus.Registry

	Tickers     *prometheus.CounterVec
	Industries  prometheus.Gauge
	RunDuration prometheus.Histogram
	LastSuccess prometheus.Gauge
	Runs        *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Tickers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "etl_tickers_total",
			Help: "Tickers processed, by pipeline stage and outcome.",
		}, []string{"stage", "outcome"}),
		Industries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "etl_industries_total",
			Help: "Industries aggregated by the last run.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "etl_run_duration_seconds",
			Help:    "Wall time of a pipeline run.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "etl_last_run_success_timestamp_seconds",
			Help: "Unix time the last successful run finished.",
		}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "etl_runs_total",
			Help: "Pipeline runs, by result.",
		}, []string{"result"}),
	}
	m.Registry.MustRegister(m.Tickers, m.Industries, m.RunDuration, m.LastSuccess, m.Runs)
	return m
}

// Observe records one finished run. summary may be nil when the run failed
// before producing one.
func (m *Metrics) Observe(summary *models.RunSummary, err error) {
	m.Runs.WithLabelValues(result(err)).Inc()
	if summary == nil {
		return
	}

	m.Tickers.WithLabelValues(models.StageFetch, "succeeded").Add(float64(summary.Fetch.Succeeded))
	m.Tickers.WithLabelValues(models.StageFetch, "failed").Add(float64(summary.Fetch.Failed))
	m.Tickers.WithLabelValues(models.StageFetch, "skipped").Add(float64(summary.Skipped))
	m.Tickers.WithLabelValues(models.StageCompute, "succeeded").Add(float64(summary.Compute.Succeeded))
	m.Tickers.WithLabelValues(models.StageCompute, "failed").Add(float64(summary.Compute.Failed))

	if d := summary.Duration(); d > 0 {
		m.RunDuration.Observe(d.Seconds())
	}
	if err == nil {
		m.Industries.Set(float64(summary.Industries))
		m.LastSuccess.Set(float64(summary.FinishedAt.Unix()))
	}
}

// WriteTextfile dumps the registry in the node-exporter textfile format.
// The write is atomic.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}

func result(err error) string {
	var (
		pe *repository.PersistenceError
		ge *quality.GateError
	)
	switch {
	case err == nil:
		return ResultSuccess
	case errors.As(err, &pe):
		return ResultPersistenceError
	case errors.As(err, &ge):
		return ResultBlocked
	default:
		return ResultFailed
	}
}
