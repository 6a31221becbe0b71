package models

import (
	"fmt"
	"time"
)

// Pipeline stages a ticker can fail in.
const (
	StageList    = "list"
	StageFetch   = "fetch"
	StageCompute = "compute"
)

type StageCount struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

type TickerError struct {
	Symbol  string `json:"symbol"`
	Stage   string `json:"stage"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// RunSummary is what a pipeline run reports back to its caller.
type RunSummary struct {
	RunID        string        `json:"runId"`
	StartedAt    time.Time     `json:"startedAt"`
	FinishedAt   time.Time     `json:"finishedAt"`
	SymbolsTotal int           `json:"symbolsTotal"`
	Fetch        StageCount    `json:"fetch"`
	Skipped      int           `json:"skipped"`
	Compute      StageCount    `json:"compute"`
	Industries   int           `json:"industries"`
	Errors       []TickerError `json:"errors,omitempty"`
}

func (s *RunSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

func (s *RunSummary) String() string {
	return fmt.Sprintf(
		"run %s: %d symbols | fetch ok=%d failed=%d skipped=%d | compute ok=%d failed=%d | %d industries | %s",
		s.RunID, s.SymbolsTotal,
		s.Fetch.Succeeded, s.Fetch.Failed, s.Skipped,
		s.Compute.Succeeded, s.Compute.Failed,
		s.Industries, s.Duration().Round(time.Millisecond),
	)
}

// Record converts the summary into its persisted form.
func (s *RunSummary) Record() *PipelineRun {
	return &PipelineRun{
		RunID:            s.RunID,
		StartedAt:        s.StartedAt,
		FinishedAt:       s.FinishedAt,
		SymbolsTotal:     s.SymbolsTotal,
		FetchSucceeded:   s.Fetch.Succeeded,
		FetchFailed:      s.Fetch.Failed,
		Skipped:          s.Skipped,
		ComputeSucceeded: s.Compute.Succeeded,
		ComputeFailed:    s.Compute.Failed,
		Industries:       s.Industries,
	}
}

type PipelineRun struct {
	RunID            string    `json:"runId" gorm:"column:run_id;primaryKey"`
	StartedAt        time.Time `json:"startedAt" gorm:"column:started_at;not null"`
	FinishedAt       time.Time `json:"finishedAt" gorm:"column:finished_at;not null"`
	SymbolsTotal     int       `json:"symbolsTotal" gorm:"column:symbols_total;not null"`
	FetchSucceeded   int       `json:"fetchSucceeded" gorm:"column:fetch_succeeded;not null"`
	FetchFailed      int       `json:"fetchFailed" gorm:"column:fetch_failed;not null"`
	Skipped          int       `json:"skipped" gorm:"column:skipped;not null"`
	ComputeSucceeded int       `json:"computeSucceeded" gorm:"column:compute_succeeded;not null"`
	ComputeFailed    int       `json:"computeFailed" gorm:"column:compute_failed;not null"`
	Industries       int       `json:"industries" gorm:"column:industries;not null"`
}

func (PipelineRun) TableName() string { return "pipeline_runs" }
