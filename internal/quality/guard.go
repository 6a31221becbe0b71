package quality

import (
	"fmt"

	"github.com/kjannette/fiindo-etl/internal/models"
)

// Limits holds the run quality thresholds from config.
// A zero value for any field means that check is disabled.
type Limits struct {
	MaxFailureRatio float64 // failed / attempted tickers, across fetch and compute
	MinTickers      int     // computed statistics needed to persist
}

// GateError reports why a run was not allowed to persist.
type GateError struct {
	Reason string
}

func (e *GateError) Error() string {
	return "quality gate: " + e.Reason
}

type Guard struct {
	limits Limits
}

func NewGuard(limits Limits) *Guard {
	return &Guard{limits: limits}
}

func (g *Guard) Enabled() bool {
	return g != nil && (g.limits.MaxFailureRatio > 0 || g.limits.MinTickers > 0)
}

// PrePersistCheck runs after compute and before anything is written.
// Returns nil if the results may be saved, a *GateError if blocked.
// An empty universe always passes.
func (g *Guard) PrePersistCheck(s *models.RunSummary) error {
	if !g.Enabled() || s.SymbolsTotal == 0 {
		return nil
	}

	attempted := s.SymbolsTotal - s.Skipped
	failed := s.Fetch.Failed + s.Compute.Failed
	if g.limits.MaxFailureRatio > 0 && attempted > 0 {
		ratio := float64(failed) / float64(attempted)
		if ratio > g.limits.MaxFailureRatio {
			return &GateError{Reason: fmt.Sprintf(
				"%.1f%% of tickers failed (%d/%d), limit %.1f%%",
				ratio*100, failed, attempted, g.limits.MaxFailureRatio*100)}
		}
	}

	if g.limits.MinTickers > 0 && s.Compute.Succeeded < g.limits.MinTickers {
		return &GateError{Reason: fmt.Sprintf(
			"only %d tickers computed, need at least %d",
			s.Compute.Succeeded, g.limits.MinTickers)}
	}

	return nil
}
