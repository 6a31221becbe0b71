package api

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

type healthResponse struct {
	Status   string         `json:"status"`
	Time     time.Time      `json:"time"`
	Database string         `json:"database"`
	LastRun  *lastRunHealth `json:"lastRun"`
}

// lastRunHealth tells a caller how stale the stored results are.
type lastRunHealth struct {
	RunID      string    `json:"runId"`
	FinishedAt time.Time `json:"finishedAt"`
	AgeSeconds int64     `json:"ageSeconds"`
	Industries int       `json:"industries"`
}

// handleHealth reports 200 with the newest successful run when the store
// answers, and 503 "degraded" when it does not. A store with no runs yet
// is healthy with lastRun null.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	resp := healthResponse{Status: "ok", Time: now, Database: "connected"}

	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("health: store ping failed", zap.Error(err))
		resp.Status = "degraded"
		resp.Database = "disconnected"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	runs, err := s.store.ListRuns(r.Context(), 1)
	if err != nil {
		s.logger.Warn("health: reading last run", zap.Error(err))
		resp.Status = "degraded"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	if len(runs) > 0 {
		last := runs[0]
		resp.LastRun = &lastRunHealth{
			RunID:      last.RunID,
			FinishedAt: last.FinishedAt.UTC(),
			AgeSeconds: int64(now.Sub(last.FinishedAt).Seconds()),
			Industries: last.Industries,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
