package api

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/kjannette/fiindo-etl/internal/models"
	"github.com/kjannette/fiindo-etl/internal/repository"
)

// handleTickers lists stored statistics, optionally filtered by ?industry=.
func (s *Server) handleTickers(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.ListTickerStatistics(r.Context())
	if err != nil {
		s.logger.Error("listing ticker statistics", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch ticker statistics")
		return
	}

	if industry := strings.TrimSpace(r.URL.Query().Get("industry")); industry != "" {
		filtered := make([]models.TickerStatistic, 0, len(stats))
		for _, st := range stats {
			if st.Industry == industry {
				filtered = append(filtered, st)
			}
		}
		stats = filtered
	}
	if stats == nil {
		stats = []models.TickerStatistic{}
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleTicker(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	st, err := s.store.GetTickerStatistic(r.Context(), symbol)
	if err != nil {
		s.logger.Error("fetching ticker statistic", zap.String("symbol", symbol), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch ticker statistic")
		return
	}
	if st == nil {
		writeError(w, http.StatusNotFound, "unknown symbol "+symbol)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleIndustries(w http.ResponseWriter, r *http.Request) {
	aggs, err := s.store.ListIndustryAggregates(r.Context())
	if err != nil {
		s.logger.Error("listing industry aggregates", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch industry aggregates")
		return
	}
	if aggs == nil {
		aggs = []models.IndustryAggregate{}
	}
	writeJSON(w, http.StatusOK, aggs)
}

func (s *Server) handleIndustry(w http.ResponseWriter, r *http.Request) {
	industry := r.PathValue("industry")
	agg, err := s.store.GetIndustryAggregate(r.Context(), industry)
	if err != nil {
		s.logger.Error("fetching industry aggregate", zap.String("industry", industry), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch industry aggregate")
		return
	}
	if agg == nil {
		writeError(w, http.StatusNotFound, "unknown industry "+industry)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, repository.DefaultRunLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch runs")
		return
	}
	if runs == nil {
		runs = []models.PipelineRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}
