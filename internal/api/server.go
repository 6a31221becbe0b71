package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kjannette/fiindo-etl/internal/repository"
)

type ServerOptions struct {
	Port       int
	APIKey     string // empty disables auth
	CORSOrigin string
	Metrics    *prometheus.Registry // served on /metrics when set
	Logger     *zap.Logger
}

// Server is a read-only HTTP view over the stored pipeline results.
type Server struct {
	store      repository.Store
	httpServer *http.Server
	apiKey     string
	logger     *zap.Logger
}

func NewServer(store repository.Store, opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:  store,
		apiKey: opts.APIKey,
		logger: logger.Named("api"),
	}

	mux := http.NewServeMux()

	// Ticker routes
	mux.HandleFunc("GET /v1/tickers", s.handleTickers)
	mux.HandleFunc("GET /v1/tickers/{symbol}", s.handleTicker)

	// Industry routes
	mux.HandleFunc("GET /v1/industries", s.handleIndustries)
	mux.HandleFunc("GET /v1/industries/{industry}", s.handleIndustry)

	// Run history
	mux.HandleFunc("GET /v1/runs", s.handleRuns)

	if opts.Metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(opts.Metrics, promhttp.HandlerOpts{}))
	}

	// Health check, public
	mux.HandleFunc("GET /health", s.handleHealth)

	handler := corsMiddleware(s.authMiddleware(mux), opts.CORSOrigin)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	s.logger.Info("REST API listening",
		zap.String("addr", s.httpServer.Addr),
		zap.Bool("auth", s.apiKey != ""),
	)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
