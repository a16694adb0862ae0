// Package api serves the watch loop's state over HTTP: the latest
// analysis, replay records, backtest jobs over the live window and the
// Prometheus endpoint.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/newthinker/structura/internal/analysis"
	handler "github.com/newthinker/structura/internal/api/handler/api"
	"github.com/newthinker/structura/internal/api/job"
	"github.com/newthinker/structura/internal/api/middleware"
	"github.com/newthinker/structura/internal/api/response"
	"github.com/newthinker/structura/internal/backtest"
	"github.com/newthinker/structura/internal/core"
	"github.com/newthinker/structura/internal/metrics"
	"github.com/newthinker/structura/internal/strategy"
)

const (
	healthPath = "/api/health"
	maxJobs    = 100
	jobTTL     = time.Hour
)

// StatusApp is what the server reads from the running app.
type StatusApp interface {
	Last() *analysis.Result
	GetStats() map[string]any
	Bars() []core.Bar
}

// Server represents the HTTP status server
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
	version    string
}

// Config holds server configuration
type Config struct {
	Addr   string
	APIKey string
	// Version is reported by the health endpoint.
	Version string
	// MetricsPath mounts the Prometheus handler when Dependencies.Metrics
	// is set.
	MetricsPath string
}

// Dependencies are the components the routes read from.
type Dependencies struct {
	App        StatusApp
	Strategies *strategy.Engine
	// Backtest supplies every backtest job field except the strategy.
	Backtest backtest.Request
	Metrics  *metrics.Registry
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.App == nil || deps.Strategies == nil {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("api server needs an app and a strategy engine"))
	}

	mux := http.NewServeMux()
	s := &Server{
		logger:  logger,
		mux:     mux,
		version: cfg.Version,
	}
	s.setupRoutes(cfg, deps)

	public := []string{healthPath}
	if deps.Metrics != nil && cfg.MetricsPath != "" {
		public = append(public, cfg.MetricsPath)
	}

	var h http.Handler = middleware.APIKeyAuth(cfg.APIKey, public...)(mux)
	if deps.Metrics != nil {
		h = metrics.HTTPMiddleware(deps.Metrics)(h)
	}
	h = metrics.LoggingMiddleware(logger)(h)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config, deps Dependencies) {
	analysisHandler := handler.NewAnalysisHandler(deps.App)
	backtestHandler := handler.NewBacktestHandler(
		job.NewStore(maxJobs, jobTTL), deps.Strategies, deps.App, deps.Backtest, s.logger)

	s.mux.HandleFunc("GET "+healthPath, s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/stats", analysisHandler.Stats)
	s.mux.HandleFunc("GET /api/v1/analysis", analysisHandler.Latest)
	s.mux.HandleFunc("GET /api/v1/replay", analysisHandler.Replay)
	s.mux.HandleFunc("GET /api/v1/replay/{id}", analysisHandler.ReplayTrade)
	s.mux.HandleFunc("GET /api/v1/strategies", s.strategiesHandler(deps.Strategies))
	s.mux.HandleFunc("POST /api/v1/backtests", backtestHandler.Create)
	s.mux.HandleFunc("GET /api/v1/backtests", backtestHandler.List)
	s.mux.HandleFunc("GET /api/v1/backtests/{id}", backtestHandler.GetStatus)

	if deps.Metrics != nil && cfg.MetricsPath != "" {
		s.mux.Handle("GET "+cfg.MetricsPath, promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok"}
	if s.version != "" {
		resp["version"] = s.version
	}
	response.JSON(w, http.StatusOK, resp)
}

func (s *Server) strategiesHandler(e *strategy.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := make([]map[string]string, 0)
		for _, st := range e.GetAll() {
			out = append(out, map[string]string{"name": st.Name(), "description": st.Description()})
		}
		response.JSON(w, http.StatusOK, out)
	}
}
