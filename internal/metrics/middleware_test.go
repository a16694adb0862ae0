package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"

	"github.com/newthinker/structura/internal/api"
	"github.com/newthinker/structura/internal/app"
	"github.com/newthinker/structura/internal/config"
	"github.com/newthinker/structura/internal/metrics"
	"github.com/newthinker/structura/internal/strategy/smc"
)

// statusServer builds the status API the watch command serves, with its
// metrics and logging middleware in place.
func statusServer(t *testing.T, cfg api.Config, reg *metrics.Registry, logger *zap.Logger) http.Handler {
	t.Helper()
	a := app.New(config.Defaults(), nil, zap.NewNop())
	a.RegisterStrategy(smc.New())

	srv, err := api.NewServer(cfg, api.Dependencies{
		App:        a,
		Strategies: a.Strategies(),
		Metrics:    reg,
	}, logger)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv.Handler()
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

// findMetric returns the series of family name whose labels include all
// of want, or nil.
func findMetric(t *testing.T, reg *metrics.Registry, name string, want map[string]string) *dto.Metric {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			match := true
			for k, v := range want {
				if labels[k] != v {
					match = false
					break
				}
			}
			if match {
				return m
			}
		}
	}
	return nil
}

func TestHTTPMiddleware_BacktestJobsShareOneRoute(t *testing.T) {
	reg := metrics.NewRegistry()
	h := statusServer(t, api.Config{}, reg, zap.NewNop())

	for _, id := range []string{"job-a", "job-b", "job-c"} {
		if w := serve(h, "GET", "/api/v1/backtests/"+id); w.Code != http.StatusNotFound {
			t.Fatalf("GET backtest %s: expected 404, got %d", id, w.Code)
		}
	}

	m := findMetric(t, reg, "http_requests_total", map[string]string{
		"method": "GET", "path": "/api/v1/backtests/{id}", "status": "4xx",
	})
	if m == nil {
		t.Fatal("expected a request counter for the backtest job route")
	}
	if got := m.GetCounter().GetValue(); got != 3 {
		t.Errorf("expected 3 requests on the job route, got %v", got)
	}
	if findMetric(t, reg, "http_requests_total", map[string]string{"path": "/api/v1/backtests/job-a"}) != nil {
		t.Error("job ids must not become path labels")
	}
}

func TestHTTPMiddleware_AnalysisBeforeAndAfterStats(t *testing.T) {
	reg := metrics.NewRegistry()
	h := statusServer(t, api.Config{}, reg, zap.NewNop())

	serve(h, "GET", "/api/v1/analysis")
	serve(h, "GET", "/api/v1/stats")
	serve(h, "GET", "/api/v1/stats")

	tests := []struct {
		path   string
		status string
		want   float64
	}{
		{"/api/v1/analysis", "4xx", 1},
		{"/api/v1/stats", "2xx", 2},
	}
	for _, tt := range tests {
		m := findMetric(t, reg, "http_requests_total", map[string]string{"path": tt.path, "status": tt.status})
		if m == nil {
			t.Errorf("no counter for %s %s", tt.path, tt.status)
			continue
		}
		if got := m.GetCounter().GetValue(); got != tt.want {
			t.Errorf("%s: expected %v requests, got %v", tt.path, tt.want, got)
		}
	}

	d := findMetric(t, reg, "http_request_duration_seconds", map[string]string{"path": "/api/v1/stats"})
	if d == nil || d.GetHistogram().GetSampleCount() != 2 {
		t.Errorf("expected 2 duration samples for stats, got %v", d)
	}
}

func TestHTTPMiddleware_InFlightSettles(t *testing.T) {
	reg := metrics.NewRegistry()
	h := statusServer(t, api.Config{}, reg, zap.NewNop())

	serve(h, "GET", "/api/v1/strategies")
	serve(h, "POST", "/api/v1/backtests")

	m := findMetric(t, reg, "http_requests_in_flight", nil)
	if m == nil {
		t.Fatal("expected the in-flight gauge")
	}
	if got := m.GetGauge().GetValue(); got != 0 {
		t.Errorf("expected no requests in flight, got %v", got)
	}
}

func TestHTTPMiddleware_UnmatchedPathKeepsRawPath(t *testing.T) {
	reg := metrics.NewRegistry()
	h := statusServer(t, api.Config{}, reg, zap.NewNop())

	if w := serve(h, "GET", "/api/v1/unknown"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if findMetric(t, reg, "http_requests_total", map[string]string{"path": "/api/v1/unknown", "status": "4xx"}) == nil {
		t.Error("expected unmatched request labelled with its path")
	}
}
