package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/newthinker/structura/internal/app"
	"github.com/newthinker/structura/internal/config"
	"github.com/newthinker/structura/internal/metrics"
	"github.com/newthinker/structura/internal/strategy/smc"
)

func newTestServer(t *testing.T, cfg Config, withMetrics bool) *Server {
	t.Helper()
	a := app.New(config.Defaults(), nil, zap.NewNop())
	a.RegisterStrategy(smc.New())

	deps := Dependencies{App: a, Strategies: a.Strategies()}
	if withMetrics {
		deps.Metrics = metrics.NewRegistry()
	}
	srv, err := NewServer(cfg, deps, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv
}

func get(srv *Server, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t, Config{Addr: ":0", APIKey: "test-key"}, false)

	w := get(srv, "/api/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected request id header")
	}
	if strings.Contains(w.Body.String(), "version") {
		t.Errorf("expected no version when unset, got %s", w.Body.String())
	}
}

func TestServer_HealthReportsVersion(t *testing.T) {
	srv := newTestServer(t, Config{Version: "v1.4.0"}, false)

	w := get(srv, "/api/health", "")
	if !strings.Contains(w.Body.String(), `"version":"v1.4.0"`) {
		t.Errorf("expected version in %s", w.Body.String())
	}
}

func TestServer_APIAuth_Required(t *testing.T) {
	srv := newTestServer(t, Config{APIKey: "test-key"}, false)

	if w := get(srv, "/api/v1/stats", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without key, got %d", w.Code)
	}
	if w := get(srv, "/api/v1/stats", "test-key"); w.Code != http.StatusOK {
		t.Errorf("expected 200 with key, got %d", w.Code)
	}
}

func TestServer_APIAuth_Disabled(t *testing.T) {
	srv := newTestServer(t, Config{}, false)

	if w := get(srv, "/api/v1/stats", ""); w.Code != http.StatusOK {
		t.Errorf("expected 200 with disabled auth, got %d", w.Code)
	}
}

func TestServer_AnalysisBeforeFirstPass(t *testing.T) {
	srv := newTestServer(t, Config{}, false)

	if w := get(srv, "/api/v1/analysis", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 before the first pass, got %d", w.Code)
	}
}

func TestServer_Strategies(t *testing.T) {
	srv := newTestServer(t, Config{}, false)

	w := get(srv, "/api/v1/strategies", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"name":"smc"`) {
		t.Errorf("expected smc in %s", w.Body.String())
	}
}

func TestServer_Metrics(t *testing.T) {
	srv := newTestServer(t, Config{APIKey: "test-key", MetricsPath: "/metrics"}, true)

	get(srv, "/api/health", "")
	w := get(srv, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected public metrics endpoint, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "http_requests_total") {
		t.Error("expected request counter in metrics output")
	}
}

func TestServer_NoMetricsWithoutRegistry(t *testing.T) {
	srv := newTestServer(t, Config{MetricsPath: "/metrics"}, false)

	if w := get(srv, "/metrics", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 without a registry, got %d", w.Code)
	}
}

func TestNewServer_MissingDependencies(t *testing.T) {
	if _, err := NewServer(Config{}, Dependencies{}, nil); err == nil {
		t.Error("expected error without app")
	}
}
