package diagnostics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"deployctl/internal/checks"
	"deployctl/internal/config"
)

type staticCheck struct {
	name string
	err  error
}

func (c *staticCheck) Name() string { return c.name }

func (c *staticCheck) Run(context.Context) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	return "ok", nil
}

func testServer(t *testing.T, set []checks.Check) *Server {
	t.Helper()
	cfg := &config.Config{
		Web: config.WebConfig{Debug: true},
	}
	runner := checks.NewRunner(set, zap.NewNop()).WithTimeout(time.Second)
	return NewServer(cfg, runner, ":0", time.Minute, zap.NewNop())
}

// Один роутер на весь тест: ginprometheus регистрирует метрики в глобальном
// реестре и повторная регистрация привела бы к панике.
func TestServer(t *testing.T) {
	healthy := &staticCheck{name: "cache/redis"}
	broken := &staticCheck{name: "database/postgresql", err: errors.New("connection refused")}

	server := testServer(t, []checks.Check{healthy, broken})
	router := server.Router()

	t.Run("Health always responds ok", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	})

	t.Run("Ready reports unknown before the first round", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "unknown")
	})

	t.Run("Ready serves the latest report", func(t *testing.T) {
		server.runChecks(context.Background())

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var report checks.Report
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
		require.Len(t, report.Results, 2)
		assert.False(t, report.OK())
	})

	t.Run("Metrics endpoint is wired", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "deployctl_check_up")
	})
}

func TestCorsOrigins(t *testing.T) {
	t.Run("Derived from allowed hosts", func(t *testing.T) {
		s := &Server{cfg: &config.Config{Web: config.WebConfig{AllowedHosts: "example.org,api.example.org"}}}
		assert.Equal(t, []string{
			"https://example.org", "http://example.org",
			"https://api.example.org", "http://api.example.org",
		}, s.corsOrigins())
	})

	t.Run("Wildcard host allows all", func(t *testing.T) {
		s := &Server{cfg: &config.Config{Web: config.WebConfig{AllowedHosts: "*"}}}
		assert.Nil(t, s.corsOrigins())
	})

	t.Run("No hosts configured", func(t *testing.T) {
		s := &Server{cfg: &config.Config{}}
		assert.Empty(t, s.corsOrigins())
	})
}
