package app

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paroquia-cms/paroquia-cms/internal/entities"
	"github.com/paroquia-cms/paroquia-cms/internal/observability"
	"github.com/paroquia-cms/paroquia-cms/internal/rbac"
	"github.com/paroquia-cms/paroquia-cms/internal/resource"
	resourcehttp "github.com/paroquia-cms/paroquia-cms/internal/resource/http"
)

func newTestRouter(t *testing.T, cfg *Config) (http.Handler, *observability.Metrics) {
	t.Helper()
	registry, err := entities.NewRegistry()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetrics()
	deps := resourcehttp.Deps{
		Logger: logger,
		Engine: resource.NewEngine(resource.NewMemoryStore(nil)),
		RBAC:   rbac.Middleware{Service: rbac.NewService()},
	}
	handlers := map[string]*resourcehttp.Handler{}
	for _, name := range entities.Content {
		handlers[name] = resourcehttp.NewHandler(registry.MustGet(name), deps)
	}
	router := NewRouter(RouterParams{
		Logger:           logger,
		Config:           cfg,
		ResourceHandlers: handlers,
		Metrics:          metrics,
	})
	return router, metrics
}

func TestRouterBasics(t *testing.T) {
	router, _ := newTestRouter(t, &Config{RateLimitPerMinute: 100})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	var env struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.False(t, env.Success)
	assert.Equal(t, "not found", env.Message)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/news/active", nil))
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "paroquia_http_requests_total"))
}

func TestRouterRateLimit(t *testing.T) {
	router, _ := newTestRouter(t, &Config{RateLimitPerMinute: 2})
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "198.51.100.4:1234"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestLoginLimiterUsesConfiguredBudget(t *testing.T) {
	limited := LoginLimiter(&Config{LoginRateLimitPerMinute: 1})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "198.51.100.9:1234"
		rr := httptest.NewRecorder()
		limited.ServeHTTP(rr, req)
		return rr
	}
	assert.Equal(t, http.StatusNoContent, send().Code)
	rr := send()
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Contains(t, rr.Body.String(), "too many login attempts")
}
