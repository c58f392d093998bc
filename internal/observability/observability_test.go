package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sql-intelligence/internal/ai"
	"sql-intelligence/internal/config"
	"sql-intelligence/pkg/models"
)

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Defaults("sqli-test")
	cfg.Log.Format = "json"
	cfg.Log.Level = "debug"

	NewLogger(cfg, &buf).Debug("hello", "k", "v")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "sqli-test", entry["service"])
	assert.Equal(t, "v", entry["k"])
}

func TestNewLoggerTextRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Defaults("sqli-test")
	cfg.Log.Level = "warn"

	logger := NewLogger(cfg, &buf)
	logger.Info("hidden")
	assert.Empty(t, buf.String())

	logger.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestTraceMiddleware(t *testing.T) {
	var seen string
	handler := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(TraceHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TraceHeader, "given-id")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "given-id", seen)
	assert.Equal(t, "given-id", rec.Header().Get(TraceHeader))
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := TraceMiddleware(LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short"))
	})))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/generate", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "http_request", entry["msg"])
	assert.Equal(t, "/api/generate", entry["path"])
	assert.EqualValues(t, http.StatusTeapot, entry["status"])
	assert.EqualValues(t, 5, entry["bytes"])
	assert.NotEmpty(t, entry["trace_id"])
}

func TestMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	router := mux.NewRouter()
	router.Use(MetricsMiddleware)
	router.HandleFunc("/api/tables/{name}", func(w http.ResponseWriter, r *http.Request) {}).Methods(http.MethodGet)

	counter := httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/tables/{name}", "200")
	before := testutil.ToFloat64(counter)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/tables/orders", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/tables/users", nil))

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}

func TestDomainCounters(t *testing.T) {
	attempt := providerAttemptsTotal.WithLabelValues("OpenAI", "gpt-5", "success")
	quota := providerAttemptsTotal.WithLabelValues("OpenAI", "gpt-4o", "quota")
	a0, q0 := testutil.ToFloat64(attempt), testutil.ToFloat64(quota)

	ObserveProviderAttempt(models.OpenAI, "gpt-5", ai.ClassNone)
	ObserveProviderAttempt(models.OpenAI, "gpt-4o", ai.ClassQuota)
	assert.Equal(t, a0+1, testutil.ToFloat64(attempt))
	assert.Equal(t, q0+1, testutil.ToFloat64(quota))

	none := generationsTotal.WithLabelValues("none", "exhausted")
	n0 := testutil.ToFloat64(none)
	ObserveGeneration("", "exhausted")
	assert.Equal(t, n0+1, testutil.ToFloat64(none))

	heuristic := optimizationsTotal.WithLabelValues("heuristic")
	h0 := testutil.ToFloat64(heuristic)
	ObserveOptimization("heuristic")
	assert.Equal(t, h0+1, testutil.ToFloat64(heuristic))
}
