package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sql-intelligence/internal/ai"
	"sql-intelligence/pkg/models"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqli_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqli_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	providerAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqli_provider_attempts_total",
			Help: "Model attempts by provider, model and outcome class.",
		},
		[]string{"provider", "model", "class"},
	)

	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqli_generations_total",
			Help: "SQL generation results by winning source.",
		},
		[]string{"source", "outcome"},
	)

	optimizationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqli_optimizations_total",
			Help: "Optimization results by the path that produced the output.",
		},
		[]string{"source"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		providerAttemptsTotal,
		generationsTotal,
		optimizationsTotal,
	)
}

// ObserveProviderAttempt ai.AttemptObserver 구현. 성공은 class "success"
func ObserveProviderAttempt(provider models.ProviderName, model string, class ai.ErrorClass) {
	label := string(class)
	if class == ai.ClassNone {
		label = "success"
	}
	providerAttemptsTotal.WithLabelValues(string(provider), model, label).Inc()
}

// ObserveGeneration 생성 결과 기록. source 가 없으면 "none"
func ObserveGeneration(source, outcome string) {
	if source == "" {
		source = "none"
	}
	generationsTotal.WithLabelValues(source, outcome).Inc()
}

// ObserveOptimization 최적화 결과 기록
func ObserveOptimization(source string) {
	optimizationsTotal.WithLabelValues(source).Inc()
}

// MetricsHandler /metrics 핸들러
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

var _ ai.AttemptObserver = ObserveProviderAttempt
