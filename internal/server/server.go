// Package server SQL 생성/최적화/실행 HTTP JSON API
package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/cors"

	"sql-intelligence/internal/ai"
	"sql-intelligence/internal/observability"
	"sql-intelligence/internal/query"
	"sql-intelligence/pkg/models"
)

const (
	overviewKey      = "overview"
	defaultSchemaTTL = 5 * time.Minute
	maxRequestBody   = 1 << 20
	executeTimeout   = 60 * time.Second
	describeTimeout  = 30 * time.Second
)

// Dependencies 서버가 사용하는 구성 요소. Runner 가 nil 이면 실행 계열 API 는 503
type Dependencies struct {
	Registry  *ai.ProviderRegistry
	Generator *query.Generator
	Optimizer *query.Optimizer
	Runner    *query.Runner

	// DBType 요청의 DDL 스키마 힌트 파싱 방언
	DBType         models.DBType
	SchemaCacheTTL time.Duration
	AllowedOrigins []string
	// SchemaURIs database_uri 로 받을 수 있는 URI. 비어 있으면 모두 거부
	SchemaURIs []string
	Logger     *slog.Logger
}

// Server HTTP 핸들러 모음
type Server struct {
	deps   Dependencies
	logger *slog.Logger
	cache  *ttlcache.Cache[string, string]
}

// New 서버 생성. Close 로 캐시 정리 고루틴을 멈춘다
func New(deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	ttl := deps.SchemaCacheTTL
	if ttl <= 0 {
		ttl = defaultSchemaTTL
	}

	cache := ttlcache.New[string, string](
		ttlcache.WithTTL[string, string](ttl),
		ttlcache.WithDisableTouchOnHit[string, string](),
	)
	go cache.Start()

	return &Server{deps: deps, logger: logger, cache: cache}
}

// Close 캐시 정리 중지
func (s *Server) Close() {
	s.cache.Stop()
}

// Handler 라우터와 미들웨어를 묶은 핸들러
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(observability.TraceMiddleware, observability.LoggingMiddleware(s.logger), observability.MetricsMiddleware)
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		jsonError(w, "not found", http.StatusNotFound)
	})

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/generate", s.handleGenerate).Methods(http.MethodPost)
	api.HandleFunc("/ask", s.handleAsk).Methods(http.MethodPost)
	api.HandleFunc("/optimize", s.handleOptimize).Methods(http.MethodPost)
	api.HandleFunc("/execute", s.handleExecute).Methods(http.MethodPost)
	api.HandleFunc("/compare", s.handleCompare).Methods(http.MethodPost)
	api.HandleFunc("/validate", s.handleValidate).Methods(http.MethodPost)
	api.HandleFunc("/metrics/shape", s.handleShape).Methods(http.MethodPost)
	api.HandleFunc("/schema", s.handleSchema).Methods(http.MethodGet)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	origins := s.deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", observability.TraceHeader},
		ExposedHeaders: []string{observability.TraceHeader},
	}).Handler(r)
}

// overview 스키마 개요. TTL 캐시를 거친다
func (s *Server) overview(ctx context.Context, refresh bool) (string, error) {
	if !refresh {
		if item := s.cache.Get(overviewKey); item != nil {
			return item.Value(), nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, describeTimeout)
	defer cancel()

	text, err := s.deps.Runner.Describe(ctx)
	if err != nil {
		return "", err
	}
	s.cache.Set(overviewKey, text, ttlcache.DefaultTTL)
	return text, nil
}
