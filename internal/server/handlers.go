package server

import (
	"context"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"sql-intelligence/internal/query"
	"sql-intelligence/internal/schema"
	"sql-intelligence/internal/validator"
	"sql-intelligence/pkg/models"
)

type generateRequest struct {
	Question    string `json:"question"`
	SchemaHint  string `json:"schema_hint"`
	DatabaseURI string `json:"database_uri,omitempty"`
}

type optimizeRequest struct {
	SQL    string `json:"sql"`
	Schema string `json:"schema"`
}

type sqlRequest struct {
	SQL string `json:"sql"`
}

type compareRequest struct {
	Original  string `json:"original"`
	Optimized string `json:"optimized"`
}

type shapeRequest struct {
	SQL       string `json:"sql"`
	Optimized string `json:"optimized,omitempty"`
}

type optimizeResponse struct {
	models.OptimizationOutcome
	Shape query.ShapeDelta `json:"shape"`
}

type shapeResponse struct {
	Shape          query.Shape       `json:"shape"`
	OptimizedShape *query.Shape      `json:"optimized_shape,omitempty"`
	Delta          *query.ShapeDelta `json:"delta,omitempty"`
}

type validateResponse struct {
	SQL    string `json:"sql"`
	Safe   bool   `json:"safe"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.DatabaseURI != "" && !slices.Contains(s.deps.SchemaURIs, req.DatabaseURI) {
		jsonError(w, "database_uri is not allowed", http.StatusForbidden)
		return
	}

	sql, err := s.deps.Generator.Generate(r.Context(), models.GenerationRequest{
		Question:    req.Question,
		SchemaHint:  s.schemaHint(req.SchemaHint),
		DatabaseURI: req.DatabaseURI,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, map[string]string{"sql": sql})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if !s.requireRunner(w) {
		return
	}
	var req generateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := s.deps.Runner.Ask(r.Context(), req.Question, s.schemaHint(req.SchemaHint))
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, result)
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	outcome, err := s.deps.Optimizer.Optimize(r.Context(), req.SQL, s.schemaHint(req.Schema))
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, optimizeResponse{
		OptimizationOutcome: outcome,
		Shape:               query.CompareShapes(outcome.Original, outcome.Optimized),
	})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if !s.requireRunner(w) {
		return
	}
	var req sqlRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), executeTimeout)
	defer cancel()

	result, err := s.deps.Runner.Execute(ctx, req.SQL)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, result)
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	if !s.requireRunner(w) {
		return
	}
	var req compareRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*executeTimeout)
	defer cancel()

	cmp, err := s.deps.Runner.Compare(ctx, req.Original, req.Optimized)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, cmp)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req sqlRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	stmt := validator.Sanitize(req.SQL)
	ok, reason := validator.IsSafe(stmt)
	jsonResponse(w, validateResponse{SQL: stmt, Safe: ok, Reason: reason})
}

func (s *Server) handleShape(w http.ResponseWriter, r *http.Request) {
	var req shapeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		jsonError(w, "sql is required", http.StatusBadRequest)
		return
	}

	resp := shapeResponse{Shape: query.MeasureShape(req.SQL)}
	if strings.TrimSpace(req.Optimized) != "" {
		opt := query.MeasureShape(req.Optimized)
		delta := query.CompareShapes(req.SQL, req.Optimized)
		resp.OptimizedShape, resp.Delta = &opt, &delta
	}
	jsonResponse(w, resp)
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	if !s.requireRunner(w) {
		return
	}
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))

	text, err := s.overview(r.Context(), refresh)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, map[string]string{"overview": text})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := map[string]interface{}{
		"providers":    s.deps.Registry.Status(),
		"db_connected": s.deps.Runner != nil,
	}
	if s.deps.Generator != nil {
		status["dialect"] = s.deps.Generator.Dialect()
	}
	jsonResponse(w, status)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, map[string]string{"status": "ok"})
}

func (s *Server) requireRunner(w http.ResponseWriter) bool {
	if s.deps.Runner == nil {
		jsonError(w, "데이터베이스에 연결되어 있지 않습니다", http.StatusServiceUnavailable)
		return false
	}
	return true
}

// schemaHint DDL 로 보이면 개요 형식으로 줄이고, 아니면 그대로
func (s *Server) schemaHint(raw string) string {
	if !schema.LooksLikeDDL(raw) {
		return raw
	}
	parsed, err := schema.ParseDDL(raw, s.deps.DBType)
	if err != nil {
		s.logger.Debug("DDL 힌트 파싱 실패, 원문 사용", "error", err)
		return raw
	}
	return schema.Overview(parsed, 0, 0)
}
