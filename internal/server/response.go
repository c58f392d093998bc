package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"sql-intelligence/internal/ai"
	"sql-intelligence/internal/db"
	"sql-intelligence/internal/query"
)

// APIResponse 공통 응답
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(APIResponse{Success: true, Data: data})
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse{Success: false, Error: msg})
}

func writeError(w http.ResponseWriter, err error) {
	jsonError(w, err.Error(), errorStatus(err))
}

// errorStatus 오류 종류별 HTTP 상태
func errorStatus(err error) int {
	var unsafe *query.UnsafeSQLError
	var execErr *db.ExecError

	switch {
	case errors.Is(err, query.ErrEmptyQuestion), errors.Is(err, query.ErrEmptyInput):
		return http.StatusBadRequest
	case errors.As(err, &unsafe):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ai.ErrNoCredential), errors.Is(err, db.ErrNotConnected):
		return http.StatusServiceUnavailable
	case errors.Is(err, query.ErrAllProvidersExhausted):
		return http.StatusBadGateway
	case errors.As(err, &execErr):
		switch execErr.Kind {
		case db.KindRejected, db.KindObjectNotFound, db.KindProgramming:
			return http.StatusUnprocessableEntity
		case db.KindOperational:
			return http.StatusServiceUnavailable
		}
		return http.StatusInternalServerError
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		jsonError(w, "잘못된 요청: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}
