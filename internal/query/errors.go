package query

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAllProvidersExhausted 모든 생성 경로 실패
	ErrAllProvidersExhausted = errors.New("SQL generation failed across providers")
	// ErrEmptyInput 최적화할 SQL 없음
	ErrEmptyInput = errors.New("Empty SQL provided for optimization")
	// ErrEmptyQuestion 생성할 질의 없음
	ErrEmptyQuestion = errors.New("question is empty")
)

// ProviderFailure 제공자별 실패 사유
type ProviderFailure struct {
	Provider string
	Err      error
}

// AllProvidersExhaustedError 제공자별 실패 사유를 모은 오류
type AllProvidersExhaustedError struct {
	Failures []ProviderFailure
}

func (e *AllProvidersExhaustedError) Error() string {
	if len(e.Failures) == 0 {
		return ErrAllProvidersExhausted.Error() + ". Details: no providers available"
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Provider, f.Err))
	}
	return ErrAllProvidersExhausted.Error() + ". Details: " + strings.Join(parts, "; ")
}

func (e *AllProvidersExhaustedError) Is(target error) bool {
	return target == ErrAllProvidersExhausted
}

// UnsafeSQLError 검증기가 거부한 SQL
type UnsafeSQLError struct {
	SQL    string
	Reason string
	Source string
}

func (e *UnsafeSQLError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("unsafe SQL from %s rejected: %s", e.Source, e.Reason)
	}
	return "unsafe SQL rejected: " + e.Reason
}
