package ai

import (
	"errors"
	"fmt"
	"strings"

	"sql-intelligence/pkg/models"
)

// ErrorClass 제공자 오류 분류
type ErrorClass string

const (
	ClassNone                 ErrorClass = ""
	ClassQuota                ErrorClass = "quota"
	ClassUnsupportedParameter ErrorClass = "unsupported_parameter"
	ClassEmptyOutput          ErrorClass = "empty_output"
	ClassCanceled             ErrorClass = "canceled"
	ClassOther                ErrorClass = "other"
)

// ErrNoCredential 기본 제공자 자격 증명 없음
var ErrNoCredential = errors.New("OPENAI_API_KEY missing")

var errEmptyOutput = errors.New("model returned empty output")

var quotaMarkers = []string{"insufficient_quota", "rate limit", "rate_limit", "429", "resource_exhausted", "resourceexhausted"}

// classifyMessage 오류 메시지 문자열로 분류. 타입 기반 분류가 실패했을 때 사용
func classifyMessage(err error) ErrorClass {
	if err == nil {
		return ClassNone
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range quotaMarkers {
		if strings.Contains(msg, marker) {
			return ClassQuota
		}
	}
	if isUnsupportedParameter(msg) {
		return ClassUnsupportedParameter
	}
	return ClassOther
}

func isUnsupportedParameter(msg string) bool {
	if strings.Contains(msg, "unsupported parameter") || strings.Contains(msg, "unsupported_parameter") {
		return true
	}
	if !strings.Contains(msg, "temperature") {
		return false
	}
	for _, hint := range []string{"unsupported", "not support", "must be", "invalid"} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}

// QuotaExhaustedError 모든 모델이 실패했고 그중 할당량/속도 제한 오류가 있었음
type QuotaExhaustedError struct {
	Provider models.ProviderName
	Attempts []models.ProviderAttemptResult
}

func (e *QuotaExhaustedError) Error() string {
	return fmt.Sprintf("%s quota or rate limit exhausted for models [%s]. "+
		"Rotate the %s API key or reduce the model list (FALLBACK_OPENAI_MODELS for OpenAI). Errors: %s",
		e.Provider, strings.Join(attemptedModels(e.Attempts), ", "), e.Provider, joinAttempts(e.Attempts))
}

// Models 시도한 모델 목록
func (e *QuotaExhaustedError) Models() []string {
	return attemptedModels(e.Attempts)
}

// AttemptsFailedError 할당량 외 사유로 모든 모델이 실패
type AttemptsFailedError struct {
	Provider models.ProviderName
	Attempts []models.ProviderAttemptResult
	Cause    error // 컨텍스트 취소/만료 시 설정
}

func (e *AttemptsFailedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s attempts aborted: %v", e.Provider, e.Cause)
	}
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("%s all attempts failed: no models configured", e.Provider)
	}
	return fmt.Sprintf("%s all attempts failed: %s", e.Provider, joinAttempts(e.Attempts))
}

func (e *AttemptsFailedError) Unwrap() error {
	return e.Cause
}

// ClassOf 오류를 분류 값으로 변환
func ClassOf(err error) ErrorClass {
	var quota *QuotaExhaustedError
	if errors.As(err, &quota) {
		return ClassQuota
	}
	var failed *AttemptsFailedError
	if errors.As(err, &failed) && failed.Cause != nil {
		return ClassCanceled
	}
	if err == nil {
		return ClassNone
	}
	return ClassOther
}

func attemptedModels(attempts []models.ProviderAttemptResult) []string {
	seen := make(map[string]bool, len(attempts))
	var out []string
	for _, a := range attempts {
		if !seen[a.Model] {
			seen[a.Model] = true
			out = append(out, a.Model)
		}
	}
	return out
}

func joinAttempts(attempts []models.ProviderAttemptResult) string {
	parts := make([]string, 0, len(attempts))
	for _, a := range attempts {
		parts = append(parts, fmt.Sprintf("%s: %s", a.Model, a.Err))
	}
	return strings.Join(parts, " | ")
}

func errMissingKey(env string) error {
	return fmt.Errorf("%s 미설정", env)
}
