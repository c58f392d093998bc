package ai

import (
	"context"

	"sql-intelligence/pkg/models"
)

// Adapter LLM 제공자 어댑터 인터페이스
type Adapter interface {
	// Name 제공자 이름
	Name() models.ProviderName

	// Models 기본 모델 래더
	Models() []string

	// Complete 모델 래더를 따라 요청을 보내고 첫 번째 텍스트 응답을 반환
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompletionRequest 제공자 공통 완성 요청
type CompletionRequest struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int      // 0 이면 어댑터 기본값
	Models      []string // 비어 있으면 어댑터 기본 래더
}

func (r CompletionRequest) modelsOr(defaults []string) []string {
	if len(r.Models) > 0 {
		return r.Models
	}
	return defaults
}

func (r CompletionRequest) tokensOr(def int) int {
	if r.MaxTokens > 0 {
		return r.MaxTokens
	}
	return def
}

// GenerateSQL 질의를 어댑터에 보내 후처리된 SQL 후보를 반환
func GenerateSQL(ctx context.Context, a Adapter, question, schemaHint, dialect string) (string, error) {
	text, err := a.Complete(ctx, GenerationPrompt(question, schemaHint, dialect))
	if err != nil {
		return "", err
	}
	sql := CleanSQL(text)
	if sql == "" {
		return "", &AttemptsFailedError{
			Provider: a.Name(),
			Attempts: []models.ProviderAttemptResult{{
				Provider: a.Name(),
				Class:    string(ClassEmptyOutput),
				Err:      errEmptyOutput.Error(),
			}},
		}
	}
	return sql, nil
}
