package query

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"sql-intelligence/internal/ai"
	"sql-intelligence/internal/validator"
	"sql-intelligence/pkg/models"
)

const minOptimizedLength = 20

// 최적화 결과 출처
const (
	SourceLLM       = "llm"
	SourceHeuristic = "heuristic"
	SourceReverted  = "reverted"
)

var commentaryEnd = regexp.MustCompile(`(?i)\(?\b(select|with)\b`)

// OptimizerConfig 최적화기 설정
type OptimizerConfig struct {
	Models  []string // 기본: ai.DefaultOptimizationModels
	Dialect string
	Logger  *slog.Logger
	Observe func(source string)
}

// Optimizer 기본 제공자로 쿼리를 재작성하고 실패 시 휴리스틱/원본으로 후퇴
type Optimizer struct {
	primary ai.Adapter
	models  []string
	dialect string
	logger  *slog.Logger
	observe func(source string)
}

// NewOptimizer 최적화기 생성. 기본 제공자가 없으면 Optimize 가 ErrNoCredential 반환
func NewOptimizer(registry *ai.ProviderRegistry, cfg OptimizerConfig) *Optimizer {
	primary, _ := registry.Primary()

	modelList := cfg.Models
	if len(modelList) == 0 {
		modelList = ai.DefaultOptimizationModels
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Optimizer{
		primary: primary,
		models:  modelList,
		dialect: cfg.Dialect,
		logger:  logger,
		observe: cfg.Observe,
	}
}

// Optimize 쿼리 최적화. 전제 조건 위반 외에는 오류를 반환하지 않는다
func (o *Optimizer) Optimize(ctx context.Context, originalSQL, schemaText string) (models.OptimizationOutcome, error) {
	if o.primary == nil {
		return models.OptimizationOutcome{}, ai.ErrNoCredential
	}

	cleaned := validator.Sanitize(strings.Trim(strings.TrimSpace(originalSQL), "`"))
	if cleaned == "" {
		return models.OptimizationOutcome{}, ErrEmptyInput
	}

	optimized, source := o.run(ctx, cleaned, schemaText)
	if o.observe != nil {
		o.observe(source)
	}

	return models.OptimizationOutcome{
		Original:  cleaned,
		Optimized: optimized,
		Changed:   normalizeSQL(optimized) != normalizeSQL(cleaned),
	}, nil
}

func (o *Optimizer) run(ctx context.Context, cleaned, schemaText string) (result, source string) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("최적화 중 패닉, 원본 반환", "panic", r)
			result, source = cleaned, SourceReverted
		}
	}()

	req := ai.OptimizationPrompt(cleaned, schemaText, o.dialect)
	req.Models = o.models

	optimized := ""
	if text, err := o.primary.Complete(ctx, req); err != nil {
		o.logger.Warn("LLM 최적화 실패, 휴리스틱 사용", "error", err, "class", string(ai.ClassOf(err)))
	} else {
		optimized = ai.CleanSQL(text)
	}

	source = SourceLLM
	if len(optimized) < minOptimizedLength || normalizeSQL(optimized) == normalizeSQL(cleaned) {
		optimized = Rewrite(cleaned)
		source = SourceHeuristic
	}

	optimized = trimCommentary(optimized)
	optimized = validator.Sanitize(optimized)

	if ok, reason := validator.IsSafe(optimized); !ok {
		o.logger.Warn("최적화 결과 거부, 원본 반환", "reason", reason)
		return cleaned, SourceReverted
	}
	if len(optimized) < minOptimizedLength {
		return cleaned, SourceReverted
	}
	return optimized, source
}

// trimCommentary 첫 select/with 앞의 설명 문구 제거
func trimCommentary(sql string) string {
	loc := commentaryEnd.FindStringIndex(sql)
	if loc == nil || loc[0] == 0 {
		return sql
	}
	return sql[loc[0]:]
}

// normalizeSQL 대소문자와 공백을 무시한 비교용 형태
func normalizeSQL(sql string) string {
	return strings.ToLower(strings.Join(strings.Fields(sql), ""))
}
