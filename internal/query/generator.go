package query

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"sql-intelligence/internal/ai"
	"sql-intelligence/internal/validator"
	"sql-intelligence/pkg/models"
)

// DefaultDeadline 생성 전체 제한 시간 기본값
const DefaultDeadline = 120 * time.Second

const (
	sourceSchemaChain = "schema_chain"
	sourceDeadline    = "deadline"
)

// 생성 결과
const (
	OutcomeGenerated = "generated"
	OutcomeExhausted = "exhausted"
	OutcomeUnsafe    = "unsafe"
)

// GeneratorConfig 생성기 설정
type GeneratorConfig struct {
	Dialect  string
	Deadline time.Duration // 0 이면 DefaultDeadline, 음수면 제한 없음
	Chain    SchemaChain
	Logger   *slog.Logger
	Observe  func(source, outcome string)
}

// Generator 쿼리 생성기
type Generator struct {
	registry *ai.ProviderRegistry
	chain    SchemaChain
	dialect  string
	deadline time.Duration
	logger   *slog.Logger
	observe  func(source, outcome string)
}

// NewGenerator 쿼리 생성기 생성
func NewGenerator(registry *ai.ProviderRegistry, cfg GeneratorConfig) *Generator {
	deadline := cfg.Deadline
	if deadline == 0 {
		deadline = DefaultDeadline
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Generator{
		registry: registry,
		chain:    cfg.Chain,
		dialect:  cfg.Dialect,
		deadline: deadline,
		logger:   logger,
		observe:  cfg.Observe,
	}
}

// Dialect 프롬프트 방언
func (g *Generator) Dialect() string {
	return g.dialect
}

// Generate 자연어 질의로 검증된 SQL 생성.
// 스키마 체인(가능할 때) 다음 OpenAI, Anthropic, Gemini, LLaMA 순서로 시도하고
// 처음 성공한 결과에서 멈춘다.
func (g *Generator) Generate(ctx context.Context, req models.GenerationRequest) (string, error) {
	if strings.TrimSpace(req.Question) == "" {
		return "", ErrEmptyQuestion
	}

	if g.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.deadline)
		defer cancel()
	}

	var failures []ProviderFailure

	if req.DatabaseURI != "" && g.chain != nil {
		sql, err := g.chain.Generate(ctx, req.Question, req.DatabaseURI)
		if err == nil && strings.TrimSpace(sql) != "" {
			return g.accept(sql, sourceSchemaChain)
		}
		if err == nil {
			err = errors.New("empty output")
		}
		g.logger.Warn("스키마 체인 실패, 제공자 폴백", "error", err)
		failures = append(failures, ProviderFailure{Provider: sourceSchemaChain, Err: err})
	}

	for _, adapter := range g.registry.Adapters() {
		if ctx.Err() != nil {
			break
		}

		sql, err := ai.GenerateSQL(ctx, adapter, req.Question, req.SchemaHint, g.dialect)
		g.registry.RecordResult(adapter.Name(), err)
		if err == nil {
			return g.accept(sql, string(adapter.Name()))
		}

		g.logger.Warn("제공자 생성 실패", "provider", string(adapter.Name()), "class", string(ai.ClassOf(err)), "error", err)
		failures = append(failures, ProviderFailure{Provider: string(adapter.Name()), Err: err})
	}

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		failures = append(failures, ProviderFailure{Provider: sourceDeadline, Err: ctx.Err()})
	case errors.Is(ctx.Err(), context.Canceled):
		return "", ctx.Err()
	}

	g.record("", OutcomeExhausted)
	return "", &AllProvidersExhaustedError{Failures: failures}
}

// accept 성공 경로 공통 정리/검증
func (g *Generator) accept(raw, source string) (string, error) {
	sql := validator.Sanitize(ai.CleanSQL(raw))
	if ok, reason := validator.IsSafe(sql); !ok {
		g.logger.Warn("생성된 SQL 거부", "source", source, "reason", reason)
		g.record(source, OutcomeUnsafe)
		return "", &UnsafeSQLError{SQL: sql, Reason: reason, Source: source}
	}

	g.logger.Debug("SQL 생성 완료", "source", source)
	g.record(source, OutcomeGenerated)
	return sql, nil
}

func (g *Generator) record(source, outcome string) {
	if g.observe != nil {
		g.observe(source, outcome)
	}
}
