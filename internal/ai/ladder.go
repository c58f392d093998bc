package ai

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"sql-intelligence/pkg/models"
)

// Response 제공자 응답에서 추출한 텍스트. Text 또는 Empty
type Response struct {
	text string
	ok   bool
}

// Text 텍스트 응답. 공백뿐이면 Empty
func Text(s string) Response {
	s = strings.TrimSpace(s)
	if s == "" {
		return Empty()
	}
	return Response{text: s, ok: true}
}

// Empty 사용할 수 없는 응답
func Empty() Response {
	return Response{}
}

// Value 텍스트와 존재 여부 반환
func (r Response) Value() (string, bool) {
	return r.text, r.ok
}

// OutcomeKind 모델 1회 시도 결과 종류
type OutcomeKind int

const (
	Success OutcomeKind = iota
	Retryable
	Fatal
)

// AttemptOutcome Success(text) | Retryable(reason) | Fatal(reason)
type AttemptOutcome struct {
	Kind  OutcomeKind
	Text  string
	Class ErrorClass
	Err   error
}

// AttemptObserver 시도 결과 관찰 훅 (메트릭)
type AttemptObserver func(provider models.ProviderName, model string, class ErrorClass)

// Options 어댑터 공통 옵션
type Options struct {
	Logger  *slog.Logger
	Timeout time.Duration
	Observe AttemptObserver
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.Logger
}

// callFunc 모델 하나를 호출. withTemperature=false 면 temperature 없이 요청
type callFunc func(ctx context.Context, model string, withTemperature bool) (Response, error)

// ladder 모델 폴백 래더
type ladder struct {
	provider models.ProviderName
	classify func(error) ErrorClass
	opts     Options
}

func newLadder(provider models.ProviderName, classify func(error) ErrorClass, opts Options) ladder {
	if classify == nil {
		classify = classifyMessage
	}
	return ladder{provider: provider, classify: classify, opts: opts}
}

// run 모델을 순서대로 시도해 첫 번째 텍스트를 반환
func (l ladder) run(ctx context.Context, modelList []string, call callFunc) (string, error) {
	log := l.opts.logger().With("provider", string(l.provider))
	var attempts []models.ProviderAttemptResult
	quota := false

	for _, model := range modelList {
		out := l.attempt(ctx, model, call)
		l.observe(model, out.Class)

		switch out.Kind {
		case Success:
			log.Debug("모델 응답 수신", "model", model)
			return out.Text, nil
		case Fatal:
			log.Warn("래더 중단", "model", model, "error", out.Err)
			attempts = append(attempts, l.result(model, out))
			return "", &AttemptsFailedError{Provider: l.provider, Attempts: attempts, Cause: out.Err}
		}

		if out.Class == ClassQuota {
			quota = true
		}
		log.Warn("모델 시도 실패", "model", model, "class", string(out.Class), "error", out.Err)
		attempts = append(attempts, l.result(model, out))
	}

	if quota {
		return "", &QuotaExhaustedError{Provider: l.provider, Attempts: attempts}
	}
	return "", &AttemptsFailedError{Provider: l.provider, Attempts: attempts}
}

func (l ladder) attempt(ctx context.Context, model string, call callFunc) AttemptOutcome {
	if err := ctx.Err(); err != nil {
		return AttemptOutcome{Kind: Fatal, Class: ClassCanceled, Err: err}
	}

	resp, err := l.invoke(ctx, model, true, call)
	if err != nil && ctx.Err() == nil && l.classify(err) == ClassUnsupportedParameter {
		l.opts.logger().Info("temperature 없이 재시도", "provider", string(l.provider), "model", model)
		resp, err = l.invoke(ctx, model, false, call)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return AttemptOutcome{Kind: Fatal, Class: ClassCanceled, Err: ctxErr}
		}
		return AttemptOutcome{Kind: Retryable, Class: l.classify(err), Err: err}
	}

	text, ok := resp.Value()
	if !ok {
		return AttemptOutcome{Kind: Retryable, Class: ClassEmptyOutput, Err: errEmptyOutput}
	}
	return AttemptOutcome{Kind: Success, Text: text}
}

func (l ladder) invoke(ctx context.Context, model string, withTemperature bool, call callFunc) (Response, error) {
	if l.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.opts.Timeout)
		defer cancel()
	}
	return call(ctx, model, withTemperature)
}

func (l ladder) observe(model string, class ErrorClass) {
	if l.opts.Observe != nil {
		l.opts.Observe(l.provider, model, class)
	}
}

func (l ladder) result(model string, out AttemptOutcome) models.ProviderAttemptResult {
	r := models.ProviderAttemptResult{
		Provider: l.provider,
		Model:    model,
		Class:    string(out.Class),
	}
	if out.Err != nil {
		r.Err = out.Err.Error()
	}
	return r
}
