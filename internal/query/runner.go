package query

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"sql-intelligence/internal/db"
	"sql-intelligence/internal/validator"
	"sql-intelligence/pkg/models"
)

// Executor 쿼리 실행기
type Executor interface {
	ExecuteQuery(ctx context.Context, sql string, rowLimit int) (*models.QueryResult, error)
	DescribeSchema(ctx context.Context) (string, error)
}

// Runner 생성, 검증, 실행, 자동 보정을 묶는다
type Runner struct {
	gen      *Generator
	exec     Executor
	rowLimit int
	logger   *slog.Logger
}

// NewRunner 실행기 생성. rowLimit 이 0 이하면 db.DefaultRowLimit
func NewRunner(gen *Generator, exec Executor, rowLimit int, logger *slog.Logger) *Runner {
	if rowLimit <= 0 {
		rowLimit = db.DefaultRowLimit
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{gen: gen, exec: exec, rowLimit: rowLimit, logger: logger}
}

// AskResult 질의 실행 결과
type AskResult struct {
	SQL        string              `json:"sql"`
	Result     *models.QueryResult `json:"result,omitempty"`
	Correction string              `json:"correction,omitempty"` // 보정 방식: table_substitution | regenerated
	Note       string              `json:"note,omitempty"`
}

// Describe 스키마 개요
func (r *Runner) Describe(ctx context.Context) (string, error) {
	return r.exec.DescribeSchema(ctx)
}

// Ask 질의를 SQL 로 만들어 실행. 객체 없음 오류는 한 번 보정한다
func (r *Runner) Ask(ctx context.Context, question, extraHint string) (*AskResult, error) {
	overview, err := r.exec.DescribeSchema(ctx)
	if err != nil {
		r.logger.Warn("스키마 개요 조회 실패", "error", err)
	}
	hint := joinHints(extraHint, overview)

	sql, err := r.gen.Generate(ctx, models.GenerationRequest{Question: question, SchemaHint: hint})
	if err != nil {
		return nil, err
	}

	out := &AskResult{SQL: sql}
	res, err := r.Execute(ctx, sql)
	if err == nil {
		out.Result = res
		return out, nil
	}
	if !db.IsObjectNotFound(err) {
		return out, err
	}

	var execErr *db.ExecError
	errors.As(err, &execErr)

	if bad, good, ok := suggestionFor(execErr); ok {
		if fixed := replaceIdentifier(sql, bad, good); fixed != sql {
			return r.retryCorrected(ctx, out, fixed, bad, good)
		}
	}

	r.logger.Info("객체 없음, 전체 스키마 힌트로 재생성", "error", execErr.Message)
	regenerated, err := r.gen.Generate(ctx, models.GenerationRequest{
		Question:   question,
		SchemaHint: joinHints(hint, "Previous attempt failed: "+execErr.Message),
	})
	if err != nil {
		return out, fmt.Errorf("Regeneration failed: %w", err)
	}
	res, err = r.Execute(ctx, regenerated)
	if err != nil {
		return &AskResult{SQL: regenerated}, err
	}
	return &AskResult{
		SQL:        regenerated,
		Result:     res,
		Correction: "regenerated",
		Note:       "Regenerated SQL with full schema hint due to missing object",
	}, nil
}

func (r *Runner) retryCorrected(ctx context.Context, out *AskResult, fixed, bad, good string) (*AskResult, error) {
	r.logger.Info("테이블 이름 보정 후 재시도", "from", bad, "to", good)
	res, err := r.Execute(ctx, fixed)
	if err != nil {
		return out, fmt.Errorf("Retry after table correction failed: %w", err)
	}
	out.SQL, out.Result = fixed, res
	out.Correction = "table_substitution"
	out.Note = fmt.Sprintf("Retried with corrected table name: %s -> %s", bad, good)
	return out, nil
}

// Execute 검증 후 실행. 거부되면 실행하지 않는다
func (r *Runner) Execute(ctx context.Context, sql string) (*models.QueryResult, error) {
	stmt := validator.Sanitize(sql)
	if ok, reason := validator.IsSafe(stmt); !ok {
		return nil, &UnsafeSQLError{SQL: stmt, Reason: reason}
	}
	return r.exec.ExecuteQuery(ctx, stmt, r.rowLimit)
}

// Comparison 원본/최적화 쿼리 실행 시간 비교
type Comparison struct {
	OriginalSeconds  float64    `json:"original_seconds"`
	OptimizedSeconds float64    `json:"optimized_seconds"`
	DiffSeconds      float64    `json:"diff_seconds"`
	PercentFaster    float64    `json:"percent_faster"`
	Speedup          float64    `json:"speedup"`
	OriginalRows     int        `json:"original_rows"`
	OptimizedRows    int        `json:"optimized_rows"`
	RowsMatch        bool       `json:"rows_match"`
	Shape            ShapeDelta `json:"shape"`
}

// Compare 두 쿼리를 차례로 실행하고 시간/행 수/구조를 비교
func (r *Runner) Compare(ctx context.Context, original, optimized string) (*Comparison, error) {
	origRes, err := r.Execute(ctx, original)
	if err != nil {
		return nil, fmt.Errorf("원본 쿼리 실행 실패: %w", err)
	}
	optRes, err := r.Execute(ctx, optimized)
	if err != nil {
		return nil, fmt.Errorf("최적화 쿼리 실행 실패: %w", err)
	}

	c := compareTimings(origRes.Elapsed, optRes.Elapsed)
	c.OriginalRows = len(origRes.Rows)
	c.OptimizedRows = len(optRes.Rows)
	c.RowsMatch = c.OriginalRows == c.OptimizedRows
	c.Shape = CompareShapes(original, optimized)
	return c, nil
}

func compareTimings(orig, opt time.Duration) *Comparison {
	c := &Comparison{
		OriginalSeconds:  orig.Seconds(),
		OptimizedSeconds: opt.Seconds(),
		Speedup:          1,
	}
	c.DiffSeconds = c.OriginalSeconds - c.OptimizedSeconds
	if c.OriginalSeconds > 0 {
		c.PercentFaster = c.DiffSeconds / c.OriginalSeconds * 100
	}
	if c.DiffSeconds > 0 && c.OptimizedSeconds > 0 {
		c.Speedup = c.OriginalSeconds / c.OptimizedSeconds
	}
	return c
}

func suggestionFor(e *db.ExecError) (bad, good string, ok bool) {
	if e.MissingObject != "" && len(e.Suggestions) > 0 && !strings.EqualFold(e.MissingObject, e.Suggestions[0]) {
		return e.MissingObject, e.Suggestions[0], true
	}
	return db.ParseSuggestion(e.Message)
}

// replaceIdentifier 식별자 단위로 대소문자 무시 치환
func replaceIdentifier(sql, bad, good string) string {
	re := regexp.MustCompile(`(?i)(^|\W)` + regexp.QuoteMeta(bad) + `\b`)
	return re.ReplaceAllString(sql, "${1}"+strings.ReplaceAll(good, "$", "$$"))
}

func joinHints(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}
