package query

import (
	"context"
	"sync"

	"sql-intelligence/internal/ai"
	"sql-intelligence/pkg/models"
)

// fakeAdapter 호출 횟수를 기록하는 어댑터
type fakeAdapter struct {
	mu      sync.Mutex
	name    models.ProviderName
	respond func(ctx context.Context, req ai.CompletionRequest) (string, error)
	calls   int
	lastReq ai.CompletionRequest
}

func reply(name models.ProviderName, text string, err error) *fakeAdapter {
	return &fakeAdapter{name: name, respond: func(context.Context, ai.CompletionRequest) (string, error) {
		return text, err
	}}
}

func (f *fakeAdapter) Name() models.ProviderName { return f.name }

func (f *fakeAdapter) Models() []string { return []string{"fake-model"} }

func (f *fakeAdapter) Complete(ctx context.Context, req ai.CompletionRequest) (string, error) {
	f.mu.Lock()
	f.calls++
	f.lastReq = req
	f.mu.Unlock()
	return f.respond(ctx, req)
}

func (f *fakeAdapter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func registryOf(adapters ...ai.Adapter) *ai.ProviderRegistry {
	r := ai.NewRegistry()
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

type fakeChain struct {
	sql   string
	err   error
	calls int
}

func (c *fakeChain) Generate(context.Context, string, string) (string, error) {
	c.calls++
	return c.sql, c.err
}

// fakeExecutor SQL 문자열별 응답
type fakeExecutor struct {
	overview string
	results  map[string]*models.QueryResult
	errs     map[string]error
	executed []string
}

func (e *fakeExecutor) ExecuteQuery(_ context.Context, sql string, _ int) (*models.QueryResult, error) {
	e.executed = append(e.executed, sql)
	if err, ok := e.errs[sql]; ok {
		return nil, err
	}
	if res, ok := e.results[sql]; ok {
		return res, nil
	}
	return &models.QueryResult{Columns: []string{"x"}, Rows: [][]interface{}{}}, nil
}

func (e *fakeExecutor) DescribeSchema(context.Context) (string, error) {
	return e.overview, nil
}
