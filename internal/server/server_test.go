package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sql-intelligence/internal/ai"
	"sql-intelligence/internal/db"
	"sql-intelligence/internal/query"
	"sql-intelligence/pkg/models"
)

type stubAdapter struct {
	mu      sync.Mutex
	name    models.ProviderName
	text    string
	err     error
	lastReq ai.CompletionRequest
}

func (s *stubAdapter) Name() models.ProviderName { return s.name }

func (s *stubAdapter) Models() []string { return []string{"stub"} }

func (s *stubAdapter) Complete(_ context.Context, req ai.CompletionRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReq = req
	return s.text, s.err
}

type stubExecutor struct {
	mu        sync.Mutex
	overview  string
	result    *models.QueryResult
	err       error
	executed  []string
	describes int
}

func (e *stubExecutor) ExecuteQuery(_ context.Context, sql string, _ int) (*models.QueryResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.executed = append(e.executed, sql)
	if e.err != nil {
		return nil, e.err
	}
	if e.result != nil {
		return e.result, nil
	}
	return &models.QueryResult{Columns: []string{"n"}, Rows: [][]interface{}{{1}}, Elapsed: time.Millisecond}, nil
}

func (e *stubExecutor) DescribeSchema(context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.describes++
	return e.overview, nil
}

type fixture struct {
	adapter *stubAdapter
	exec    *stubExecutor
	ts      *httptest.Server
}

func newFixture(t *testing.T, adapter *stubAdapter, exec *stubExecutor, opts ...func(*Dependencies)) *fixture {
	t.Helper()

	registry := ai.NewRegistry()
	if adapter != nil {
		registry.Register(adapter)
	} else {
		registry.Disable(models.OpenAI, ai.ErrNoCredential.Error())
	}

	gen := query.NewGenerator(registry, query.GeneratorConfig{Dialect: "PostgreSQL"})
	deps := Dependencies{
		Registry:  registry,
		Generator: gen,
		Optimizer: query.NewOptimizer(registry, query.OptimizerConfig{}),
		DBType:    models.PostgreSQL,
	}
	if exec != nil {
		deps.Runner = query.NewRunner(gen, exec, 0, nil)
	}
	for _, opt := range opts {
		opt(&deps)
	}

	srv := New(deps)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return &fixture{adapter: adapter, exec: exec, ts: ts}
}

func (f *fixture) post(t *testing.T, path string, body interface{}) (int, APIResponse) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(f.ts.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode, decode(t, resp)
}

func (f *fixture) get(t *testing.T, path string) (int, APIResponse) {
	t.Helper()
	resp, err := http.Get(f.ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode, decode(t, resp)
}

func decode(t *testing.T, resp *http.Response) APIResponse {
	t.Helper()
	var out APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func dataMap(t *testing.T, r APIResponse) map[string]interface{} {
	t.Helper()
	m, ok := r.Data.(map[string]interface{})
	require.True(t, ok, "data is %T", r.Data)
	return m
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil, nil)

	status, body := f.get(t, "/api/health")

	assert.Equal(t, http.StatusOK, status)
	assert.True(t, body.Success)
	assert.Equal(t, "ok", dataMap(t, body)["status"])
}

func TestGenerate(t *testing.T) {
	f := newFixture(t, &stubAdapter{name: models.OpenAI, text: "```sql\nSELECT region, COUNT(*) FROM orders GROUP BY region;\n```"}, nil)

	status, body := f.post(t, "/api/generate", generateRequest{Question: "count orders by region", SchemaHint: "orders(id, region)"})

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "SELECT region, COUNT(*) FROM orders GROUP BY region", dataMap(t, body)["sql"])
}

func TestGenerateConvertsDDLHint(t *testing.T) {
	adapter := &stubAdapter{name: models.OpenAI, text: "SELECT id FROM orders"}
	f := newFixture(t, adapter, nil)

	ddl := "CREATE TABLE orders (\n  id INT PRIMARY KEY,\n  region VARCHAR(20)\n);"
	status, _ := f.post(t, "/api/generate", generateRequest{Question: "ids", SchemaHint: ddl})

	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, adapter.lastReq.User, "orders(id, region)")
	assert.NotContains(t, adapter.lastReq.User, "CREATE TABLE")
}

func TestGenerateRejectsUnlistedDatabaseURI(t *testing.T) {
	adapter := &stubAdapter{name: models.OpenAI, text: "SELECT 1"}
	f := newFixture(t, adapter, nil, func(d *Dependencies) {
		d.SchemaURIs = []string{"postgresql://ro@db/main"}
	})

	status, body := f.post(t, "/api/generate", generateRequest{
		Question:    "list tables",
		DatabaseURI: "postgresql://attacker.example:5432/x",
	})

	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "database_uri is not allowed", body.Error)
	assert.Empty(t, adapter.lastReq.User)

	status, body = f.post(t, "/api/generate", generateRequest{
		Question:    "list tables",
		DatabaseURI: "postgresql://ro@db/main",
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "SELECT 1", dataMap(t, body)["sql"])
}

func TestGenerateRejectsDatabaseURIWithoutAllowlist(t *testing.T) {
	f := newFixture(t, &stubAdapter{name: models.OpenAI, text: "SELECT 1"}, nil)

	status, _ := f.post(t, "/api/generate", generateRequest{Question: "q", DatabaseURI: "mysql://root@localhost/db"})
	assert.Equal(t, http.StatusForbidden, status)
}

func TestGenerateErrorStatuses(t *testing.T) {
	t.Run("empty question", func(t *testing.T) {
		f := newFixture(t, &stubAdapter{name: models.OpenAI, text: "SELECT 1"}, nil)
		status, body := f.post(t, "/api/generate", generateRequest{Question: "  "})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.False(t, body.Success)
	})

	t.Run("providers exhausted", func(t *testing.T) {
		f := newFixture(t, &stubAdapter{name: models.OpenAI, err: errors.New("boom")}, nil)
		status, body := f.post(t, "/api/generate", generateRequest{Question: "anything"})
		assert.Equal(t, http.StatusBadGateway, status)
		assert.Contains(t, body.Error, "SQL generation failed across providers")
		assert.Contains(t, body.Error, "OpenAI: boom")
	})

	t.Run("unsafe output", func(t *testing.T) {
		f := newFixture(t, &stubAdapter{name: models.OpenAI, text: "DELETE FROM orders"}, nil)
		status, body := f.post(t, "/api/generate", generateRequest{Question: "remove orders"})
		assert.Equal(t, http.StatusUnprocessableEntity, status)
		assert.Contains(t, body.Error, "blocked keyword")
	})

	t.Run("malformed body", func(t *testing.T) {
		f := newFixture(t, nil, nil)
		resp, err := http.Post(f.ts.URL+"/api/generate", "application/json", bytes.NewBufferString("{"))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestOptimize(t *testing.T) {
	original := "SELECT * FROM (SELECT * FROM t ORDER BY a) sub"
	f := newFixture(t, &stubAdapter{name: models.OpenAI, text: original}, nil)

	status, body := f.post(t, "/api/optimize", optimizeRequest{SQL: original})

	require.Equal(t, http.StatusOK, status)
	data := dataMap(t, body)
	assert.Equal(t, "SELECT * FROM (SELECT * FROM t) sub", data["optimized"])
	assert.Equal(t, true, data["changed"])
	assert.Contains(t, data, "shape")
}

func TestOptimizeWithoutPrimary(t *testing.T) {
	f := newFixture(t, nil, nil)

	status, _ := f.post(t, "/api/optimize", optimizeRequest{SQL: "SELECT 1"})

	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestValidate(t *testing.T) {
	f := newFixture(t, nil, nil)

	_, body := f.post(t, "/api/validate", sqlRequest{SQL: "SELECT 1; DROP TABLE x"})
	data := dataMap(t, body)
	assert.Equal(t, "SELECT 1", data["sql"])
	assert.Equal(t, true, data["safe"])

	_, body = f.post(t, "/api/validate", sqlRequest{SQL: "update t set a = 1"})
	data = dataMap(t, body)
	assert.Equal(t, false, data["safe"])
	assert.Equal(t, "blocked keyword", data["reason"])
}

func TestExecuteRequiresDatabase(t *testing.T) {
	f := newFixture(t, nil, nil)

	for _, path := range []string{"/api/execute", "/api/ask", "/api/compare"} {
		status, body := f.post(t, path, sqlRequest{SQL: "SELECT 1"})
		assert.Equal(t, http.StatusServiceUnavailable, status, path)
		assert.False(t, body.Success, path)
	}
}

func TestExecute(t *testing.T) {
	exec := &stubExecutor{}
	f := newFixture(t, nil, exec)

	status, body := f.post(t, "/api/execute", sqlRequest{SQL: "SELECT n FROM t;"})

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []interface{}{"n"}, dataMap(t, body)["columns"])
	assert.Equal(t, []string{"SELECT n FROM t"}, exec.executed)
}

func TestExecuteRejectsUnsafeWithoutRunning(t *testing.T) {
	exec := &stubExecutor{}
	f := newFixture(t, nil, exec)

	status, _ := f.post(t, "/api/execute", sqlRequest{SQL: "DELETE FROM t"})

	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Empty(t, exec.executed)
}

func TestExecuteObjectNotFound(t *testing.T) {
	exec := &stubExecutor{err: &db.ExecError{Kind: db.KindObjectNotFound, Message: "Object 'ordrs' does not exist or not authorized."}}
	f := newFixture(t, nil, exec)

	status, body := f.post(t, "/api/execute", sqlRequest{SQL: "SELECT * FROM ordrs"})

	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, body.Error, "Object 'ordrs' does not exist")
}

func TestAsk(t *testing.T) {
	adapter := &stubAdapter{name: models.OpenAI, text: "SELECT COUNT(*) FROM orders"}
	exec := &stubExecutor{overview: "orders(id, region)"}
	f := newFixture(t, adapter, exec)

	status, body := f.post(t, "/api/ask", generateRequest{Question: "how many orders"})

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "SELECT COUNT(*) FROM orders", dataMap(t, body)["sql"])
	assert.Contains(t, adapter.lastReq.User, "orders(id, region)")
}

func TestCompare(t *testing.T) {
	f := newFixture(t, nil, &stubExecutor{})

	status, body := f.post(t, "/api/compare", compareRequest{Original: "SELECT * FROM t", Optimized: "SELECT n FROM t"})

	require.Equal(t, http.StatusOK, status)
	data := dataMap(t, body)
	assert.Equal(t, true, data["rows_match"])
	shape, ok := data["shape"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, shape["select_star_removed"])
}

func TestSchemaOverviewIsCached(t *testing.T) {
	exec := &stubExecutor{overview: "orders(id, region)"}
	f := newFixture(t, nil, exec)

	for i := 0; i < 3; i++ {
		status, body := f.get(t, "/api/schema")
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "orders(id, region)", dataMap(t, body)["overview"])
	}
	assert.Equal(t, 1, exec.describes)

	_, _ = f.get(t, "/api/schema?refresh=true")
	assert.Equal(t, 2, exec.describes)
}

func TestShape(t *testing.T) {
	f := newFixture(t, nil, nil)

	status, body := f.post(t, "/api/metrics/shape", shapeRequest{
		SQL:       "SELECT DISTINCT a FROM t JOIN u ON t.id = u.id ORDER BY a",
		Optimized: "SELECT a FROM t JOIN u ON t.id = u.id",
	})

	require.Equal(t, http.StatusOK, status)
	data := dataMap(t, body)
	assert.Contains(t, data, "shape")
	assert.Contains(t, data, "optimized_shape")
	assert.Contains(t, data, "delta")

	status, _ = f.post(t, "/api/metrics/shape", shapeRequest{})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestStatus(t *testing.T) {
	f := newFixture(t, &stubAdapter{name: models.OpenAI, text: "SELECT 1"}, nil)

	status, body := f.get(t, "/api/status")

	require.Equal(t, http.StatusOK, status)
	data := dataMap(t, body)
	assert.Equal(t, false, data["db_connected"])
	assert.Equal(t, "PostgreSQL", data["dialect"])
	providers, ok := data["providers"].([]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, providers)
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t, nil, nil)

	status, body := f.get(t, "/api/generate")

	assert.Equal(t, http.StatusMethodNotAllowed, status)
	assert.False(t, body.Success)
}

func TestTraceHeaderAndCORS(t *testing.T) {
	f := newFixture(t, nil, nil)

	req, err := http.NewRequest(http.MethodGet, f.ts.URL+"/api/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://example.com")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.NotEmpty(t, resp.Header.Get("X-Trace-ID"))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
