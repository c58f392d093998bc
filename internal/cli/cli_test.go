package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sql-intelligence/internal/query"
	"sql-intelligence/pkg/models"
)

func TestMain(m *testing.M) {
	pterm.DisableOutput()
	os.Exit(m.Run())
}

type fakeGenerator struct {
	sql  string
	err  error
	reqs []models.GenerationRequest
}

func (g *fakeGenerator) Generate(_ context.Context, req models.GenerationRequest) (string, error) {
	g.reqs = append(g.reqs, req)
	return g.sql, g.err
}

type fakeOptimizer struct {
	outcome models.OptimizationOutcome
}

func (o *fakeOptimizer) Optimize(_ context.Context, sql, _ string) (models.OptimizationOutcome, error) {
	out := o.outcome
	out.Original = sql
	return out, nil
}

type fakeRunner struct {
	result   *query.AskResult
	err      error
	overview string
	compared bool
}

func (r *fakeRunner) Ask(context.Context, string, string) (*query.AskResult, error) {
	return r.result, r.err
}

func (r *fakeRunner) Describe(context.Context) (string, error) {
	return r.overview, nil
}

func (r *fakeRunner) Compare(context.Context, string, string) (*query.Comparison, error) {
	r.compared = true
	return &query.Comparison{OriginalSeconds: 2, OptimizedSeconds: 1, PercentFaster: 50, Speedup: 2, RowsMatch: true}, nil
}

func newSession(out *bytes.Buffer, gen *fakeGenerator, run *fakeRunner) *session {
	s := &session{
		out:       out,
		generator: gen,
		optimizer: &fakeOptimizer{outcome: models.OptimizationOutcome{Optimized: "SELECT a FROM t", Changed: true}},
		status: func() []models.ProviderStatus {
			return []models.ProviderStatus{
				{Name: models.OpenAI, Available: true, Models: []string{"gpt-5"}},
				{Name: models.Gemini, Reason: "GEMINI_API_KEY not set"},
			}
		},
		history: NewHistory(10),
	}
	if run != nil {
		s.runner = run
	}
	return s
}

func TestHistoryIsBounded(t *testing.T) {
	h := NewHistory(3)
	for i := 0; i < 5; i++ {
		h.Add(HistoryEntry{SQL: strings.Repeat("x", i+1)})
	}

	entries := h.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "xxx", entries[0].SQL)
	assert.Equal(t, "xxxxx", entries[2].SQL)
	assert.False(t, entries[0].Time.IsZero())
}

func TestFormatSQL(t *testing.T) {
	got := formatSQL("SELECT a FROM t LEFT JOIN u ON t.id = u.id WHERE a > 1 ORDER BY a")
	assert.Equal(t, strings.Join([]string{
		"   SELECT a",
		"   FROM t",
		"   LEFT JOIN u ON t.id = u.id",
		"   WHERE a > 1",
		"   ORDER BY a",
	}, "\n"), got)
}

func TestRenderResult(t *testing.T) {
	var out bytes.Buffer
	renderResult(&out, &models.QueryResult{
		Columns:   []string{"region", "total"},
		Rows:      [][]interface{}{{"east", 3}, {nil, 1}},
		Truncated: true,
		Elapsed:   1500 * time.Millisecond,
	})

	text := out.String()
	assert.Contains(t, text, "region")
	assert.Contains(t, text, "east")
	assert.Contains(t, text, "NULL")
	assert.Contains(t, text, "2 rows in 1.5s (truncated)")
}

func TestReplAsksWhenDatabaseConnected(t *testing.T) {
	var out bytes.Buffer
	run := &fakeRunner{result: &query.AskResult{
		SQL:    "SELECT COUNT(*) FROM orders",
		Result: &models.QueryResult{Columns: []string{"count"}, Rows: [][]interface{}{{42}}},
	}}
	s := newSession(&out, &fakeGenerator{}, run)

	err := s.repl(context.Background(), strings.NewReader("how many orders\n/history\n/quit\nignored\n"))
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "SELECT COUNT(*)")
	assert.Contains(t, text, "42")
	assert.Contains(t, text, "how many orders")
	require.Len(t, s.history.Entries(), 1)
	assert.Equal(t, 1, s.history.Entries()[0].Rows)
}

func TestReplGeneratesWithoutDatabase(t *testing.T) {
	var out bytes.Buffer
	gen := &fakeGenerator{sql: "SELECT 1"}
	s := newSession(&out, gen, nil)

	require.NoError(t, s.repl(context.Background(), strings.NewReader("anything\n/schema\n")))

	require.Len(t, gen.reqs, 1)
	assert.Equal(t, "anything", gen.reqs[0].Question)
	assert.Contains(t, out.String(), "SELECT 1")
	assert.Contains(t, out.String(), errNoDatabase.Error())
}

func TestReplCommands(t *testing.T) {
	var out bytes.Buffer
	s := newSession(&out, &fakeGenerator{}, &fakeRunner{overview: "orders(id, region)"})

	input := "/status\n/schema\n/optimize\n/optimize SELECT * FROM t\n/bogus\nexit\n"
	require.NoError(t, s.repl(context.Background(), strings.NewReader(input)))

	text := out.String()
	assert.Contains(t, text, "gpt-5")
	assert.Contains(t, text, "GEMINI_API_KEY not set")
	assert.Contains(t, text, "orders(id, region)")
	assert.Contains(t, text, "사용법: /optimize <쿼리>")
	assert.Contains(t, text, "SELECT a")
	assert.Contains(t, text, "알 수 없는 명령어: /bogus")
}

func TestReplReportsErrorsAndContinues(t *testing.T) {
	var out bytes.Buffer
	gen := &fakeGenerator{err: errors.New("SQL generation failed across providers")}
	s := newSession(&out, gen, nil)

	require.NoError(t, s.repl(context.Background(), strings.NewReader("first\nsecond\n")))

	assert.Len(t, gen.reqs, 2)
	assert.Equal(t, 2, strings.Count(out.String(), "오류: SQL generation failed across providers"))
	assert.Empty(t, s.history.Entries())
}

func TestOptimizeCompare(t *testing.T) {
	var out bytes.Buffer
	run := &fakeRunner{}
	s := newSession(&out, &fakeGenerator{}, run)

	require.NoError(t, s.optimize(context.Background(), "SELECT * FROM t", "", true))
	assert.True(t, run.compared)
	assert.Contains(t, out.String(), "50.0% (x2.00)")

	s.runner = nil
	assert.ErrorIs(t, s.optimize(context.Background(), "SELECT * FROM t", "", true), errNoDatabase)
}

func TestValidateCommandRunsOffline(t *testing.T) {
	var out bytes.Buffer
	e := &env{out: &out}
	root := newRootCmd(e)
	root.SetArgs([]string{"validate", "SELECT 1;", "DELETE FROM t"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "SELECT 1\n", out.String())
	assert.Nil(t, e.app)

	out.Reset()
	root = newRootCmd(e)
	root.SetArgs([]string{"validate", "update t set a = 1"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked keyword")
}

func TestSchemaCommandFromDDLFile(t *testing.T) {
	path := t.TempDir() + "/schema.sql"
	require.NoError(t, os.WriteFile(path, []byte("CREATE TABLE orders (\n  id INT PRIMARY KEY,\n  region VARCHAR(20)\n);"), 0o600))

	var out bytes.Buffer
	e := &env{out: &out}
	root := newRootCmd(e)
	root.SetArgs([]string{"schema", "--ddl-file", path})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "orders")
	assert.Contains(t, out.String(), "region")
	assert.Nil(t, e.app)
}

func TestReadHintConvertsDDL(t *testing.T) {
	path := t.TempDir() + "/hint.sql"
	require.NoError(t, os.WriteFile(path, []byte("CREATE TABLE orders (id INT, region TEXT);"), 0o600))

	hint, err := readHint(path)
	require.NoError(t, err)
	assert.Equal(t, "orders(id, region)", hint)

	hint, err = readHint("")
	require.NoError(t, err)
	assert.Empty(t, hint)
}
