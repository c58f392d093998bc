package query

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sql-intelligence/internal/ai"
	"sql-intelligence/internal/validator"
	"sql-intelligence/pkg/models"
)

func ask(q string) models.GenerationRequest {
	return models.GenerationRequest{Question: q, SchemaHint: "orders(id, region)"}
}

func TestGenerateReturnsSanitizedSQL(t *testing.T) {
	openai := reply(models.OpenAI, "SELECT region, COUNT(*) FROM orders GROUP BY region;", nil)
	gen := NewGenerator(registryOf(openai), GeneratorConfig{})

	sql, err := gen.Generate(context.Background(), ask("count orders by region"))

	require.NoError(t, err)
	assert.Equal(t, "SELECT region, COUNT(*) FROM orders GROUP BY region", sql)
	assert.Contains(t, openai.lastReq.User, "count orders by region")
	assert.Contains(t, openai.lastReq.User, "orders(id, region)")
}

func TestGenerateFirstProviderWins(t *testing.T) {
	openai := reply(models.OpenAI, "SELECT 1", nil)
	anthropic := reply(models.Anthropic, "SELECT 2", nil)
	gemini := reply(models.Gemini, "SELECT 3", nil)
	llama := reply(models.LLaMA, "SELECT 4", nil)
	gen := NewGenerator(registryOf(openai, anthropic, gemini, llama), GeneratorConfig{})

	sql, err := gen.Generate(context.Background(), ask("anything"))

	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", sql)
	assert.Equal(t, 1, openai.Calls())
	assert.Zero(t, anthropic.Calls())
	assert.Zero(t, gemini.Calls())
	assert.Zero(t, llama.Calls())
}

func TestGenerateFallsBackInOrder(t *testing.T) {
	openai := reply(models.OpenAI, "", &ai.QuotaExhaustedError{Provider: models.OpenAI})
	anthropic := reply(models.Anthropic, "```sql\nSELECT region FROM orders\n```", nil)
	llama := reply(models.LLaMA, "SELECT 4", nil)
	registry := registryOf(openai, anthropic, llama)

	var outcomes []string
	gen := NewGenerator(registry, GeneratorConfig{Observe: func(source, outcome string) {
		outcomes = append(outcomes, source+":"+outcome)
	}})

	sql, err := gen.Generate(context.Background(), ask("regions"))

	require.NoError(t, err)
	assert.Equal(t, "SELECT region FROM orders", sql)
	assert.Zero(t, llama.Calls())
	assert.Equal(t, []string{"Anthropic:generated"}, outcomes)

	status := registry.Status()
	assert.NotEmpty(t, status[0].LastError)
	assert.Empty(t, status[1].LastError)
}

func TestGenerateAllQuotaNamesEveryProvider(t *testing.T) {
	quota := func(name models.ProviderName) *fakeAdapter {
		return reply(name, "", &ai.QuotaExhaustedError{Provider: name, Attempts: []models.ProviderAttemptResult{{Provider: name, Model: "m"}}})
	}
	gen := NewGenerator(registryOf(quota(models.OpenAI), quota(models.Anthropic), quota(models.Gemini), quota(models.LLaMA)), GeneratorConfig{})

	_, err := gen.Generate(context.Background(), ask("anything"))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllProvidersExhausted)
	var exhausted *AllProvidersExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Len(t, exhausted.Failures, 4)
	assert.True(t, strings.HasPrefix(err.Error(), "SQL generation failed across providers. Details: "))
	for _, name := range []string{"OpenAI", "Anthropic", "Gemini", "LLaMA"} {
		assert.Contains(t, err.Error(), name+":")
	}
}

func TestGenerateSkipsUnavailableProviders(t *testing.T) {
	registry := registryOf(reply(models.OpenAI, "", errors.New("boom")))
	registry.Disable(models.Gemini, "GEMINI_API_KEY 미설정")
	gen := NewGenerator(registry, GeneratorConfig{})

	_, err := gen.Generate(context.Background(), ask("anything"))

	var exhausted *AllProvidersExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Len(t, exhausted.Failures, 1)
	assert.Equal(t, "OpenAI", exhausted.Failures[0].Provider)
}

func TestGenerateNoProviders(t *testing.T) {
	gen := NewGenerator(ai.NewRegistry(), GeneratorConfig{})

	_, err := gen.Generate(context.Background(), ask("anything"))
	require.ErrorIs(t, err, ErrAllProvidersExhausted)
}

func TestGenerateRejectsUnsafeOutput(t *testing.T) {
	anthropic := reply(models.Anthropic, "SELECT 2", nil)
	gen := NewGenerator(registryOf(reply(models.OpenAI, "DELETE FROM orders", nil), anthropic), GeneratorConfig{})

	_, err := gen.Generate(context.Background(), ask("remove orders"))

	var unsafe *UnsafeSQLError
	require.ErrorAs(t, err, &unsafe)
	assert.Equal(t, validator.ReasonBlocked, unsafe.Reason)
	assert.Equal(t, "OpenAI", unsafe.Source)
	assert.Zero(t, anthropic.Calls())
}

func TestGenerateRejectsCommentSplicedMutation(t *testing.T) {
	payload := "WITH a AS (SELECT '-/**/-' AS z), d AS (DELETE FROM orders RETURNING 1) SELECT * FROM d"
	gen := NewGenerator(registryOf(reply(models.OpenAI, payload, nil)), GeneratorConfig{})

	sql, err := gen.Generate(context.Background(), ask("anything"))

	assert.Empty(t, sql)
	var unsafe *UnsafeSQLError
	require.ErrorAs(t, err, &unsafe)
	assert.Equal(t, validator.ReasonBlocked, unsafe.Reason)
	assert.Equal(t, unsafe.SQL, validator.Sanitize(unsafe.SQL))
}

func TestGenerateEmptyOutputFallsThrough(t *testing.T) {
	gen := NewGenerator(registryOf(
		reply(models.OpenAI, "```\n```", nil),
		reply(models.Anthropic, "SELECT 2", nil),
	), GeneratorConfig{})

	sql, err := gen.Generate(context.Background(), ask("anything"))

	require.NoError(t, err)
	assert.Equal(t, "SELECT 2", sql)
}

func TestGenerateSchemaChainFirst(t *testing.T) {
	openai := reply(models.OpenAI, "SELECT 1", nil)
	chain := &fakeChain{sql: "SELECT COUNT(*) FROM orders;"}
	gen := NewGenerator(registryOf(openai), GeneratorConfig{Chain: chain})

	req := ask("how many orders")
	req.DatabaseURI = "postgres://u:p@localhost/shop"
	sql, err := gen.Generate(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM orders", sql)
	assert.Zero(t, openai.Calls())
}

func TestGenerateSchemaChainFailureFallsBack(t *testing.T) {
	openai := reply(models.OpenAI, "SELECT 1", nil)
	chain := &fakeChain{err: errors.New("connection refused")}
	gen := NewGenerator(registryOf(openai), GeneratorConfig{Chain: chain})

	req := ask("how many orders")
	req.DatabaseURI = "postgres://u:p@localhost/shop"
	sql, err := gen.Generate(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", sql)
	assert.Equal(t, 1, chain.calls)
}

func TestGenerateSkipsChainWithoutURI(t *testing.T) {
	chain := &fakeChain{sql: "SELECT 9"}
	gen := NewGenerator(registryOf(reply(models.OpenAI, "SELECT 1", nil)), GeneratorConfig{Chain: chain})

	_, err := gen.Generate(context.Background(), ask("anything"))

	require.NoError(t, err)
	assert.Zero(t, chain.calls)
}

func TestGenerateDeadlineExpiry(t *testing.T) {
	slow := &fakeAdapter{name: models.OpenAI, respond: func(ctx context.Context, _ ai.CompletionRequest) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	anthropic := reply(models.Anthropic, "SELECT 2", nil)
	gen := NewGenerator(registryOf(slow, anthropic), GeneratorConfig{Deadline: 20 * time.Millisecond})

	_, err := gen.Generate(context.Background(), ask("anything"))

	require.ErrorIs(t, err, ErrAllProvidersExhausted)
	assert.Contains(t, err.Error(), "deadline:")
	assert.Zero(t, anthropic.Calls())
}

func TestGenerateNegativeDeadlineSetsNoLimit(t *testing.T) {
	var hasDeadline bool
	openai := &fakeAdapter{name: models.OpenAI, respond: func(ctx context.Context, _ ai.CompletionRequest) (string, error) {
		_, hasDeadline = ctx.Deadline()
		return "SELECT 1", nil
	}}
	gen := NewGenerator(registryOf(openai), GeneratorConfig{Deadline: -1})

	sql, err := gen.Generate(context.Background(), ask("anything"))

	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", sql)
	assert.False(t, hasDeadline)
}

func TestGenerateEmptyQuestion(t *testing.T) {
	gen := NewGenerator(ai.NewRegistry(), GeneratorConfig{})

	_, err := gen.Generate(context.Background(), models.GenerationRequest{Question: "  "})
	require.ErrorIs(t, err, ErrEmptyQuestion)
}
