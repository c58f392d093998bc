package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sql-intelligence/internal/ai"
	"sql-intelligence/internal/config"
	"sql-intelligence/pkg/models"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildWithoutCredentials(t *testing.T) {
	cfg := config.Defaults("sqli-test")

	a, err := Build(context.Background(), cfg, discard())
	require.NoError(t, err)
	defer a.Close()

	assert.Empty(t, a.Registry.Adapters())
	assert.Nil(t, a.Runner)
	assert.Nil(t, a.Connector)
	assert.Equal(t, "Snowflake", a.Generator.Dialect())

	_, err = a.Optimizer.Optimize(context.Background(), "SELECT 1", "")
	assert.ErrorIs(t, err, ai.ErrNoCredential)

	for _, s := range a.Registry.Status() {
		assert.False(t, s.Available, s.Name)
	}
}

func TestBuildRegistersConfiguredProviders(t *testing.T) {
	cfg := config.Defaults("sqli-test")
	cfg.AI.OpenAIKey = "sk-test"
	cfg.AI.AnthropicKey = "ak-test"

	a, err := Build(context.Background(), cfg, discard())
	require.NoError(t, err)
	defer a.Close()

	var names []models.ProviderName
	for _, adapter := range a.Registry.Adapters() {
		names = append(names, adapter.Name())
	}
	assert.Equal(t, []models.ProviderName{models.OpenAI, models.Anthropic}, names)
	assert.Nil(t, a.schemaChain(cfg))

	cfg.Database.SchemaChain = true
	assert.NotNil(t, a.schemaChain(cfg))
}

func TestBuildSurvivesBadDatabaseURL(t *testing.T) {
	cfg := config.Defaults("sqli-test")
	cfg.Database.URL = "nosuchdb://host/db"

	a, err := Build(context.Background(), cfg, discard())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Runner)
}
