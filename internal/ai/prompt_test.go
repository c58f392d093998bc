package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanSQL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "SELECT 1", "SELECT 1"},
		{"trailing semicolon", "SELECT region, COUNT(*) FROM orders GROUP BY region;", "SELECT region, COUNT(*) FROM orders GROUP BY region"},
		{"backticks", "`SELECT 1`", "SELECT 1"},
		{"fence", "```sql\nSELECT a\nFROM t;\nSELECT b;\n```", "SELECT a\nFROM t"},
		{"fence with prose", "Here you go:\n```\nSHOW TABLES\n```\nEnjoy", "SHOW TABLES"},
		{"leading empty statements", " ; ;SELECT 2; SELECT 3", "SELECT 2"},
		{"unclosed fence", "```sql\nSELECT 5", "SELECT 5"},
		{"empty", "  ``  ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanSQL(tt.in))
		})
	}
}

func TestGenerationPromptIsDeterministic(t *testing.T) {
	a := GenerationPrompt("count orders", "orders(id)", "")
	b := GenerationPrompt("count orders", "orders(id)", "")
	assert.Equal(t, a, b)
	assert.Contains(t, a.System, "Do NOT generate DELETE or UPDATE")
	assert.Contains(t, a.User, "orders(id)")
	assert.Zero(t, a.Temperature)

	empty := GenerationPrompt("q", "", "PostgreSQL")
	assert.Contains(t, empty.User, "(none provided)")
	assert.Contains(t, empty.System, "PostgreSQL")
}

func TestOptimizationPrompt(t *testing.T) {
	p := OptimizationPrompt("SELECT * FROM t", "", "")
	assert.Contains(t, p.User, "SELECT * FROM t")
	assert.Contains(t, p.User, "(not provided)")
	assert.Contains(t, p.System, "Do NOT use DELETE or UPDATE")
	assert.InDelta(t, 0.1, p.Temperature, 1e-6)
	assert.Equal(t, 1000, p.MaxTokens)
}
