package ai

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	generationTemperature   = 0
	optimizationTemperature = 0.1
	optimizationMaxTokens   = 1000
)

var codeFence = regexp.MustCompile("(?is)```(?:sql)?\\s*(.*?)```")

func dialectOr(dialect string) string {
	if dialect == "" {
		return "Snowflake"
	}
	return dialect
}

// GenerationPrompt 생성용 결정적 프롬프트
func GenerationPrompt(question, schemaHint, dialect string) CompletionRequest {
	d := dialectOr(dialect)
	if schemaHint == "" {
		schemaHint = "(none provided)"
	}

	system := fmt.Sprintf("You are a %s SQL generation assistant. "+
		"Use full %s knowledge (CTEs, window functions, SHOW, DESCRIBE, CALL, EXPLAIN, functions, views, semi-structured data handling). "+
		"Return SQL only (no explanations, no comments, no backticks). "+
		"Do NOT generate DELETE or UPDATE statements. "+
		"Other read-only statements are permitted if helpful.", d, d)

	user := fmt.Sprintf(`Schema (may be partial):
%s

User request:
%s

Guidance:
- Return pure %s SQL (no commentary/backticks)
- You MAY use any read-only features (CTEs, window functions, SHOW, DESCRIBE, EXPLAIN, CALL for UDFs, semi-structured data access)
- Do NOT produce DELETE or UPDATE statements
Return only SQL.`, schemaHint, question, d)

	return CompletionRequest{System: system, User: user, Temperature: generationTemperature}
}

// OptimizationPrompt 최적화용 프롬프트
func OptimizationPrompt(sql, schemaText, dialect string) CompletionRequest {
	d := dialectOr(dialect)
	if schemaText == "" {
		schemaText = "(not provided)"
	}

	system := fmt.Sprintf(`You are an expert %s SQL performance optimizer. MAXIMIZE speed without changing semantics.

STRATEGIES:
1. Full restructuring (CTEs <-> subqueries <-> joins <-> set operations).
2. Join optimization: reorder by selectivity; replace IN/NOT IN with semi/anti joins.
3. Predicate pushdown: apply filters early, merge redundant conditions.
4. Aggregation: pre-aggregate; remove redundant DISTINCT/GROUP BY; use window functions.
5. Column pruning: remove unused columns; avoid SELECT *.
6. Structure minimization: flatten nesting; drop ORDER BY unless final ordering is required.

RULES:
- Output ONLY SQL (no comments/backticks/explanation).
- Preserve result columns and semantics.
- Do NOT use DELETE or UPDATE.
- Other read-only statements allowed if beneficial.`, d)

	user := fmt.Sprintf(`Schema context:
%s

Original query to optimize:
%s

TASK: Rewrite this query using the fastest approach possible. You may change query structure, reorder operations and use any %s features.

Return ONLY the optimized SQL query with no explanations.`, schemaText, sql, d)

	return CompletionRequest{
		System:      system,
		User:        user,
		Temperature: optimizationTemperature,
		MaxTokens:   optimizationMaxTokens,
	}
}

// CleanSQL 백틱/코드 펜스/공백을 벗기고 첫 문장만 남긴다
func CleanSQL(text string) string {
	text = strings.TrimSpace(text)
	if m := codeFence.FindStringSubmatch(text); len(m) > 1 {
		text = m[1]
	}
	text = strings.Trim(strings.TrimSpace(text), "`")
	text = strings.TrimSpace(text)
	// 닫히지 않은 펜스의 언어 태그
	if len(text) > 4 && strings.EqualFold(text[:4], "sql\n") {
		text = strings.TrimSpace(text[4:])
	}
	return FirstStatement(text)
}

// FirstStatement ; 로 나눈 첫 번째 비어 있지 않은 문장
func FirstStatement(text string) string {
	if !strings.Contains(text, ";") {
		return strings.TrimSpace(text)
	}
	for _, part := range strings.Split(text, ";") {
		if s := strings.TrimSpace(part); s != "" {
			return s
		}
	}
	return ""
}
