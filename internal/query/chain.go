package query

import (
	"context"
	"errors"
	"fmt"

	"sql-intelligence/internal/schema"
	"sql-intelligence/pkg/models"
)

// SchemaChain 데이터베이스 스키마를 직접 읽어 SQL 을 만드는 경로
type SchemaChain interface {
	Generate(ctx context.Context, question, databaseURI string) (string, error)
}

// InstructCompleter 단일 프롬프트 완성 모델
type InstructCompleter interface {
	CompleteInstruct(ctx context.Context, prompt string) (string, error)
}

// IntrospectFunc URI 로 연결해 스키마 추출
type IntrospectFunc func(ctx context.Context, databaseURI string) (*models.Schema, error)

// DBSchemaChain 스키마 추출 후 instruct 모델로 생성
type DBSchemaChain struct {
	completer  InstructCompleter
	introspect IntrospectFunc
}

// NewDBSchemaChain 스키마 체인 생성
func NewDBSchemaChain(completer InstructCompleter, introspect IntrospectFunc) *DBSchemaChain {
	return &DBSchemaChain{completer: completer, introspect: introspect}
}

// Generate 스키마 기반 SQL 생성
func (c *DBSchemaChain) Generate(ctx context.Context, question, databaseURI string) (string, error) {
	if c.completer == nil || c.introspect == nil {
		return "", errors.New("스키마 체인 미구성")
	}

	s, err := c.introspect(ctx, databaseURI)
	if err != nil {
		return "", fmt.Errorf("스키마 추출 실패: %w", err)
	}

	text, err := c.completer.CompleteInstruct(ctx, chainPrompt(schema.TableInfo(s), question))
	if err != nil {
		return "", fmt.Errorf("스키마 체인 완성 실패: %w", err)
	}
	return text, nil
}

func chainPrompt(tableInfo, question string) string {
	return fmt.Sprintf(`Given the following database schema:
%s

Write a SQL query that answers the question. Return only the SQL.

Question: %s

SQL Query:`, tableInfo, question)
}
