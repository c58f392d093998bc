// Package schema 사용자 입력 스키마 파싱과 프롬프트용 렌더링
package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"sql-intelligence/pkg/models"
)

const quoteChars = "`\"'[]"

var (
	createTable = regexp.MustCompile(`(?i)CREATE\s+(?:OR\s+REPLACE\s+)?(?:TEMP(?:ORARY)?\s+)?TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?([` + "`" + `"\[\]\w.]+)\s*\(`)
	columnDef   = regexp.MustCompile(`^\s*[` + "`" + `"'\[]?(\w+)[` + "`" + `"'\]]?\s+(\w+(?:\s*\([^)]*\))?)\s*(.*)$`)
	defaultExpr = regexp.MustCompile(`(?i)DEFAULT\s+('[^']*'|[^\s,]+)`)
	commentExpr = regexp.MustCompile(`(?i)COMMENT\s+'([^']*)'`)
	primaryKey  = regexp.MustCompile(`(?i)PRIMARY\s+KEY\s*\(([^)]+)\)`)
	foreignKey  = regexp.MustCompile(`(?i)(?:CONSTRAINT\s+(\w+)\s+)?FOREIGN\s+KEY\s*\(\s*[` + "`" + `"'\[]?(\w+)[` + "`" + `"'\]]?\s*\)\s*REFERENCES\s+[` + "`" + `"'\[]?([\w.]+)[` + "`" + `"'\]]?\s*\(\s*[` + "`" + `"'\[]?(\w+)[` + "`" + `"'\]]?\s*\)`)
)

var constraintPrefixes = []string{"PRIMARY KEY", "FOREIGN KEY", "CONSTRAINT", "INDEX", "KEY", "UNIQUE", "CHECK"}

// ParseJSON JSON 형식 스키마 파싱
func ParseJSON(data []byte) (*models.Schema, error) {
	var s models.Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("JSON 파싱 실패: %w", err)
	}
	return &s, nil
}

// LooksLikeDDL CREATE TABLE 문 포함 여부
func LooksLikeDDL(text string) bool {
	return createTable.MatchString(text)
}

// ParseDDL DDL (CREATE TABLE) 문에서 스키마 파싱
func ParseDDL(ddl string, dbType models.DBType) (*models.Schema, error) {
	s := &models.Schema{
		DBType: dbType,
		Tables: []models.Table{},
	}

	for _, loc := range createTable.FindAllStringSubmatchIndex(ddl, -1) {
		name := strings.Trim(ddl[loc[2]:loc[3]], quoteChars)
		open := loc[1] - 1
		end := closingParen(ddl, open)
		if end < 0 {
			return nil, fmt.Errorf("%s 테이블 정의 괄호 불일치", name)
		}

		body := ddl[open+1 : end]
		table := models.Table{Name: name}
		for _, part := range splitTopLevel(body) {
			if isConstraint(part) {
				continue
			}
			if col, ok := parseColumn(part); ok {
				table.Columns = append(table.Columns, col)
			}
		}

		table.PrimaryKey = parsePrimaryKey(body)
		if len(table.PrimaryKey) == 0 {
			for _, c := range table.Columns {
				if c.IsPK {
					table.PrimaryKey = append(table.PrimaryKey, c.Name)
				}
			}
		}
		for i := range table.Columns {
			for _, pk := range table.PrimaryKey {
				if strings.EqualFold(table.Columns[i].Name, pk) {
					table.Columns[i].IsPK = true
				}
			}
		}
		table.ForeignKeys = parseForeignKeys(body)

		s.Tables = append(s.Tables, table)
	}

	if len(s.Tables) == 0 {
		return nil, fmt.Errorf("CREATE TABLE 문을 찾을 수 없음")
	}
	return s, nil
}

func parseColumn(def string) (models.Column, bool) {
	match := columnDef.FindStringSubmatch(def)
	if match == nil {
		return models.Column{}, false
	}

	col := models.Column{
		Name: match[1],
		Type: strings.Join(strings.Fields(match[2]), ""),
	}
	constraints := strings.ToUpper(match[3])
	col.Nullable = !strings.Contains(constraints, "NOT NULL")
	col.IsPK = strings.Contains(constraints, "PRIMARY KEY")

	if m := defaultExpr.FindStringSubmatch(match[3]); m != nil {
		col.Default = m[1]
	}
	if m := commentExpr.FindStringSubmatch(match[3]); m != nil {
		col.Comment = m[1]
	}
	return col, true
}

func isConstraint(def string) bool {
	upper := strings.ToUpper(strings.TrimSpace(def))
	for _, prefix := range constraintPrefixes {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return false
}

func parsePrimaryKey(body string) []string {
	match := primaryKey.FindStringSubmatch(body)
	if match == nil {
		return nil
	}

	var pks []string
	for _, col := range strings.Split(match[1], ",") {
		col = strings.Trim(strings.TrimSpace(col), quoteChars)
		if col != "" {
			pks = append(pks, col)
		}
	}
	return pks
}

func parseForeignKeys(body string) []models.FK {
	var fks []models.FK
	for _, match := range foreignKey.FindAllStringSubmatch(body, -1) {
		fk := models.FK{
			Name:      match[1],
			Column:    match[2],
			RefTable:  match[3],
			RefColumn: match[4],
		}
		if fk.Name == "" {
			fk.Name = fmt.Sprintf("fk_%s_%s", fk.Column, fk.RefTable)
		}
		fks = append(fks, fk)
	}
	return fks
}

// closingParen open 위치 괄호의 짝. 작은따옴표 리터럴은 건너뛴다
func closingParen(s string, open int) int {
	depth := 0
	inQuote := false
	for i := open; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\'':
			inQuote = !inQuote
		case inQuote:
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitTopLevel 괄호 밖의 쉼표로 분리
func splitTopLevel(body string) []string {
	var parts []string
	depth, start := 0, 0
	inQuote := false
	for i := 0; i < len(body); i++ {
		switch c := body[i]; {
		case c == '\'':
			inQuote = !inQuote
		case inQuote:
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == ',' && depth == 0:
			parts = append(parts, strings.TrimSpace(body[start:i]))
			start = i + 1
		}
	}
	if last := strings.TrimSpace(body[start:]); last != "" {
		parts = append(parts, last)
	}
	return parts
}
