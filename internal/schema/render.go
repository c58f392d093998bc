package schema

import (
	"fmt"
	"strings"

	"sql-intelligence/pkg/models"
)

// EmptyOverview 테이블이 없을 때의 개요
const EmptyOverview = "(no tables discovered)"

// Overview table(col1, col2, ...) 한 줄씩. 테이블/컬럼 수는 max 값으로 제한 (0 이면 무제한)
func Overview(s *models.Schema, maxTables, maxCols int) string {
	if s == nil || len(s.Tables) == 0 {
		return EmptyOverview
	}

	tables := s.Tables
	if maxTables > 0 && len(tables) > maxTables {
		tables = tables[:maxTables]
	}

	lines := make([]string, 0, len(tables))
	for _, t := range tables {
		cols := t.Columns
		if maxCols > 0 && len(cols) > maxCols {
			cols = cols[:maxCols]
		}
		names := make([]string, len(cols))
		for i, c := range cols {
			names[i] = c.Name
		}
		lines = append(lines, fmt.Sprintf("%s(%s)", t.Name, strings.Join(names, ", ")))
	}
	return strings.Join(lines, "\n")
}

// TableInfo 스키마 체인 프롬프트용 CREATE TABLE 텍스트
func TableInfo(s *models.Schema) string {
	if s == nil || len(s.Tables) == 0 {
		return EmptyOverview
	}

	var sb strings.Builder
	for i, table := range s.Tables {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "CREATE TABLE %s (\n", quote(table.Name, s.DBType))

		defs := make([]string, 0, len(table.Columns)+len(table.ForeignKeys)+1)
		for _, col := range table.Columns {
			def := fmt.Sprintf("\t%s %s", quote(col.Name, s.DBType), col.Type)
			if !col.Nullable {
				def += " NOT NULL"
			}
			if col.Default != "" {
				def += " DEFAULT " + col.Default
			}
			if col.Comment != "" {
				def += " -- " + col.Comment
			}
			defs = append(defs, def)
		}

		if len(table.PrimaryKey) > 0 {
			pkCols := make([]string, len(table.PrimaryKey))
			for i, pk := range table.PrimaryKey {
				pkCols[i] = quote(pk, s.DBType)
			}
			defs = append(defs, fmt.Sprintf("\tPRIMARY KEY (%s)", strings.Join(pkCols, ", ")))
		}
		for _, fk := range table.ForeignKeys {
			defs = append(defs, fmt.Sprintf("\tFOREIGN KEY (%s) REFERENCES %s(%s)",
				quote(fk.Column, s.DBType), quote(fk.RefTable, s.DBType), quote(fk.RefColumn, s.DBType)))
		}

		sb.WriteString(strings.Join(defs, ",\n"))
		sb.WriteString("\n)")
	}
	return sb.String()
}

func quote(name string, dbType models.DBType) string {
	switch dbType {
	case models.MySQL:
		return "`" + name + "`"
	case models.PostgreSQL:
		return `"` + name + `"`
	case models.SQLServer:
		return "[" + name + "]"
	case models.Oracle:
		return `"` + strings.ToUpper(name) + `"`
	default:
		return name
	}
}
