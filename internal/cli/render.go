package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"sql-intelligence/internal/query"
	"sql-intelligence/pkg/models"
)

const maxCellWidth = 60

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetHeader(header)
	return table
}

func renderResult(w io.Writer, res *models.QueryResult) {
	if res == nil {
		return
	}
	table := newTable(w, res.Columns)
	for _, row := range res.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = cell(v)
		}
		table.Append(cells)
	}
	table.Render()

	fmt.Fprintf(w, "%d rows in %s", len(res.Rows), res.Elapsed)
	if res.Truncated {
		fmt.Fprint(w, " (truncated)")
	}
	fmt.Fprintln(w)
}

func renderStatus(w io.Writer, statuses []models.ProviderStatus) {
	table := newTable(w, []string{"Provider", "Available", "Models", "Reason / Last error"})
	for _, s := range statuses {
		note := s.Reason
		if s.LastError != "" {
			note = s.LastError
		}
		table.Append([]string{
			string(s.Name),
			fmt.Sprintf("%t", s.Available),
			strings.Join(s.Models, ", "),
			clip(note),
		})
	}
	table.Render()
}

func renderHistory(w io.Writer, entries []HistoryEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "(no history)")
		return
	}
	table := newTable(w, []string{"#", "Time", "Question", "SQL", "Rows"})
	for i, e := range entries {
		table.Append([]string{
			fmt.Sprintf("%d", i+1),
			e.Time.Format("15:04:05"),
			clip(e.Question),
			clip(e.SQL),
			fmt.Sprintf("%d", e.Rows),
		})
	}
	table.Render()
}

func renderComparison(w io.Writer, c *query.Comparison) {
	table := newTable(w, []string{"Metric", "Original", "Optimized", "Change"})
	table.Append([]string{"Seconds",
		fmt.Sprintf("%.3f", c.OriginalSeconds),
		fmt.Sprintf("%.3f", c.OptimizedSeconds),
		fmt.Sprintf("%.1f%% (x%.2f)", c.PercentFaster, c.Speedup)})
	table.Append([]string{"Rows",
		fmt.Sprintf("%d", c.OriginalRows),
		fmt.Sprintf("%d", c.OptimizedRows),
		fmt.Sprintf("match=%t", c.RowsMatch)})
	table.Append([]string{"Joins",
		fmt.Sprintf("%d", c.Shape.Before.Joins),
		fmt.Sprintf("%d", c.Shape.After.Joins),
		fmt.Sprintf("%+d", c.Shape.Joins)})
	table.Append([]string{"DISTINCT",
		fmt.Sprintf("%d", c.Shape.Before.Distincts),
		fmt.Sprintf("%d", c.Shape.After.Distincts),
		fmt.Sprintf("%+d", c.Shape.Distincts)})
	table.Render()
}

func cell(v interface{}) string {
	if v == nil {
		return "NULL"
	}
	return clip(fmt.Sprint(v))
}

func clip(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= maxCellWidth {
		return s
	}
	return s[:maxCellWidth-3] + "..."
}

// formatSQL 주요 절마다 줄을 바꾸고 들여쓴다
func formatSQL(sql string) string {
	keywords := []string{"SELECT", "FROM", "WHERE", "LEFT JOIN", "RIGHT JOIN", "INNER JOIN",
		"GROUP BY", "HAVING", "QUALIFY", "ORDER BY", "LIMIT", "OFFSET", "UNION ALL"}

	formatted := sql
	for _, kw := range keywords {
		formatted = strings.ReplaceAll(formatted, " "+kw+" ", "\n"+kw+" ")
		formatted = strings.ReplaceAll(formatted, " "+strings.ToLower(kw)+" ", "\n"+strings.ToLower(kw)+" ")
	}

	var result []string
	for _, line := range strings.Split(formatted, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			result = append(result, "   "+line)
		}
	}
	return strings.Join(result, "\n")
}
