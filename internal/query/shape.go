package query

import (
	"regexp"
	"strings"
)

var (
	joinKeyword     = regexp.MustCompile(`\bJOIN\b`)
	selectStar      = regexp.MustCompile(`SELECT\s+\*`)
	distinctKeyword = regexp.MustCompile(`\bDISTINCT\b`)
	orderByKeyword  = regexp.MustCompile(`\bORDER\s+BY\b`)
	qualifyKeyword  = regexp.MustCompile(`\bQUALIFY\b`)
	groupByKeyword  = regexp.MustCompile(`\bGROUP\s+BY\b`)
)

// Shape 쿼리 구조 지표
type Shape struct {
	Lines      int  `json:"lines"`
	Chars      int  `json:"chars"`
	CTEs       int  `json:"ctes"`
	Joins      int  `json:"joins"`
	SelectStar bool `json:"select_star"`
	Distincts  int  `json:"distincts"`
	OrderBy    int  `json:"order_by"`
	Qualify    int  `json:"qualify"`
	GroupBy    int  `json:"group_by"`
}

// MeasureShape 구조 지표 계산
func MeasureShape(sql string) Shape {
	text := strings.TrimSpace(sql)
	upper := strings.ToUpper(text)

	lines := 0
	for _, l := range strings.Split(sql, "\n") {
		if strings.TrimSpace(l) != "" {
			lines++
		}
	}

	return Shape{
		Lines:      lines,
		Chars:      len(text),
		CTEs:       strings.Count(upper, "WITH "),
		Joins:      len(joinKeyword.FindAllString(upper, -1)),
		SelectStar: selectStar.MatchString(upper),
		Distincts:  len(distinctKeyword.FindAllString(upper, -1)),
		OrderBy:    len(orderByKeyword.FindAllString(upper, -1)),
		Qualify:    len(qualifyKeyword.FindAllString(upper, -1)),
		GroupBy:    len(groupByKeyword.FindAllString(upper, -1)),
	}
}

// ShapeDelta 최적화 전후 지표 차이 (after - before)
type ShapeDelta struct {
	Before Shape `json:"before"`
	After  Shape `json:"after"`
	Lines  int   `json:"lines"`
	Chars  int   `json:"chars"`
	CTEs   int   `json:"ctes"`
	Joins  int   `json:"joins"`
	// SelectStarRemoved 원본에 있던 SELECT * 가 사라짐
	SelectStarRemoved bool `json:"select_star_removed"`
	Distincts         int  `json:"distincts"`
	OrderBy           int  `json:"order_by"`
	GroupBy           int  `json:"group_by"`
	Qualify           int  `json:"qualify"`
}

// CompareShapes 두 쿼리의 구조 지표 비교
func CompareShapes(before, after string) ShapeDelta {
	b, a := MeasureShape(before), MeasureShape(after)
	return ShapeDelta{
		Before:            b,
		After:             a,
		Lines:             a.Lines - b.Lines,
		Chars:             a.Chars - b.Chars,
		CTEs:              a.CTEs - b.CTEs,
		Joins:             a.Joins - b.Joins,
		SelectStarRemoved: b.SelectStar && !a.SelectStar,
		Distincts:         a.Distincts - b.Distincts,
		OrderBy:           a.OrderBy - b.OrderBy,
		GroupBy:           a.GroupBy - b.GroupBy,
		Qualify:           a.Qualify - b.Qualify,
	}
}
