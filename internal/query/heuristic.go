package query

import (
	"regexp"
	"strings"
)

// 휴리스틱 재작성은 단순한 문장을 대상으로 한다. 괄호 매칭은 작은/큰따옴표
// 리터럴을 건너뛰지만 주석, 달러 인용, 방언별 이스케이프는 해석하지 않는다.
// 복잡한 SQL 에 대해서는 파서 기반 구현으로 교체해야 한다.

var (
	doubleDistinct = regexp.MustCompile(`(?i)\bDISTINCT\s+DISTINCT\b`)
	outerDistinct  = regexp.MustCompile(`(?i)^\s*SELECT\s+DISTINCT\b`)
	nestedDistinct = regexp.MustCompile(`(?i)\(\s*SELECT\s+DISTINCT\b`)
	withPrefix     = regexp.MustCompile(`(?i)^\s*WITH\b`)
	selectStart    = regexp.MustCompile(`(?i)^\s*SELECT\b`)
	selectKeyword  = regexp.MustCompile(`(?i)\bSELECT\b`)
	orderByClause  = regexp.MustCompile(`(?i)\bORDER\s+BY\b`)
	rowCap         = regexp.MustCompile(`(?i)\b(TOP|LIMIT|FETCH|OFFSET)\b`)
)

// Rewrite 결정적 텍스트 재작성. 적용된 규칙이 없으면 입력을 그대로 반환
func Rewrite(sql string) string {
	original := strings.TrimSpace(sql)
	work := original

	work = stripWrapping(work)
	work = replaceOutsideQuotes(work, doubleDistinct, "DISTINCT")
	if outerDistinct.MatchString(work) {
		work = replaceOutsideQuotes(work, nestedDistinct, "(SELECT")
	}
	work = stripCTEOrderBy(work)
	work = rewriteGroups(work, stripSubqueryOrderBy)

	if work == original {
		return sql
	}
	return work
}

// stripWrapping 문장 전체를 감싸는 괄호 한 겹 제거
func stripWrapping(s string) string {
	if !strings.HasPrefix(s, "(") {
		return s
	}
	mask := quotedMask(s)
	if matchParen(s, mask, 0) != len(s)-1 {
		return s
	}
	return strings.TrimSpace(s[1 : len(s)-1])
}

// stripCTEOrderBy 최종 SELECT 에 ORDER BY 가 있으면 CTE 본문의 ORDER BY 제거
func stripCTEOrderBy(s string) string {
	if !withPrefix.MatchString(s) {
		return s
	}
	selects := topLevelMatches(s, selectKeyword)
	if len(selects) == 0 {
		return s
	}
	final := selects[0][0]

	ordered := false
	for _, m := range topLevelMatches(s, orderByClause) {
		if m[0] > final {
			ordered = true
			break
		}
	}
	if !ordered {
		return s
	}

	head := rewriteTopGroups(s[:final], func(body string) string {
		if hasRowCap(body) {
			return body
		}
		return stripOrderBy(body)
	})
	return head + s[final:]
}

// stripSubqueryOrderBy 행 제한 없는 서브쿼리의 ORDER BY 제거
func stripSubqueryOrderBy(body string) string {
	if !selectStart.MatchString(body) || hasRowCap(body) {
		return body
	}
	return stripOrderBy(body)
}

func stripOrderBy(body string) string {
	matches := topLevelMatches(body, orderByClause)
	if len(matches) == 0 {
		return body
	}
	return strings.TrimRight(body[:matches[0][0]], " \t\r\n")
}

func hasRowCap(body string) bool {
	return len(outsideQuotes(body, rowCap)) > 0
}

// quotedMask 따옴표 리터럴/식별자 내부 위치
func quotedMask(s string) []bool {
	mask := make([]bool, len(s))
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			mask[i] = true
			if c == quote {
				if i+1 < len(s) && s[i+1] == quote {
					mask[i+1] = true
					i++
					continue
				}
				quote = 0
			}
			continue
		}
		if c == '\'' || c == '"' {
			quote = c
			mask[i] = true
		}
	}
	return mask
}

// depths 각 위치의 괄호 깊이. 리터럴 내부는 -1
func depths(s string, mask []bool) []int {
	d := make([]int, len(s))
	depth := 0
	for i := 0; i < len(s); i++ {
		if mask[i] {
			d[i] = -1
			continue
		}
		switch s[i] {
		case '(':
			d[i] = depth
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
			d[i] = depth
		default:
			d[i] = depth
		}
	}
	return d
}

func matchParen(s string, mask []bool, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		if mask[i] {
			continue
		}
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func topLevelMatches(s string, re *regexp.Regexp) [][]int {
	d := depths(s, quotedMask(s))
	var out [][]int
	for _, m := range re.FindAllStringIndex(s, -1) {
		if d[m[0]] == 0 {
			out = append(out, m)
		}
	}
	return out
}

func outsideQuotes(s string, re *regexp.Regexp) [][]int {
	mask := quotedMask(s)
	var out [][]int
	for _, m := range re.FindAllStringIndex(s, -1) {
		if !mask[m[0]] {
			out = append(out, m)
		}
	}
	return out
}

func replaceOutsideQuotes(s string, re *regexp.Regexp, repl string) string {
	matches := outsideQuotes(s, re)
	if len(matches) == 0 {
		return s
	}
	var sb strings.Builder
	last := 0
	for _, m := range matches {
		sb.WriteString(s[last:m[0]])
		sb.WriteString(repl)
		last = m[1]
	}
	sb.WriteString(s[last:])
	return sb.String()
}

// rewriteGroups 괄호 그룹을 안쪽부터 fn 으로 재작성
func rewriteGroups(s string, fn func(body string) string) string {
	return walkGroups(s, fn, true)
}

// rewriteTopGroups 최상위 괄호 그룹만 재작성
func rewriteTopGroups(s string, fn func(body string) string) string {
	return walkGroups(s, fn, false)
}

func walkGroups(s string, fn func(body string) string, nested bool) string {
	mask := quotedMask(s)
	var sb strings.Builder
	last := 0
	for i := 0; i < len(s); i++ {
		if mask[i] || s[i] != '(' {
			continue
		}
		j := matchParen(s, mask, i)
		if j < 0 {
			break
		}
		inner := s[i+1 : j]
		if nested {
			inner = walkGroups(inner, fn, true)
		}
		sb.WriteString(s[last:i])
		sb.WriteString("(")
		sb.WriteString(fn(inner))
		sb.WriteString(")")
		last = j + 1
		i = j
	}
	sb.WriteString(s[last:])
	return sb.String()
}
