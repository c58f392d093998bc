// Package validator 읽기 전용 SQL 안전성 검사
package validator

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// ReasonEmpty 정리 후 남은 SQL이 없음
	ReasonEmpty = "SQL is empty after sanitization"
	// ReasonBlocked 데이터 변경 키워드 포함
	ReasonBlocked = "blocked keyword"
)

var blocked = regexp.MustCompile(`(?i)\b(DELETE|UPDATE)\b`)

// Sanitize 주석 제거 후 첫 번째 문장만 남긴다.
// 한 번의 스캔으로 처리하며 Sanitize(Sanitize(x)) == Sanitize(x) 이다.
// 따옴표 안의 -- 와 ; 는 그대로 둔다.
func Sanitize(sql string) string {
	var (
		out   strings.Builder
		quote rune
	)
	// 주석은 공백 하나로 대체. 앞뒤 문자가 붙어 새 주석이 생기지 않게 한다
	separate := func() {
		if last, size := utf8.DecodeLastRuneInString(out.String()); size > 0 && !unicode.IsSpace(last) {
			out.WriteByte(' ')
		}
	}

	for i := 0; i < len(sql); i++ {
		c := sql[i]

		if quote != 0 {
			out.WriteByte(c)
			if rune(c) == quote {
				quote = 0
			}
			continue
		}

		switch {
		case c == '\'' || c == '"' || c == '`':
			quote = rune(c)
			out.WriteByte(c)
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			end := strings.IndexByte(sql[i:], '\n')
			if end < 0 {
				i = len(sql)
			} else {
				i += end - 1
			}
			separate()
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				i = len(sql)
			} else {
				i += 2 + end + 1
			}
			separate()
		case c == ';':
			if s := strings.TrimSpace(out.String()); s != "" {
				return s
			}
			out.Reset()
		default:
			out.WriteByte(c)
		}
	}
	return strings.TrimSpace(out.String())
}

// IsSafe 실행 가능한 SQL인지 검사. 거부 시 사유 반환.
// 검사는 Sanitize 결과에 대해 수행하므로 호출자는 같은 결과를 실행하거나 반환해야 한다
func IsSafe(sql string) (bool, string) {
	cleaned := Sanitize(sql)
	if cleaned == "" {
		return false, ReasonEmpty
	}
	if blocked.MatchString(cleaned) {
		return false, ReasonBlocked
	}
	return true, ""
}
