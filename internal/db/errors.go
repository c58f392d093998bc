package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// ErrorKind 실행 오류 분류
type ErrorKind string

const (
	KindObjectNotFound ErrorKind = "object_not_found"
	KindProgramming    ErrorKind = "programming"
	KindOperational    ErrorKind = "operational"
	KindInterface      ErrorKind = "interface"
	KindDatabase       ErrorKind = "database"
	KindRejected       ErrorKind = "rejected"
)

const (
	suggestionCutoff = 0.55
	maxSuggestions   = 5
	maxListedTables  = 8
)

var (
	quotedName    = regexp.MustCompile(`["'\[]([^"'\]]+)["'\]]`)
	fromTarget    = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+([\w."$#]+)`)
	missingObject = regexp.MustCompile(`Object '([^']+)'`)
	similarTables = regexp.MustCompile(`Similar existing tables:\s*([A-Za-z0-9_.$]+)`)
)

// ExecError 쿼리 실행 오류
type ExecError struct {
	Kind          ErrorKind
	Message       string
	MissingObject string
	Suggestions   []string
	Err           error
}

func (e *ExecError) Error() string {
	return e.Message
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// IsObjectNotFound 객체 없음/권한 없음 오류인지 확인
func IsObjectNotFound(err error) bool {
	var e *ExecError
	return errors.As(err, &e) && e.Kind == KindObjectNotFound
}

// ParseSuggestion 오류 메시지에서 누락 객체와 첫 번째 추천 테이블 추출
func ParseSuggestion(msg string) (missing, suggestion string, ok bool) {
	m := missingObject.FindStringSubmatch(msg)
	s := similarTables.FindStringSubmatch(msg)
	if m == nil || s == nil {
		return "", "", false
	}
	missing, suggestion = m[1], strings.TrimRight(s[1], ".")
	if strings.EqualFold(missing, suggestion) {
		return "", "", false
	}
	return missing, suggestion, true
}

// execError 드라이버 오류를 ExecError 로 변환. 객체 없음이면 유사 테이블 제안 포함
func (b *BaseConnector) execError(ctx context.Context, query string, err error) error {
	kind := classifyCommon(err)
	if kind == "" && b.dialect.classify != nil {
		kind = b.dialect.classify(err)
	}
	if kind == "" {
		kind = classifyMessage(err.Error())
	}

	if kind != KindObjectNotFound {
		b.logger.Error("쿼리 실패", "db", b.dialect.label, "kind", string(kind), "error", err)
		return &ExecError{Kind: kind, Message: kindPrefix(kind) + err.Error(), Err: err}
	}

	tables, listErr := b.ListTables(ctx)
	if listErr != nil {
		b.logger.Warn("추천용 테이블 목록 조회 실패", "error", listErr)
	}

	name := missingName(err.Error(), query, tables)
	e := &ExecError{Kind: KindObjectNotFound, MissingObject: name, Err: err}
	e.Suggestions = similar(name, tables)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Object '%s' does not exist or not authorized.", name)
	switch {
	case len(e.Suggestions) > 0:
		fmt.Fprintf(&sb, " Similar existing tables: %s.", strings.Join(e.Suggestions, ", "))
	case len(tables) > 0:
		listed := tables
		if len(listed) > maxListedTables {
			listed = listed[:maxListedTables]
		}
		fmt.Fprintf(&sb, " Available tables include: %s...", strings.Join(listed, ", "))
	}
	e.Message = sb.String()

	b.logger.Error("객체 없음", "db", b.dialect.label, "object", name, "suggestions", e.Suggestions)
	return e
}

func classifyCommon(err error) ErrorKind {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled), errors.Is(err, driver.ErrBadConn):
		return KindOperational
	}
	return ""
}

func classifyMessage(msg string) ErrorKind {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "does not exist"), strings.Contains(lower, "doesn't exist"),
		strings.Contains(lower, "object not found"), strings.Contains(lower, "invalid object name"):
		return KindObjectNotFound
	case strings.Contains(lower, "syntax"):
		return KindProgramming
	case strings.Contains(lower, "connection"), strings.Contains(lower, "timeout"):
		return KindOperational
	}
	return KindDatabase
}

func kindPrefix(kind ErrorKind) string {
	switch kind {
	case KindProgramming:
		return "Programming error: "
	case KindOperational:
		return "Operational error: "
	case KindInterface:
		return "Interface error: "
	default:
		return "Database error: "
	}
}

// missingName 드라이버 메시지의 따옴표 이름, 없으면 목록에 없는 FROM/JOIN 대상
func missingName(msg, query string, tables []string) string {
	if m := missingObject.FindStringSubmatch(msg); m != nil {
		return m[1]
	}
	if m := quotedName.FindStringSubmatch(msg); m != nil {
		return m[1]
	}

	known := make(map[string]bool, len(tables))
	for _, t := range tables {
		known[strings.ToLower(t)] = true
	}
	for _, m := range fromTarget.FindAllStringSubmatch(query, -1) {
		name := strings.Trim(m[1], `"`)
		if !known[strings.ToLower(baseName(name))] {
			return name
		}
	}
	return "unknown"
}

// similar 편집 거리 비율이 기준 이상인 테이블 (유사도 내림차순)
func similar(name string, tables []string) []string {
	target := strings.ToLower(baseName(name))
	if target == "" || target == "unknown" {
		return nil
	}

	type scored struct {
		name  string
		ratio float64
	}
	var matches []scored
	for _, t := range tables {
		candidate := strings.ToLower(t)
		longest := len(target)
		if len(candidate) > longest {
			longest = len(candidate)
		}
		ratio := 1 - float64(fuzzy.LevenshteinDistance(target, candidate))/float64(longest)
		if ratio >= suggestionCutoff {
			matches = append(matches, scored{name: t, ratio: ratio})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].ratio > matches[j].ratio })
	if len(matches) > maxSuggestions {
		matches = matches[:maxSuggestions]
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.name)
	}
	return out
}

func baseName(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}
