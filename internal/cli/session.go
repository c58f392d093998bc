package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"

	"sql-intelligence/internal/query"
	"sql-intelligence/pkg/models"
)

var errNoDatabase = errors.New("데이터베이스에 연결되어 있지 않습니다 (DATABASE_URL 또는 SNOWFLAKE_* 설정 필요)")

type generator interface {
	Generate(ctx context.Context, req models.GenerationRequest) (string, error)
}

type optimizer interface {
	Optimize(ctx context.Context, sql, schemaText string) (models.OptimizationOutcome, error)
}

type runner interface {
	Ask(ctx context.Context, question, extraHint string) (*query.AskResult, error)
	Describe(ctx context.Context) (string, error)
	Compare(ctx context.Context, original, optimized string) (*query.Comparison, error)
}

// session 명령과 REPL 이 공유하는 동작
type session struct {
	out       io.Writer
	generator generator
	optimizer optimizer
	runner    runner // nil 이면 실행 불가
	status    func() []models.ProviderStatus
	history   *History
}

func (s *session) ask(ctx context.Context, question, hint string) error {
	if s.runner == nil {
		return errNoDatabase
	}

	stop := startSpinner("쿼리 생성 및 실행 중...")
	res, err := s.runner.Ask(ctx, question, hint)
	stop()
	if res != nil && res.SQL != "" {
		fmt.Fprintln(s.out, formatSQL(res.SQL))
	}
	if err != nil {
		return err
	}

	if res.Note != "" {
		pterm.Info.Println(res.Note)
	}
	renderResult(s.out, res.Result)

	rows := 0
	if res.Result != nil {
		rows = len(res.Result.Rows)
	}
	s.history.Add(HistoryEntry{Question: question, SQL: res.SQL, Rows: rows})
	return nil
}

func (s *session) generate(ctx context.Context, req models.GenerationRequest) error {
	stop := startSpinner("쿼리 생성 중...")
	sql, err := s.generator.Generate(ctx, req)
	stop()
	if err != nil {
		return err
	}

	fmt.Fprintln(s.out, formatSQL(sql))
	s.history.Add(HistoryEntry{Question: req.Question, SQL: sql})
	return nil
}

func (s *session) optimize(ctx context.Context, sql, schemaText string, compare bool) error {
	stop := startSpinner("쿼리 최적화 중...")
	outcome, err := s.optimizer.Optimize(ctx, sql, schemaText)
	stop()
	if err != nil {
		return err
	}

	fmt.Fprintln(s.out, formatSQL(outcome.Optimized))
	if !outcome.Changed {
		pterm.Info.Println("변경 사항 없음")
		return nil
	}
	if !compare {
		return nil
	}
	if s.runner == nil {
		return errNoDatabase
	}

	cmp, err := s.runner.Compare(ctx, outcome.Original, outcome.Optimized)
	if err != nil {
		return err
	}
	renderComparison(s.out, cmp)
	return nil
}

func (s *session) describe(ctx context.Context) error {
	if s.runner == nil {
		return errNoDatabase
	}
	text, err := s.runner.Describe(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, text)
	return nil
}

// repl 한 줄씩 읽어 명령 또는 질의로 처리. /quit 나 EOF 에서 끝난다
func (s *session) repl(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	fmt.Fprintln(s.out, "명령어: /optimize <쿼리>, /schema, /history, /status, /quit")
	for {
		fmt.Fprint(s.out, "sqli> ")
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "exit" || line == "quit":
			return nil
		case strings.HasPrefix(line, "/"):
			if quit := s.command(ctx, line); quit {
				return nil
			}
			continue
		}

		var err error
		if s.runner != nil {
			err = s.ask(ctx, line, "")
		} else {
			err = s.generate(ctx, models.GenerationRequest{Question: line})
		}
		if err != nil {
			fmt.Fprintf(s.out, "오류: %v\n", err)
		}
	}
}

func (s *session) command(ctx context.Context, line string) (quit bool) {
	parts := strings.SplitN(line, " ", 2)
	arg := ""
	if len(parts) == 2 {
		arg = strings.TrimSpace(parts[1])
	}

	var err error
	switch strings.ToLower(parts[0]) {
	case "/quit", "/exit":
		return true
	case "/optimize":
		if arg == "" {
			fmt.Fprintln(s.out, "사용법: /optimize <쿼리>")
			return false
		}
		err = s.optimize(ctx, arg, "", false)
	case "/schema":
		err = s.describe(ctx)
	case "/history":
		renderHistory(s.out, s.history.Entries())
	case "/status":
		renderStatus(s.out, s.status())
	default:
		fmt.Fprintln(s.out, "알 수 없는 명령어:", parts[0])
	}
	if err != nil {
		fmt.Fprintf(s.out, "오류: %v\n", err)
	}
	return false
}

// startSpinner 스피너 시작. 반환 함수로 멈추고 지운다
func startSpinner(text string) func() {
	spinner, err := pterm.DefaultSpinner.WithRemoveWhenDone(true).Start(text)
	if err != nil {
		return func() {}
	}
	return func() { _ = spinner.Stop() }
}
