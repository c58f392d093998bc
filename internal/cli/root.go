// Package cli sqli 명령줄 도구
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"sql-intelligence/internal/app"
	"sql-intelligence/internal/config"
	"sql-intelligence/internal/observability"
)

type ExitCode int

const (
	exitCodeSuccess = 0
	exitCodeError   = 1
)

// env 명령 실행 중 공유 상태
type env struct {
	verbose bool
	out     io.Writer
	app     *app.App
	// schemaChain --database-uri 를 명시하면 설정과 무관하게 스키마 체인 사용
	schemaChain bool
}

// Run 루트 명령 실행
func Run() ExitCode {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := &env{out: os.Stdout}
	root := newRootCmd(e)
	if err := root.ExecuteContext(ctx); err != nil {
		pterm.Error.Println(err.Error())
		return exitCodeError
	}
	return exitCodeSuccess
}

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:           "sqli",
		Short:         "자연어 SQL 생성, 최적화, 실행 도구",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations["offline"] == "true" {
				return nil
			}
			if f := cmd.Flags().Lookup("database-uri"); f != nil && f.Changed {
				e.schemaChain = true
			}
			return e.build(cmd.Context())
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if e.app != nil {
				return e.app.Close()
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().BoolVarP(&e.verbose, "verbose", "v", false, "디버그 로그 출력")

	root.AddCommand(
		newAskCmd(e),
		newGenerateCmd(e),
		newOptimizeCmd(e),
		newValidateCmd(e),
		newSchemaCmd(e),
		newStatusCmd(e),
		newReplCmd(e),
	)
	return root
}

// build 설정을 읽고 구성 요소 조립
func (e *env) build(ctx context.Context) error {
	cfg, err := config.LoadFromEnv("sqli-cli")
	if err != nil {
		return fmt.Errorf("설정 로드 실패: %w", err)
	}
	if e.schemaChain {
		cfg.Database.SchemaChain = true
	}
	cfg.Log.Level = "warn"
	if e.verbose {
		cfg.Log.Level = "debug"
	}

	a, err := app.Build(ctx, cfg, observability.NewLogger(cfg, os.Stderr))
	if err != nil {
		return err
	}
	e.app = a
	return nil
}

func (e *env) session() *session {
	s := &session{
		out:       e.out,
		generator: e.app.Generator,
		optimizer: e.app.Optimizer,
		status:    e.app.Registry.Status,
		history:   NewHistory(defaultHistorySize),
	}
	if e.app.Runner != nil {
		s.runner = e.app.Runner
	}
	return s
}
