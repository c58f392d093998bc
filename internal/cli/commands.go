package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"sql-intelligence/internal/schema"
	"sql-intelligence/internal/validator"
	"sql-intelligence/pkg/models"
)

var offline = map[string]string{"offline": "true"}

func newAskCmd(e *env) *cobra.Command {
	var hint string
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "질의를 SQL 로 만들어 실행 (객체 없음 오류는 한 번 자동 보정)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.session().ask(cmd.Context(), strings.Join(args, " "), hint)
		},
	}
	cmd.Flags().StringVar(&hint, "hint", "", "추가 스키마 힌트")
	return cmd
}

func newGenerateCmd(e *env) *cobra.Command {
	var hintFile, databaseURI string
	cmd := &cobra.Command{
		Use:   "generate <question>",
		Short: "질의를 SQL 로 변환 (실행하지 않음)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hint, err := readHint(hintFile)
			if err != nil {
				return err
			}
			return e.session().generate(cmd.Context(), models.GenerationRequest{
				Question:    strings.Join(args, " "),
				SchemaHint:  hint,
				DatabaseURI: databaseURI,
			})
		},
	}
	cmd.Flags().StringVar(&hintFile, "schema-file", "", "스키마 힌트 파일 (DDL 이면 개요로 변환)")
	cmd.Flags().StringVar(&databaseURI, "database-uri", "", "스키마 체인에 사용할 데이터베이스 URI")
	return cmd
}

func newOptimizeCmd(e *env) *cobra.Command {
	var file, schemaFile string
	var compare bool
	cmd := &cobra.Command{
		Use:   "optimize [sql]",
		Short: "쿼리 최적화 (LLM, 실패 시 휴리스틱)",
		RunE: func(cmd *cobra.Command, args []string) error {
			sql := strings.Join(args, " ")
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("SQL 파일 읽기 실패: %w", err)
				}
				sql = string(data)
			}
			schemaText, err := readHint(schemaFile)
			if err != nil {
				return err
			}
			return e.session().optimize(cmd.Context(), sql, schemaText, compare)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "SQL 파일")
	cmd.Flags().StringVar(&schemaFile, "schema-file", "", "스키마 설명 파일")
	cmd.Flags().BoolVar(&compare, "compare", false, "원본과 최적화 쿼리를 실행해 비교")
	return cmd
}

func newValidateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:         "validate <sql>",
		Short:       "SQL 정리 후 안전성 검사",
		Args:        cobra.MinimumNArgs(1),
		Annotations: offline,
		RunE: func(_ *cobra.Command, args []string) error {
			stmt := validator.Sanitize(strings.Join(args, " "))
			ok, reason := validator.IsSafe(stmt)
			fmt.Fprintln(e.out, stmt)
			if !ok {
				return fmt.Errorf("rejected: %s", reason)
			}
			pterm.Success.Println("safe")
			return nil
		},
	}
}

func newSchemaCmd(e *env) *cobra.Command {
	var ddlFile, dbType string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "연결된 데이터베이스 또는 DDL 파일의 스키마 개요",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if ddlFile != "" {
				return nil
			}
			return e.build(cmd.Context())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if ddlFile == "" {
				return e.session().describe(cmd.Context())
			}
			data, err := os.ReadFile(ddlFile)
			if err != nil {
				return fmt.Errorf("DDL 파일 읽기 실패: %w", err)
			}
			parsed, err := schema.ParseDDL(string(data), models.DBType(dbType))
			if err != nil {
				return err
			}
			fmt.Fprintln(e.out, schema.TableInfo(parsed))
			return nil
		},
	}
	cmd.Flags().StringVar(&ddlFile, "ddl-file", "", "CREATE TABLE 문 파일")
	cmd.Flags().StringVar(&dbType, "db", string(models.PostgreSQL), "DDL 방언 (mysql, postgresql, oracle, sqlserver, snowflake)")
	return cmd
}

func newStatusCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "제공자 가용 상태",
		RunE: func(*cobra.Command, []string) error {
			renderStatus(e.out, e.app.Registry.Status())
			if e.app.Runner != nil {
				pterm.Success.Printf("database: %s\n", e.app.DBType)
			} else {
				pterm.Warning.Println("database: not connected")
			}
			return nil
		},
	}
}

func newReplCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "대화형 모드",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.session().repl(cmd.Context(), cmd.InOrStdin())
		},
	}
}

// readHint 파일 내용. DDL 이면 table(col, ...) 개요로 줄인다
func readHint(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("스키마 파일 읽기 실패: %w", err)
	}
	text := string(data)
	if !schema.LooksLikeDDL(text) {
		return text, nil
	}
	parsed, err := schema.ParseDDL(text, "")
	if err != nil {
		return text, nil
	}
	return schema.Overview(parsed, 0, 0), nil
}
