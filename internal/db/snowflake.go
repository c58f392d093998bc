package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/snowflakedb/gosnowflake"

	"sql-intelligence/pkg/models"
)

// SnowflakeConnector Snowflake 연결자
type SnowflakeConnector struct {
	BaseConnector
}

var snowflakeDialect = dialect{
	label:  "Snowflake",
	driver: "snowflake",
	tables: `
		SELECT DISTINCT table_name
		FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY 1
		LIMIT 200`,
	tableArgs: func(cfg models.DBConfig) []interface{} {
		return []interface{}{strings.ToUpper(schemaOr(cfg, "PUBLIC"))}
	},
	columns: `
		SELECT column_name, data_type, is_nullable, column_default, 0 AS is_pk
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position`,
	columnArgs: func(cfg models.DBConfig, table string) []interface{} {
		return []interface{}{strings.ToUpper(schemaOr(cfg, "PUBLIC")), table}
	},
	classify: classifySnowflake,
}

// 예제 .env 에 남아 있는 자리표시자 값
var snowflakePlaceholders = map[string][]string{
	"SNOWFLAKE_ACCOUNT":  {"your_account_region", "xyz123.region"},
	"SNOWFLAKE_USER":     {"readonly_user"},
	"SNOWFLAKE_PASSWORD": {"your_password"},
}

// NewSnowflakeConnector Snowflake 연결자 생성
func NewSnowflakeConnector(config models.DBConfig) (*SnowflakeConnector, error) {
	config.Type = models.Snowflake
	return &SnowflakeConnector{BaseConnector: newBase(config, snowflakeDialect)}, nil
}

func (s *SnowflakeConnector) Connect(ctx context.Context) error {
	if err := ValidateSnowflake(s.config); err != nil {
		return err
	}

	dsn, err := gosnowflake.DSN(&gosnowflake.Config{
		Account:   s.config.Account,
		User:      s.config.User,
		Password:  s.config.Password,
		Database:  s.config.Database,
		Schema:    s.config.Schema,
		Warehouse: s.config.Warehouse,
		Role:      s.config.Role,
	})
	if err != nil {
		return fmt.Errorf("Snowflake DSN 생성 실패: %w", err)
	}
	return s.open(ctx, dsn)
}

// ValidateSnowflake 필수 값 누락과 자리표시자 값 검사
func ValidateSnowflake(cfg models.DBConfig) error {
	var missing []string
	if cfg.User == "" {
		missing = append(missing, "user")
	}
	if cfg.Password == "" {
		missing = append(missing, "password")
	}
	if cfg.Account == "" {
		missing = append(missing, "account")
	}
	if len(missing) > 0 {
		return fmt.Errorf("Missing required Snowflake environment variables: %s", strings.Join(missing, ", "))
	}

	values := map[string]string{
		"SNOWFLAKE_ACCOUNT":  cfg.Account,
		"SNOWFLAKE_USER":     cfg.User,
		"SNOWFLAKE_PASSWORD": cfg.Password,
	}
	var hits []string
	for _, env := range []string{"SNOWFLAKE_ACCOUNT", "SNOWFLAKE_USER", "SNOWFLAKE_PASSWORD"} {
		for _, p := range snowflakePlaceholders[env] {
			if strings.TrimSpace(values[env]) == p {
				hits = append(hits, env)
			}
		}
	}
	if len(hits) > 0 {
		return fmt.Errorf("Snowflake configuration still contains placeholder values for: %s. Please update your .env with real credentials.",
			strings.Join(hits, ", "))
	}
	return nil
}

// classifySnowflake 오류 번호 기준 분류
func classifySnowflake(err error) ErrorKind {
	var sfErr *gosnowflake.SnowflakeError
	if !errors.As(err, &sfErr) {
		return ""
	}
	switch sfErr.Number {
	case 2003, 2043:
		return KindObjectNotFound
	case 1003, 904, 2028:
		return KindProgramming
	case 390100, 390144, 260008:
		return KindOperational
	}
	if strings.Contains(sfErr.Message, "does not exist") {
		return KindObjectNotFound
	}
	return KindDatabase
}
