package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"sql-intelligence/pkg/models"
)

// MySQLConnector MySQL 연결자
type MySQLConnector struct {
	BaseConnector
}

var mysqlDialect = dialect{
	label:  "MySQL",
	driver: "mysql",
	tables: `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name`,
	tableArgs: func(cfg models.DBConfig) []interface{} {
		return []interface{}{cfg.Database}
	},
	columns: `
		SELECT
			column_name, column_type, is_nullable, column_default,
			CASE WHEN column_key = 'PRI' THEN 1 ELSE 0 END AS is_pk
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position`,
	columnArgs: func(cfg models.DBConfig, table string) []interface{} {
		return []interface{}{cfg.Database, table}
	},
	classify: classifyMySQL,
}

// NewMySQLConnector MySQL 연결자 생성
func NewMySQLConnector(config models.DBConfig) (*MySQLConnector, error) {
	config.Type = models.MySQL
	return &MySQLConnector{BaseConnector: newBase(config, mysqlDialect)}, nil
}

func (m *MySQLConnector) Connect(ctx context.Context) error {
	// 연결 타임아웃 60초, 읽기/쓰기 타임아웃 30초
	cfg := mysql.NewConfig()
	cfg.User = m.config.User
	cfg.Passwd = m.config.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)
	cfg.DBName = m.config.Database
	cfg.ParseTime = true
	cfg.Timeout = 60 * time.Second
	cfg.ReadTimeout = 30 * time.Second
	cfg.WriteTimeout = 30 * time.Second
	cfg.Params = map[string]string{"charset": "utf8mb4"}

	return m.open(ctx, cfg.FormatDSN())
}

// classifyMySQL 서버 오류 번호 기준 분류
func classifyMySQL(err error) ErrorKind {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		if errors.Is(err, mysql.ErrInvalidConn) {
			return KindOperational
		}
		return ""
	}
	switch myErr.Number {
	case 1146:
		return KindObjectNotFound
	case 1054, 1064, 1109, 1142:
		return KindProgramming
	case 1040, 1205, 2006, 2013:
		return KindOperational
	}
	return KindDatabase
}
