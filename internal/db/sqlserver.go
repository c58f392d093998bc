package db

import (
	"context"
	"errors"
	"fmt"

	mssql "github.com/denisenkom/go-mssqldb"

	"sql-intelligence/pkg/models"
)

// SQLServerConnector SQL Server 연결자
type SQLServerConnector struct {
	BaseConnector
}

var sqlServerDialect = dialect{
	label:  "SQL Server",
	driver: "sqlserver",
	tables: `
		SELECT TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_TYPE = 'BASE TABLE' AND TABLE_SCHEMA = @p1
		ORDER BY TABLE_NAME`,
	tableArgs: func(cfg models.DBConfig) []interface{} {
		return []interface{}{schemaOr(cfg, "dbo")}
	},
	columns: `
		SELECT
			c.COLUMN_NAME, c.DATA_TYPE, c.IS_NULLABLE, c.COLUMN_DEFAULT,
			CASE WHEN pk.COLUMN_NAME IS NOT NULL THEN 1 ELSE 0 END AS IS_PK
		FROM INFORMATION_SCHEMA.COLUMNS c
		LEFT JOIN (
			SELECT ku.COLUMN_NAME
			FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
			JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE ku
				ON tc.CONSTRAINT_NAME = ku.CONSTRAINT_NAME
			WHERE tc.TABLE_SCHEMA = @p1 AND tc.TABLE_NAME = @p2 AND tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
		) pk ON c.COLUMN_NAME = pk.COLUMN_NAME
		WHERE c.TABLE_SCHEMA = @p1 AND c.TABLE_NAME = @p2
		ORDER BY c.ORDINAL_POSITION`,
	columnArgs: func(cfg models.DBConfig, table string) []interface{} {
		return []interface{}{schemaOr(cfg, "dbo"), table}
	},
	classify: classifySQLServer,
}

// NewSQLServerConnector SQL Server 연결자 생성
func NewSQLServerConnector(config models.DBConfig) (*SQLServerConnector, error) {
	config.Type = models.SQLServer
	return &SQLServerConnector{BaseConnector: newBase(config, sqlServerDialect)}, nil
}

func (s *SQLServerConnector) Connect(ctx context.Context) error {
	dsn := fmt.Sprintf("server=%s;port=%d;user id=%s;password=%s;database=%s",
		s.config.Host, s.config.Port, s.config.User, s.config.Password, s.config.Database)
	return s.open(ctx, dsn)
}

// classifySQLServer 오류 번호 기준 분류
func classifySQLServer(err error) ErrorKind {
	var msErr mssql.Error
	if !errors.As(err, &msErr) {
		return ""
	}
	switch msErr.Number {
	case 208:
		return KindObjectNotFound
	case 102, 156, 207, 229:
		return KindProgramming
	case 1205, -2:
		return KindOperational
	}
	return KindDatabase
}
