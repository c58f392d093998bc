package db

import (
	"context"
	"errors"

	go_ora "github.com/sijms/go-ora/v2"
	"github.com/sijms/go-ora/v2/network"

	"sql-intelligence/pkg/models"
)

// OracleConnector Oracle 연결자
type OracleConnector struct {
	BaseConnector
}

var oracleDialect = dialect{
	label:  "Oracle",
	driver: "oracle",
	tables: `
		SELECT table_name
		FROM user_tables
		ORDER BY table_name`,
	columns: `
		SELECT
			c.column_name, c.data_type, c.nullable, c.data_default,
			CASE WHEN pk.column_name IS NOT NULL THEN 1 ELSE 0 END AS is_pk
		FROM user_tab_columns c
		LEFT JOIN (
			SELECT cc.column_name
			FROM user_constraints uc
			JOIN user_cons_columns cc ON uc.constraint_name = cc.constraint_name
			WHERE uc.table_name = :1 AND uc.constraint_type = 'P'
		) pk ON c.column_name = pk.column_name
		WHERE c.table_name = :2
		ORDER BY c.column_id`,
	columnArgs: func(_ models.DBConfig, table string) []interface{} {
		return []interface{}{table, table}
	},
	classify: classifyOracle,
}

// NewOracleConnector Oracle 연결자 생성
func NewOracleConnector(config models.DBConfig) (*OracleConnector, error) {
	config.Type = models.Oracle
	return &OracleConnector{BaseConnector: newBase(config, oracleDialect)}, nil
}

func (o *OracleConnector) Connect(ctx context.Context) error {
	dsn := go_ora.BuildUrl(o.config.Host, o.config.Port, o.config.Database, o.config.User, o.config.Password, nil)
	return o.open(ctx, dsn)
}

// classifyOracle ORA 오류 코드 기준 분류
func classifyOracle(err error) ErrorKind {
	var oraErr *network.OracleError
	if !errors.As(err, &oraErr) {
		return ""
	}
	switch oraErr.ErrCode {
	case 942, 4043:
		return KindObjectNotFound
	case 900, 904, 905, 907, 923, 933, 936:
		return KindProgramming
	case 3113, 3114, 12170, 12541:
		return KindOperational
	}
	return KindDatabase
}
