package db

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strconv"

	"github.com/lib/pq"

	"sql-intelligence/pkg/models"
)

// PostgresConnector PostgreSQL 연결자
type PostgresConnector struct {
	BaseConnector
}

var postgresDialect = dialect{
	label:  "PostgreSQL",
	driver: "postgres",
	tables: `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name`,
	tableArgs: func(cfg models.DBConfig) []interface{} {
		return []interface{}{schemaOr(cfg, "public")}
	},
	columns: `
		SELECT
			c.column_name, c.data_type, c.is_nullable, c.column_default,
			CASE WHEN pk.column_name IS NOT NULL THEN 1 ELSE 0 END AS is_pk
		FROM information_schema.columns c
		LEFT JOIN (
			SELECT kcu.column_name
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
				ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
			WHERE tc.table_schema = $1 AND tc.table_name = $2 AND tc.constraint_type = 'PRIMARY KEY'
		) pk ON c.column_name = pk.column_name
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position`,
	columnArgs: func(cfg models.DBConfig, table string) []interface{} {
		return []interface{}{schemaOr(cfg, "public"), table}
	},
	classify: classifyPostgres,
}

// NewPostgresConnector PostgreSQL 연결자 생성
func NewPostgresConnector(config models.DBConfig) (*PostgresConnector, error) {
	config.Type = models.PostgreSQL
	return &PostgresConnector{BaseConnector: newBase(config, postgresDialect)}, nil
}

func (p *PostgresConnector) Connect(ctx context.Context) error {
	return p.open(ctx, postgresDSN(p.config))
}

// postgresDSN 비밀번호의 공백, 따옴표도 안전한 postgres:// URL
func postgresDSN(cfg models.DBConfig) string {
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Database,
		RawQuery: "sslmode=disable",
	}
	switch {
	case cfg.User != "" && cfg.Password != "":
		u.User = url.UserPassword(cfg.User, cfg.Password)
	case cfg.User != "":
		u.User = url.User(cfg.User)
	}
	return u.String()
}

// classifyPostgres SQLSTATE 기준 분류
func classifyPostgres(err error) ErrorKind {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return ""
	}
	switch {
	case pqErr.Code == "42P01":
		return KindObjectNotFound
	case pqErr.Code.Class() == "42":
		return KindProgramming
	case pqErr.Code.Class() == "08", pqErr.Code.Class() == "57":
		return KindOperational
	}
	return KindDatabase
}

func schemaOr(cfg models.DBConfig, def string) string {
	if cfg.Schema != "" {
		return cfg.Schema
	}
	return def
}
