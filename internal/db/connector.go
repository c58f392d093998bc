package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"sql-intelligence/internal/schema"
	"sql-intelligence/internal/validator"
	"sql-intelligence/pkg/models"
)

const (
	// DefaultRowLimit 결과 행 상한 기본값
	DefaultRowLimit = 5000
	// OverviewTables 스키마 개요 최대 테이블 수
	OverviewTables = 40
	// OverviewColumns 스키마 개요 테이블당 최대 컬럼 수
	OverviewColumns = 40
)

// ErrNotConnected Connect 전에 호출됨
var ErrNotConnected = errors.New("데이터베이스 미연결")

// Connector 데이터베이스 연결 인터페이스
type Connector interface {
	// Connect 데이터베이스 연결 (실패 시 1회 재시도)
	Connect(ctx context.Context) error

	// Close 연결 종료
	Close() error

	// Ping 연결 상태 확인
	Ping(ctx context.Context) error

	// ExtractSchema 테이블 maxTables 개까지 스키마 추출. 0 이면 전체
	ExtractSchema(ctx context.Context, maxTables int) (*models.Schema, error)

	// ListTables 테이블 이름 목록
	ListTables(ctx context.Context) ([]string, error)

	// ExecuteQuery 읽기 전용 쿼리 실행. rowLimit 이 0 이하면 DefaultRowLimit
	ExecuteQuery(ctx context.Context, query string, rowLimit int) (*models.QueryResult, error)

	// DescribeSchema table(col1, col2, ...) 형식의 개요
	DescribeSchema(ctx context.Context) (string, error)

	// GetDB 내부 DB 객체 반환
	GetDB() *sql.DB

	// Type 데이터베이스 타입 반환
	Type() models.DBType
}

// NewConnector DB 연결자 생성
func NewConnector(config models.DBConfig) (Connector, error) {
	switch config.Type {
	case models.MySQL:
		return NewMySQLConnector(config)
	case models.PostgreSQL:
		return NewPostgresConnector(config)
	case models.Oracle:
		return NewOracleConnector(config)
	case models.SQLServer:
		return NewSQLServerConnector(config)
	case models.Snowflake:
		return NewSnowflakeConnector(config)
	default:
		return nil, fmt.Errorf("지원하지 않는 데이터베이스 타입: %s", config.Type)
	}
}

// dialect 데이터베이스별 카탈로그 쿼리와 오류 분류
type dialect struct {
	label  string
	driver string
	// tables 테이블 목록 쿼리 (인자: tableArgs)
	tables    string
	tableArgs func(cfg models.DBConfig) []interface{}
	// columns name, type, nullable, default, is_pk 를 반환 (인자: columnArgs)
	columns    string
	columnArgs func(cfg models.DBConfig, table string) []interface{}
	classify   func(err error) ErrorKind
}

// BaseConnector 공통 기능
type BaseConnector struct {
	db      *sql.DB
	config  models.DBConfig
	dialect dialect
	logger  *slog.Logger

	retryInitial time.Duration
	retryMax     time.Duration
}

func newBase(config models.DBConfig, d dialect) BaseConnector {
	return BaseConnector{
		config:       config,
		dialect:      d,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		retryInitial: time.Second,
		retryMax:     8 * time.Second,
	}
}

// SetLogger 로거 설정
func (b *BaseConnector) SetLogger(logger *slog.Logger) {
	if logger != nil {
		b.logger = logger
	}
}

func (b *BaseConnector) GetDB() *sql.DB {
	return b.db
}

func (b *BaseConnector) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func (b *BaseConnector) Ping(ctx context.Context) error {
	if b.db == nil {
		return ErrNotConnected
	}
	return b.db.PingContext(ctx)
}

func (b *BaseConnector) Type() models.DBType {
	return b.config.Type
}

// open DSN 으로 풀을 열고 지수 백오프로 최대 2회 Ping
func (b *BaseConnector) open(ctx context.Context, dsn string) error {
	db, err := sql.Open(b.dialect.driver, dsn)
	if err != nil {
		return fmt.Errorf("%s 연결 실패: %w", b.dialect.label, err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = b.retryInitial
	bo.MaxInterval = b.retryMax

	attempt := 0
	ping := func() error {
		attempt++
		err := db.PingContext(ctx)
		if err != nil {
			b.logger.Warn("Ping 실패", "db", b.dialect.label, "attempt", attempt, "error", err)
		}
		return err
	}
	if err := backoff.Retry(ping, backoff.WithContext(backoff.WithMaxRetries(bo, 1), ctx)); err != nil {
		db.Close()
		return fmt.Errorf("%s Ping 실패: %w", b.dialect.label, err)
	}

	b.logger.Info("데이터베이스 연결", "db", b.dialect.label, "database", b.config.Database)
	b.db = db
	return nil
}

func (b *BaseConnector) ListTables(ctx context.Context) ([]string, error) {
	if b.db == nil {
		return nil, ErrNotConnected
	}

	var args []interface{}
	if b.dialect.tableArgs != nil {
		args = b.dialect.tableArgs(b.config)
	}
	rows, err := b.db.QueryContext(ctx, b.dialect.tables, args...)
	if err != nil {
		return nil, fmt.Errorf("테이블 목록 조회 실패: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func (b *BaseConnector) getColumns(ctx context.Context, table string) ([]models.Column, error) {
	rows, err := b.db.QueryContext(ctx, b.dialect.columns, b.dialect.columnArgs(b.config, table)...)
	if err != nil {
		return nil, fmt.Errorf("%s 컬럼 조회 실패: %w", table, err)
	}
	defer rows.Close()

	var columns []models.Column
	for rows.Next() {
		var col models.Column
		var nullable string
		var defaultVal sql.NullString
		var isPK int

		if err := rows.Scan(&col.Name, &col.Type, &nullable, &defaultVal, &isPK); err != nil {
			return nil, err
		}

		col.Nullable = strings.HasPrefix(strings.ToUpper(nullable), "Y")
		col.IsPK = isPK != 0
		if defaultVal.Valid {
			col.Default = strings.TrimSpace(defaultVal.String)
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

func (b *BaseConnector) ExtractSchema(ctx context.Context, maxTables int) (*models.Schema, error) {
	return b.extract(ctx, maxTables)
}

// extract 테이블 limit 개까지 스키마 추출. 0 이면 전체
func (b *BaseConnector) extract(ctx context.Context, limit int) (*models.Schema, error) {
	tables, err := b.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(tables) > limit {
		tables = tables[:limit]
	}

	s := &models.Schema{
		Database: b.config.Database,
		DBType:   b.config.Type,
		Tables:   []models.Table{},
	}
	for _, name := range tables {
		columns, err := b.getColumns(ctx, name)
		if err != nil {
			return nil, err
		}

		table := models.Table{Name: name, Columns: columns}
		for _, c := range columns {
			if c.IsPK {
				table.PrimaryKey = append(table.PrimaryKey, c.Name)
			}
		}
		s.Tables = append(s.Tables, table)
	}
	return s, nil
}

func (b *BaseConnector) DescribeSchema(ctx context.Context) (string, error) {
	s, err := b.extract(ctx, OverviewTables)
	if err != nil {
		return "", fmt.Errorf("스키마 개요 생성 실패: %w", err)
	}
	return schema.Overview(s, OverviewTables, OverviewColumns), nil
}

func (b *BaseConnector) ExecuteQuery(ctx context.Context, query string, rowLimit int) (*models.QueryResult, error) {
	if b.db == nil {
		return nil, ErrNotConnected
	}

	stmt := validator.Sanitize(query)
	if ok, reason := validator.IsSafe(stmt); !ok {
		return nil, &ExecError{Kind: KindRejected, Message: "Rejected: " + reason}
	}
	if rowLimit <= 0 {
		rowLimit = DefaultRowLimit
	}

	start := time.Now()
	b.logger.Info("쿼리 실행", "db", b.dialect.label, "sql", truncate(stmt, 300))

	rows, err := b.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, b.execError(ctx, stmt, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, &ExecError{Kind: KindInterface, Message: "Interface error: " + err.Error(), Err: err}
	}

	result := &models.QueryResult{Columns: columns, Rows: [][]interface{}{}}
	for rows.Next() {
		if len(result.Rows) >= rowLimit {
			result.Truncated = true
			break
		}

		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, &ExecError{Kind: KindInterface, Message: "Interface error: " + err.Error(), Err: err}
		}

		row := make([]interface{}, len(columns))
		for i, v := range values {
			if bs, ok := v.([]byte); ok {
				row[i] = string(bs)
			} else {
				row[i] = v
			}
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, b.execError(ctx, stmt, err)
	}

	result.Elapsed = time.Since(start)
	b.logger.Info("쿼리 완료", "rows", len(result.Rows), "truncated", result.Truncated, "elapsed", result.Elapsed)
	return result, nil
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n]
}
