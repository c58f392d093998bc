// Package app 설정으로부터 제공자, 생성기, 최적화기, 실행기를 조립한다
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"sql-intelligence/internal/ai"
	"sql-intelligence/internal/config"
	"sql-intelligence/internal/db"
	"sql-intelligence/internal/observability"
	"sql-intelligence/internal/query"
	"sql-intelligence/pkg/models"
)

// App 조립된 구성 요소
type App struct {
	Config    config.Config
	Registry  *ai.ProviderRegistry
	Generator *query.Generator
	Optimizer *query.Optimizer
	// Runner 데이터베이스가 설정되지 않았거나 연결에 실패하면 nil
	Runner    *query.Runner
	Connector db.Connector
	DBType    models.DBType

	logger *slog.Logger
}

// Build 구성 요소 조립. 데이터베이스 연결 실패는 경고로만 남기고 실행 기능을 끈다
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, logger: logger}

	a.Registry = ai.BuildRegistry(ctx, cfg.AI, ai.Options{
		Logger:  logger.With("component", "ai"),
		Timeout: cfg.AI.Timeout,
		Observe: observability.ObserveProviderAttempt,
	})

	if cfg.Database.Configured() {
		conn, dbType, err := connect(ctx, cfg.Database, logger)
		if err != nil {
			logger.Warn("데이터베이스 연결 실패, 실행 기능 비활성", "error", err)
		} else {
			a.Connector, a.DBType = conn, dbType
		}
	}

	genCfg := query.GeneratorConfig{
		Dialect:  cfg.Generation.Dialect,
		Deadline: cfg.Generation.Deadline,
		Logger:   logger.With("component", "generator"),
		Observe:  observability.ObserveGeneration,
	}
	if chain := a.schemaChain(cfg); chain != nil {
		genCfg.Chain = chain
	}
	a.Generator = query.NewGenerator(a.Registry, genCfg)

	a.Optimizer = query.NewOptimizer(a.Registry, query.OptimizerConfig{
		Models:  cfg.AI.OptimizationModels,
		Dialect: cfg.Generation.Dialect,
		Logger:  logger.With("component", "optimizer"),
		Observe: observability.ObserveOptimization,
	})

	if a.Connector != nil {
		a.Runner = query.NewRunner(a.Generator, a.Connector, cfg.Database.MaxRows, logger.With("component", "runner"))
	}
	return a, nil
}

// schemaChain OpenAI 가 있고 설정이 켜져 있을 때만 구성
func (a *App) schemaChain(cfg config.Config) query.SchemaChain {
	if !cfg.Database.SchemaChain {
		return nil
	}
	primary, ok := a.Registry.Primary()
	if !ok {
		return nil
	}
	completer, ok := primary.(query.InstructCompleter)
	if !ok {
		return nil
	}
	return query.NewDBSchemaChain(completer, db.Introspect)
}

// Close 데이터베이스와 제공자 클라이언트 정리
func (a *App) Close() error {
	var errs []error
	if a.Connector != nil {
		errs = append(errs, a.Connector.Close())
	}
	if a.Registry != nil {
		errs = append(errs, a.Registry.Close())
	}
	return errors.Join(errs...)
}

func connect(ctx context.Context, dbCfg config.DatabaseConfig, logger *slog.Logger) (db.Connector, models.DBType, error) {
	conn := dbCfg.Connection
	if dbCfg.URL != "" {
		parsed, err := db.ParseURI(dbCfg.URL)
		if err != nil {
			return nil, "", fmt.Errorf("DATABASE_URL 파싱 실패: %w", err)
		}
		conn = parsed
	}

	c, err := db.NewConnector(conn)
	if err != nil {
		return nil, "", err
	}
	if l, ok := c.(interface{ SetLogger(*slog.Logger) }); ok {
		l.SetLogger(logger.With("component", "db"))
	}
	if err := c.Connect(ctx); err != nil {
		return nil, "", err
	}
	return c, conn.Type, nil
}
