package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sql-intelligence/internal/app"
	"sql-intelligence/internal/config"
	"sql-intelligence/internal/observability"
	"sql-intelligence/internal/server"
)

var addr = flag.String("addr", "", "서버 주소 (기본: HTTP_ADDR 또는 :8080)")

func main() {
	flag.Parse()

	cfg, err := config.LoadFromEnv("sqli-server")
	if err != nil {
		fmt.Fprintf(os.Stderr, "설정 로드 실패: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.HTTP.Address = *addr
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("초기화 실패", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	srv := server.New(server.Dependencies{
		Registry:       a.Registry,
		Generator:      a.Generator,
		Optimizer:      a.Optimizer,
		Runner:         a.Runner,
		DBType:         a.DBType,
		SchemaCacheTTL: cfg.Database.SchemaCacheTTL,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		SchemaURIs:     cfg.Database.AllowedSchemaURIs(),
		Logger:         logger.With("component", "http"),
	})
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("서버 시작", "addr", cfg.HTTP.Address, "db_connected", a.Runner != nil)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("서버 오류", "error", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("서버 종료 실패", "error", err)
	}
	logger.Info("서버 종료")
}
