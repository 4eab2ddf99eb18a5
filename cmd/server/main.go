package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/warecross/wms/internal/config"
	"github.com/warecross/wms/internal/core"
	"github.com/warecross/wms/internal/logging"
	"github.com/warecross/wms/internal/mapping"
	"github.com/warecross/wms/internal/mapping/postgres"
	"github.com/warecross/wms/internal/metrics"
	"github.com/warecross/wms/internal/rules"
	"github.com/warecross/wms/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"max_concurrent_runs", cfg.Processing.MaxConcurrentRuns,
		"workers", cfg.Processing.Workers,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	// Parse and configure connection pool
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		slog.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	// Load SKU validation rules (missing file means built-in defaults)
	ruleSet, err := rules.LoadFile(cfg.Rules.Path)
	if err != nil {
		slog.Error("failed to load validation rules", "path", cfg.Rules.Path, "error", err)
		os.Exit(1)
	}
	min, max := ruleSet.Bounds()
	prefixes, enforced := ruleSet.Prefixes()
	slog.Info("validation rules loaded",
		"min_length", min,
		"max_length", max,
		"prefixes", prefixes,
		"enforce_prefixes", enforced,
	)

	metrics.Init()

	mapper := mapping.NewMapper(ruleSet, postgres.NewStore(pool))
	salesStore := core.NewPgSalesStore(pool)

	service := core.NewService(mapper, salesStore, slog.Default(), core.Options{
		Workers:           cfg.Processing.Workers,
		BatchSize:         cfg.Processing.BatchSize,
		RunTimeout:        cfg.Processing.RunTimeout,
		MaxConcurrentRuns: cfg.Processing.MaxConcurrentRuns,
		MaxWaitTime:       cfg.Processing.MaxWaitTime,
	})

	server := web.NewServer(service, cfg, slog.Default())

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for active runs to complete (with timeout)
		status := service.Limiter().Status()
		if status.Active > 0 {
			slog.Info("waiting for runs to complete", "active", status.Active)
			if err := service.Limiter().WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("runs did not complete in time", "error", err)
			} else {
				slog.Info("all runs completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(cfg.Server.Addr()); err != nil {
		slog.Info("server stopped", "error", err)
	}
}
