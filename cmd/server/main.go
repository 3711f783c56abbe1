package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/JonMunkholm/sheetmark/internal/config"
	"github.com/JonMunkholm/sheetmark/internal/core"
	"github.com/JonMunkholm/sheetmark/internal/logging"
	"github.com/JonMunkholm/sheetmark/internal/web"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration", "config", cfg.String())
	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"annotation_policy", cfg.Table.AnnotationPolicy,
		"export_quoting", cfg.Table.ExportQuoting,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"audit_sink", cfg.Audit.Sink,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()

	var audit core.AuditSink
	if cfg.Audit.UsesPostgres() {
		pool, err := openPool(ctx, cfg)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		sink := core.NewPostgresAuditSink(pool)
		if err := sink.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare activity table", "error", err)
			os.Exit(1)
		}
		audit = sink
	}

	service, err := core.NewService(cfg, audit)
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	server := web.NewServer(service, cfg)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go service.StartSessionSweeper(jobCtx, cfg.Session.SweepInterval)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let in-flight decodes finish before connections are closed.
		if status := service.DecodeStatus(); status.Active > 0 {
			slog.Info("waiting for decodes to complete", "active", status.Active)
			if err := service.WaitForDecodes(shutdownCtx); err != nil {
				slog.Warn("decodes did not complete in time", "error", err)
			} else {
				slog.Info("all decodes completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// openPool connects to the activity database and verifies the connection.
func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Audit.DatabaseURL)
	if err != nil {
		return nil, err
	}
	poolConfig.MaxConns = int32(cfg.Audit.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if u, err := url.Parse(cfg.Audit.DatabaseURL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}
