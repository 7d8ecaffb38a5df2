package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/playperu/questhunt/internal/config"
	"github.com/playperu/questhunt/internal/content"
	"github.com/playperu/questhunt/internal/database"
	"github.com/playperu/questhunt/internal/engine"
	"github.com/playperu/questhunt/internal/migrations"
	"github.com/playperu/questhunt/internal/server"
	"github.com/playperu/questhunt/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- SQLite ---
	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	applied, err := migrations.Run(ctx, db)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath, "migrations_applied", applied)

	// --- Engine ---
	st := store.NewSQLiteStore(db)
	eng := engine.New(st, st, st, st, logger, engine.Config{
		ProximityRadius: cfg.ProximityRadius,
		CompletionBonus: cfg.CompletionBonus,
		MaxRetries:      cfg.MaxRetries,
		BonusWorkers:    cfg.BonusWorkers,

		MaxPendingAttempts: cfg.PendingMaxAttempts,
	})

	if cfg.SeedFile != "" {
		if err := content.SeedFile(ctx, logger, st, cfg.SeedFile); err != nil {
			return err
		}
	}

	// --- HTTP Server ---
	srv := server.New(server.Options{
		Addr:           cfg.HTTPAddr,
		AdminTokenHash: cfg.AdminTokenHash,
		CORSOrigins:    cfg.CORSOrigins,
		ReconcileBatch: cfg.ReconcileBatch,
		Checks: map[string]server.Checker{
			"sqlite": server.CheckerFunc(db.PingContext),
		},
	}, logger, st, eng)

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	g.Go(func() error {
		return reconcileLoop(gctx, logger, eng, cfg.ReconcileInterval, cfg.ReconcileBatch)
	})

	return g.Wait()
}

// reconcileLoop retries deferred reward credits until ctx is done.
func reconcileLoop(ctx context.Context, logger *slog.Logger, eng *engine.Engine, every time.Duration, batch int) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := eng.Reconcile(ctx, batch); err != nil && ctx.Err() == nil {
				logger.Error("reconcile failed", "error", err)
			}
		}
	}
}
