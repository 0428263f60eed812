package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/tally/internal/api"
	"github.com/mmynk/tally/internal/config"
	"github.com/mmynk/tally/internal/events"
	"github.com/mmynk/tally/internal/registry"
	"github.com/mmynk/tally/internal/service"
	"github.com/mmynk/tally/internal/storage"
	"github.com/mmynk/tally/internal/storage/memory"
	"github.com/mmynk/tally/internal/storage/postgres"
	"github.com/mmynk/tally/internal/storage/sqlite"
	"github.com/mmynk/tally/pkg/logging"
)

func newStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		return sqlite.New(cfg.SQLitePath)
	case config.BackendPostgres:
		return postgres.New(cfg.PostgresDSN)
	default:
		return memory.New(), nil
	}
}

func main() {
	// Optional .env for local development; the environment wins.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LogFormat)

	store, err := newStore(cfg)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err, "backend", cfg.Backend)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("storage initialized", "backend", cfg.Backend)

	worker := events.NewWorker(store, logger, cfg.EventBuffer)
	worker.Start()

	svc := service.New(store, registry.New(store), worker, logger, cfg.PlanSearchBudget)
	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        api.NewServer(svc, logger).Router(),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
		// Flush any audit events still in the queue before the store closes.
		worker.Shutdown()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped gracefully")
}
