// cmd/service/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"golang.org/x/sync/errgroup"

	"bitbucket-commit-mirror/internal/api"
	"bitbucket-commit-mirror/internal/bitbucket"
	"bitbucket-commit-mirror/internal/checkpoint"
	"bitbucket-commit-mirror/internal/config"
	"bitbucket-commit-mirror/internal/notify"
	"bitbucket-commit-mirror/internal/syncer"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Application startup error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Initialize structured logger
	logLevel := new(slog.LevelVar)
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// 2. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setLogLevel(cfg.LogLevel, logLevel)
	logger.Info("Configuration loaded successfully")

	// 3. Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 4. Open the checkpoint store
	checkpoints, err := openCheckpointStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer checkpoints.Close()
	logger.Info("Checkpoint store ready", "backend", cfg.CheckpointBackend)

	// 5. Initialize application components
	creds := bitbucket.Credentials{
		Username: cfg.BitbucketUsername,
		Password: cfg.BitbucketPassword,
		Token:    cfg.BitbucketToken,
	}
	client := bitbucket.NewClient(cfg.BitbucketBaseURL, cfg.BitbucketOrg, creds, cfg.PageSize, logger)
	batcher := notify.NewBatcher(cfg.NotifyURL, notify.DefaultThreshold, logger)
	appSyncer := syncer.NewSyncer(client, checkpoints, batcher, logger, cfg.EmailDomain, cfg.SyncInterval)

	server := &http.Server{
		Addr:    cfg.APIAddr,
		Handler: api.NewRouter(checkpoints, batcher, logger),
	}

	// 6. Run the syncer and the status API side by side
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		appSyncer.Start(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info("Status API listening", "addr", cfg.APIAddr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	logger.Info("Application started. Waiting for shutdown signal...")
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Shutdown complete")
	return nil
}

// openCheckpointStore builds the configured backend, running migrations
// first for the postgres one.
func openCheckpointStore(ctx context.Context, cfg *config.Config) (checkpoint.Store, error) {
	switch cfg.CheckpointBackend {
	case config.BackendPostgres:
		if err := runMigrations(cfg.DBURL); err != nil {
			return nil, fmt.Errorf("failed to run database migrations: %w", err)
		}
		store, err := checkpoint.NewPostgres(ctx, cfg.DBURL)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendRedis:
		return checkpoint.NewRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
	default:
		// LoadConfig validated the backend already.
		return nil, fmt.Errorf("unsupported checkpoint backend %q", cfg.CheckpointBackend)
	}
}

func runMigrations(dbURL string) error {
	m, err := migrate.New("file://migrations", dbURL)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func setLogLevel(level string, v *slog.LevelVar) {
	switch level {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}
