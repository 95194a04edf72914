// Package main is the entrypoint for the ImagePipe API server.
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

	"github.com/radiumworks/imagepipe/internal/api"
	"github.com/radiumworks/imagepipe/internal/api/handler"
	mw "github.com/radiumworks/imagepipe/internal/api/middleware"
	"github.com/radiumworks/imagepipe/internal/artifact"
	"github.com/radiumworks/imagepipe/internal/cache"
	"github.com/radiumworks/imagepipe/internal/config"
	"github.com/radiumworks/imagepipe/internal/metrics"
	"github.com/radiumworks/imagepipe/internal/orchestrator"
	"github.com/radiumworks/imagepipe/internal/queue"
	"github.com/radiumworks/imagepipe/internal/store"
	"github.com/radiumworks/imagepipe/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"env", cfg.Server.Env,
		"store", cfg.Store.Backend,
		"queue", cfg.Queue.Backend,
		"artifacts", cfg.Artifact.Backend,
		"workers", cfg.Worker.Count)

	metrics.MustRegister()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Create job/task store
	registry, cleanup, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	// 3. Create artifact store
	artifacts, err := newArtifactStore(ctx, cfg)
	if err != nil {
		return err
	}

	// 4. Create task queue
	taskQueue, err := newQueue(cfg)
	if err != nil {
		return err
	}
	defer taskQueue.Close()

	// 5. Create Redis cache when configured; rate limiting is disabled
	// without it.
	var rateLimit *mw.RateLimit
	var healthCache *cache.RedisCache
	if cfg.Redis.URL != "" {
		redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("create redis cache: %w", err)
		}
		defer redisCache.Close()

		if err := redisCache.Ping(ctx); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		slog.Info("redis connected")

		rateLimit = mw.NewRateLimit(redisCache, cfg.Server.RequestsPerMin)
		healthCache = redisCache
	}

	// 6. Create orchestrator service
	svc := orchestrator.New(registry, artifacts, taskQueue)

	// 7. Start the worker pool
	pool := worker.NewPool(cfg.Worker.Count, registry, artifacts, taskQueue)
	poolDone := make(chan struct{})
	go func() {
		defer close(poolDone)
		if err := pool.Run(ctx); err != nil {
			slog.Error("worker pool stopped", "error", err)
		}
	}()
	slog.Info("worker pool started", "size", cfg.Worker.Count)

	// 8. Build router with dependencies
	maxUploadBytes := cfg.Server.MaxUploadMB << 20

	var healthHandler http.HandlerFunc
	if healthCache != nil {
		healthHandler = handler.NewHealthHandler(registry, healthCache)
	} else {
		healthHandler = handler.NewHealthHandler(registry, nil)
	}

	deps := api.Dependencies{
		RateLimit: rateLimit,

		HealthHandler:     healthHandler,
		CreateJobHandler:  handler.NewCreateJobHandler(svc, maxUploadBytes),
		JobStatusHandler:  handler.NewJobStatusHandler(svc),
		TaskStatusHandler: handler.NewTaskStatusHandler(svc),
		FileHandler:       handler.NewFileHandler(svc),
	}

	router := api.NewRouter(deps)

	// 9. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	// Workers exit once the signal context is cancelled.
	<-poolDone

	slog.Info("server stopped gracefully")
	return nil
}

func newStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		pool, err := store.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		if err := store.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsDir); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		slog.Info("database connected, migrations applied")
		return store.NewPostgresStore(pool), pool.Close, nil
	default:
		return store.NewMemoryStore(), func() {}, nil
	}
}

func newArtifactStore(ctx context.Context, cfg *config.Config) (artifact.Store, error) {
	switch cfg.Artifact.Backend {
	case config.BackendMinIO:
		s, err := artifact.NewMinIOStore(ctx, artifact.MinIOConfig{
			Endpoint:        cfg.Artifact.MinIOEndpoint,
			AccessKeyID:     cfg.Artifact.MinIOAccessKey,
			SecretAccessKey: cfg.Artifact.MinIOSecretKey,
			UseSSL:          cfg.Artifact.MinIOUseSSL,
			Bucket:          cfg.Artifact.MinIOBucket,
		})
		if err != nil {
			return nil, fmt.Errorf("create minio artifact store: %w", err)
		}
		slog.Info("minio connected", "bucket", cfg.Artifact.MinIOBucket)
		return s, nil
	default:
		s, err := artifact.NewLocalStore(cfg.Artifact.DataDir)
		if err != nil {
			return nil, fmt.Errorf("create local artifact store: %w", err)
		}
		return s, nil
	}
}

func newQueue(cfg *config.Config) (queue.Queue, error) {
	switch cfg.Queue.Backend {
	case config.BackendNATS:
		q, err := queue.ConnectNATS(cfg.Queue.NATSURL, cfg.Queue.Subject)
		if err != nil {
			return nil, fmt.Errorf("create nats queue: %w", err)
		}
		slog.Info("nats connected", "subject", cfg.Queue.Subject)
		return q, nil
	default:
		return queue.NewMemoryQueue(cfg.Queue.Size), nil
	}
}
