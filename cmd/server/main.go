// Package main is the entrypoint for the Devboard API server.
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

	"github.com/devfedhq/devboard/internal/api"
	"github.com/devfedhq/devboard/internal/api/handler"
	mw "github.com/devfedhq/devboard/internal/api/middleware"
	"github.com/devfedhq/devboard/internal/auth"
	"github.com/devfedhq/devboard/internal/cache"
	"github.com/devfedhq/devboard/internal/config"
	"github.com/devfedhq/devboard/internal/github"
	"github.com/devfedhq/devboard/internal/hf"
	"github.com/devfedhq/devboard/internal/store"
	"github.com/devfedhq/devboard/internal/task"
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
	slog.Info("config loaded", "env", cfg.Server.Env, "model", cfg.HF.Model)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create collaborators
	completion := hf.NewClient(cfg.HF)
	slog.Info("completion provider initialized", "provider", completion.Name())
	repos := github.NewHTTPClient(cfg.GitHub)

	// 6. Create store and task service
	pgStore := store.NewPostgresStore(pool)
	tasks := task.NewService(pgStore, redisCache, completion, repos, task.Config{
		DefaultRepo: cfg.GitHub.DefaultRepo,
		DefaultPath: cfg.GitHub.DefaultPath,
	})

	// 7. Build router with dependencies
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authMW := mw.NewAuth(tokens)
	rateLimit := mw.NewGuestRateLimit(redisCache, cfg.Auth.GuestTaskLimit)

	authHandler := handler.NewAuthHandler(pgStore, tokens)
	repoHandler := handler.NewRepoHandler(repos, redisCache, cfg.GitHub.DefaultRepo, cfg.GitHub.DefaultPath)
	taskHandler := handler.NewTaskHandler(tasks)
	healthHandler := handler.NewHealthHandler(pgStore, redisCache)

	deps := api.Dependencies{
		Auth:      authMW,
		RateLimit: rateLimit,

		HealthHandler: healthHandler.Check,

		SignupHandler:  authHandler.Signup,
		LoginHandler:   authHandler.Login,
		MeHandler:      authHandler.Me,
		RefreshHandler: authHandler.Refresh,
		ApproveHandler: authHandler.Approve,

		RepoTreeHandler: repoHandler.Tree,
		RepoFileHandler: repoHandler.File,

		RunTaskHandler:    taskHandler.Run,
		GetTaskHandler:    taskHandler.Get,
		StreamTaskHandler: taskHandler.Stream,
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server. WriteTimeout must stay generous enough for event
	// streams that outlive a completion round trip.
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
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

	slog.Info("server stopped gracefully")
	return nil
}
