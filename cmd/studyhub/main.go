package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/terra-clan/studyhub/internal/api"
	"github.com/terra-clan/studyhub/internal/catalog"
	"github.com/terra-clan/studyhub/internal/config"
	"github.com/terra-clan/studyhub/internal/datasource"
	"github.com/terra-clan/studyhub/internal/flush"
	"github.com/terra-clan/studyhub/internal/kv"
	"github.com/terra-clan/studyhub/internal/notify"
	"github.com/terra-clan/studyhub/internal/progress"
	"github.com/terra-clan/studyhub/internal/quiz"
	"github.com/terra-clan/studyhub/internal/render"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.Level,
	}))
	slog.SetDefault(logger)

	slog.Info("starting studyhub",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"kv_backend", cfg.KV.Backend,
	)

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	// Open progress storage
	store, err := kv.Open(initCtx, kv.Options{
		Backend:       cfg.KV.Backend,
		SQLitePath:    cfg.KV.SQLitePath,
		RedisAddress:  cfg.Redis.Address,
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
		PostgresDSN:   cfg.KV.DSN,
		MigrationsDir: cfg.KV.MigrationsDir,
	})
	if err != nil {
		slog.Error("failed to open kv store", "backend", cfg.KV.Backend, "error", err)
		os.Exit(1)
	}
	slog.Info("kv store connected", "backend", cfg.KV.Backend)

	hub := notify.NewHub(cfg.Server.AllowedOrigins...)
	registry := progress.NewRegistry(store, hub)
	registry.SetIdleTTL(cfg.Progress.IdleTTL)

	// Catalog view renders into a cached snapshot of the page fragments
	client := &http.Client{Timeout: cfg.Data.FetchTimeout}
	maxBytes := datasource.WithMaxBytes(cfg.Data.MaxBytes)
	renderer := render.New()
	snapshot := render.NewSnapshot(renderer)
	view := catalog.NewView(datasource.New(cfg.Data.CatalogSource, client, maxBytes), snapshot)
	if err := view.Load(initCtx); err != nil {
		slog.Warn("catalog unavailable at startup", "source", cfg.Data.CatalogSource, "error", err)
	}

	quizzes := quiz.NewSessions(
		quiz.NewLoader(datasource.New(cfg.Data.QuizSource, client, maxBytes)),
		cfg.Quiz.SessionTTL,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start flush worker
	flusher := flush.NewFlusher(registry, quizzes, cfg.Flush.Interval)
	flusher.Start(ctx)

	// Setup HTTP server
	server := api.NewServer(cfg, api.Dependencies{
		Catalog:  view,
		Progress: registry,
		Quizzes:  quizzes,
		Renderer: renderer,
		Snapshot: snapshot,
		Hub:      hub,
	})
	httpServer := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     server.Router(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Stop the flush worker and wait for its final pass before the store
	// closes, then report anything still unsaved
	flusher.Stop()
	cancel()
	if flushed, failed := registry.FlushAll(shutdownCtx); failed > 0 {
		slog.Error("progress not persisted on shutdown", "flushed", flushed, "failed", failed)
	}

	if err := store.Close(); err != nil {
		slog.Error("kv store close error", "error", err)
	}

	slog.Info("studyhub stopped")
}
