// Package main is the entrypoint for the Scribe API server.
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

	"github.com/kiranshivaraju/scribe/internal/api"
	"github.com/kiranshivaraju/scribe/internal/api/handler"
	mw "github.com/kiranshivaraju/scribe/internal/api/middleware"
	"github.com/kiranshivaraju/scribe/internal/audio"
	"github.com/kiranshivaraju/scribe/internal/cache"
	"github.com/kiranshivaraju/scribe/internal/config"
	"github.com/kiranshivaraju/scribe/internal/intake"
	"github.com/kiranshivaraju/scribe/internal/jobs"
	"github.com/kiranshivaraju/scribe/internal/persist"
	"github.com/kiranshivaraju/scribe/internal/pipeline"
	"github.com/kiranshivaraju/scribe/internal/store"
	"github.com/kiranshivaraju/scribe/internal/summarize"
	"github.com/kiranshivaraju/scribe/internal/transcribe"
	"github.com/kiranshivaraju/scribe/internal/uploads"
	"github.com/kiranshivaraju/scribe/pkg/models"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Config errors are fatal before anything is opened.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.Server.LogLevel),
	})))
	slog.Info("config loaded",
		"env", cfg.Server.Env,
		"summary_provider", cfg.Summary.Provider,
		"transcription_model", cfg.Transcription.Model,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	// Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      a.router,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := a.jobs.Wait(shutdownCtx); err != nil {
		slog.Warn("in-flight jobs abandoned", "jobs", a.jobs.Len(), "error", err)
	}
	a.jobs.Clear()

	slog.Info("server stopped gracefully")
	return nil
}

// app is the wired object graph behind the HTTP server.
type app struct {
	router http.Handler
	jobs   *jobs.Store
	store  store.Store
	cache  cache.Cache
}

func (a *app) close() {
	if err := a.cache.Close(); err != nil {
		slog.Warn("close cache", "error", err)
	}
	if err := a.store.Close(); err != nil {
		slog.Warn("close store", "error", err)
	}
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	// Database (migrations run inside Open for Postgres)
	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	slog.Info("database ready")

	c, err := newCache(ctx, cfg.Redis)
	if err != nil {
		st.Close()
		return nil, err
	}

	// Summarization degrades to the local heuristic without credentials.
	provider, err := summarize.NewProvider(cfg.Summary)
	switch {
	case errors.Is(err, summarize.ErrProviderNotConfigured):
		slog.Warn("summary provider not configured, external summaries fall back to local", "provider", cfg.Summary.Provider)
		provider = nil
	case err != nil:
		st.Close()
		c.Close()
		return nil, fmt.Errorf("create summary provider: %w", err)
	default:
		slog.Info("summary provider initialized", "provider", provider.Name())
	}
	engine := summarize.NewEngine(provider,
		summarize.WithBudget(cfg.Summary.MaxInputTokens),
		summarize.WithSampling(cfg.Summary.Temperature, cfg.Summary.MaxOutputTokens),
	)

	transcriber := transcribe.NewClient(
		transcribe.NewDeepgramProvider(transcribe.DeepgramConfig{
			APIKey:  cfg.Transcription.APIKey,
			BaseURL: cfg.Transcription.BaseURL,
		}),
		cfg.Transcription.Model,
		cfg.Transcription.Language,
	)

	jobStore := jobs.NewStore(jobs.WithMirror(c, cache.JobStatusTTL))
	pipe := pipeline.New(jobStore,
		audio.NewPreprocessor(cfg.Audio.FFmpegPath),
		transcriber,
		engine,
		persist.New(st),
		pipeline.WithVisibilityPause(cfg.Pipeline.VisibilityPause),
	)

	staging, err := uploads.NewLocalStore(cfg.Uploads.Dir, cfg.Uploads.MaxBytes)
	if err != nil {
		st.Close()
		c.Close()
		return nil, err
	}
	method, err := summarize.ParseMethod(cfg.Summary.DefaultMethod, models.SummaryMethodExternal)
	if err != nil {
		st.Close()
		c.Close()
		return nil, err
	}
	svc := intake.NewService(jobStore, staging, pipe, method)

	router := api.NewRouter(api.Dependencies{
		Auth:           mw.NewAuth(st),
		RateLimit:      mw.NewRateLimit(c, cfg.Server.RateLimitPerMin),
		HealthHandler:  handler.NewHealthHandler(st, c),
		Jobs:           handler.NewJobs(svc, jobStore, c, cfg.Uploads.MaxBytes),
		HistoryHandler: handler.NewHistoryHandler(st),
	})

	return &app{router: router, jobs: jobStore, store: st, cache: c}, nil
}

// newCache connects to Redis when configured and otherwise keeps status
// mirrors and rate-limit counters in process.
func newCache(ctx context.Context, cfg config.RedisConfig) (cache.Cache, error) {
	if cfg.URL == "" {
		slog.Info("REDIS_URL not set, using in-memory cache")
		return cache.NewMemoryCache(), nil
	}
	redisCache, err := cache.NewRedisCache(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("create redis cache: %w", err)
	}
	if err := redisCache.Ping(ctx); err != nil {
		redisCache.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")
	return redisCache, nil
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
