package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/yasef05/video-downloader-backend/internal/config"
	"github.com/yasef05/video-downloader-backend/internal/download"
	"github.com/yasef05/video-downloader-backend/internal/platform"
	"github.com/yasef05/video-downloader-backend/internal/resolver"
	"github.com/yasef05/video-downloader-backend/internal/retention"
	"github.com/yasef05/video-downloader-backend/internal/server"
	"github.com/yasef05/video-downloader-backend/internal/store"
)

// Version is set during build via -ldflags "-X main.version=X.Y.Z"
var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; environment variables may be set directly
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to config.toml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("video-downloader-backend starting", "version", version, "addr", cfg.ListenAddr)

	if err := platform.CreateDirectoryIfNotExists(cfg.DownloadDir); err != nil {
		return fmt.Errorf("ensuring download dir: %w", err)
	}

	jobs, err := newJobStore(cfg, logger)
	if err != nil {
		return err
	}

	res := resolver.NewYTDLP(cfg.ProbeTimeout.Duration, cfg.DownloadTimeout.Duration)
	downloads := download.NewService(jobs, res, cfg.DownloadDir, cfg.MaxParallel, logger)
	sweeper := retention.New(cfg.DownloadDir, cfg.RetentionWindow.Duration, cfg.SweepInterval.Duration, logger)
	api := server.New(cfg, downloads, res, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sweeper.Run(ctx)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api.Handler(),
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	logger.Info("listening", "addr", cfg.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}

	var handler slog.Handler
	switch cfg.LogFormat {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func newJobStore(cfg *config.Config, logger *slog.Logger) (store.JobStore, error) {
	if cfg.RedisAddr == "" {
		return store.NewMemoryStore(), nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
	}

	logger.Info("using redis job store", "addr", cfg.RedisAddr)
	return store.NewRedisStore(rdb), nil
}
