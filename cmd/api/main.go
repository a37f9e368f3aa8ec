package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voxgate/voxgate/internal/api"
	"github.com/voxgate/voxgate/internal/config"
	"github.com/voxgate/voxgate/internal/tts"
	"github.com/voxgate/voxgate/internal/voicecache"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Voice cache: redis when configured and reachable, file otherwise.
	var store tts.VoiceStore
	if cfg.Cache.Backend == "redis" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unavailable, falling back to file voice cache", "error", err)
			rdb.Close()
		} else {
			store = voicecache.NewRedisStore(rdb, cfg.Cache.TTL)
			defer rdb.Close()
		}
	}
	if store == nil {
		store = voicecache.NewFileStore(cfg.Cache.Dir, cfg.Cache.TTL)
	}

	registry := tts.NewRegistry(cfg.TTS, store)
	slog.Info("tts providers registered", "providers", registry.Names())

	router := api.NewRouter(cfg, registry)
	handler := router.Setup()

	srv := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// No write timeout: synthesis responses stream for as long as the
		// vendor keeps producing audio.
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}
