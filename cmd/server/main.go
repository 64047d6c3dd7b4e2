// Ears server - continuous wake-word listening, push-to-talk capture, and
// the WebSocket/REST control surface for the assistant's dialogue engine.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/razor-assistant/ears/internal/config"
	"github.com/razor-assistant/ears/internal/inference"
	"github.com/razor-assistant/ears/internal/orchestrator"
	"github.com/razor-assistant/ears/internal/server"
	"github.com/razor-assistant/ears/internal/wake"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg.Logging)

	// Inference service client: transcription plus the keyword engine
	infClient, err := inference.New(inference.Config{
		BaseURL:  cfg.Inference.BaseURL,
		Keyword:  cfg.Wake.Keyword,
		Timeout:  cfg.Inference.Timeout(),
		Language: cfg.Inference.Language,
	})
	if err != nil {
		slog.Error("failed to create inference client", "url", cfg.Inference.BaseURL, "error", err)
		os.Exit(1)
	}

	var spotter wake.Spotter = wake.Disabled{}
	if cfg.Wake.Enabled {
		spotter = wake.NewEngineSpotter(infClient, cfg.Wake.Keyword, cfg.Wake.Threshold)
	}

	orch := orchestrator.New(cfg, infClient, spotter)
	srv := server.New(orch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := orch.Start(ctx); err != nil {
			slog.Error("orchestrator error", "error", err)
		}
	}()

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("ears server starting", "http", cfg.HTTP.Addr, "inference", cfg.Inference.BaseURL, "wake", cfg.Wake.Enabled)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	orch.Stop()
	slog.Info("shutdown complete")
}

func setupLogging(cfg config.LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
