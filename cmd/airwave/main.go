package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"airwave/internal/audio"
	"airwave/internal/config"
	"airwave/internal/endpoints"
	"airwave/internal/events"
	"airwave/internal/media"
	"airwave/internal/notify"
	"airwave/internal/scheduler"
	"airwave/internal/server"
	"airwave/internal/store"
	"airwave/internal/worker"
)

func main() {
	// Initialize structured logging
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(jsonHandler))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(config.DBPath)
	if err != nil {
		slog.Error("Failed to open store", "path", config.DBPath, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// Jobs interrupted by the previous shutdown go back to pending before
	// the worker starts.
	reset, err := st.ResetStuckJobs(ctx)
	if err != nil {
		slog.Error("Startup recovery failed", "error", err)
		os.Exit(1)
	}
	if reset > 0 {
		slog.Info("Recovered interrupted jobs", "count", reset)
	}

	var pub *events.Publisher
	if config.ValkeyHost != "" {
		pub, err = events.NewPublisher(ctx, config.ValkeyHost, config.ValkeyPort)
		if err != nil {
			slog.Warn("Event publishing disabled", "error", err)
			pub = nil
		}
	}
	defer pub.Close()

	pusher := notify.NewPusher(st)
	var push worker.Pusher
	if pusher.Enabled() {
		push = pusher
	}

	w := worker.New(st,
		media.NewDownloader(config.RawDir(), config.CookiesPath),
		media.NewTranscoder(config.TracksDir()),
		media.NewProber(""),
		audio.NewExtractor(),
		push,
		pub,
		config.RawDir(),
	)
	w.Start()

	srv := server.NewServer(config.Port, endpoints.Deps{
		Store:  st,
		Picker: scheduler.New(st),
		Events: pub,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server failed to start", "error", err)
			cancel()
		}
	}()

	slog.Info("Airwave started", "port", config.Port, "db", config.DBPath, "media", config.MediaDir)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("Context cancelled")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	w.Stop()
	slog.Info("Airwave exited gracefully")
}
