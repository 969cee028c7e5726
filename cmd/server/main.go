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

	"github.com/mellanby-hall/portal/internal/api"
	"github.com/mellanby-hall/portal/internal/config"
	"github.com/mellanby-hall/portal/internal/gateway"
	"github.com/mellanby-hall/portal/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)

	if !cfg.HasBackend() {
		slog.Warn("backend not configured; serving public content only", "hint", "set PORTAL_BACKEND_URL and PORTAL_BACKEND_ANON_KEY")
	}

	gw := gateway.NewClient(cfg.BackendURL, cfg.BackendAnonKey)
	defer gw.Close()

	store := session.New(gw, cfg.AuthTimeout)
	store.Start(context.Background())
	defer store.Close()

	router := api.NewRouter(api.RouterDeps{
		Gateway:        gw,
		Store:          store,
		Version:        cfg.Version,
		DocumentBucket: cfg.DocumentBucket,
		BackendReady:   cfg.HasBackend(),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting portal server", "port", cfg.Port, "version", cfg.Version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutting down server", "signal", sig.String())
	case err := <-serverErr:
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
