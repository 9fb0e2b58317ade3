package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/do/v2"

	"geoattend/internal/app"
	"geoattend/internal/config"
	"geoattend/internal/notify"
)

// Worker consumes notify jobs and pushes them to participants.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, cfg, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, cfg config.App, reg prometheus.Registerer, g prometheus.Gatherer) int {
	if cfg.QueueBackend != "redis" {
		slog.Error("worker needs QUEUE_BACKEND=redis; the memory queue is drained inside the api process")
		return 1
	}

	injector := app.New(cfg, reg)
	defer app.Close(injector)

	worker, err := do.Invoke[*notify.Worker](injector)
	if err != nil {
		slog.Error("failed to resolve worker", "error", err)
		return 1
	}

	srv := newMetricsServer(cfg.WorkerMetricsPort, g)
	go func() {
		slog.Info("serving worker metrics", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := worker.Run(ctx); err != nil {
		slog.Error("worker failed", "error", err)
		return 1
	}
	return 0
}
