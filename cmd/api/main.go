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

	"geoattend/internal/admin"
	"geoattend/internal/app"
	"geoattend/internal/config"
	"geoattend/internal/notify"
	"geoattend/internal/store"
	"geoattend/internal/webhook"
)

func main() {
	cfg := mustLoadConfig()
	initLogger(cfg)
	os.Exit(run(cfg, prometheus.DefaultRegisterer))
}

// run owns every deferred cleanup; main only converts its result to an exit code.
func run(cfg config.App, reg prometheus.Registerer) int {
	slog.Info("startup: configuration loaded", "env", cfg.Env, "session_backend", cfg.SessionBackend, "queue_backend", cfg.QueueBackend)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	injector := app.New(cfg, reg)
	defer app.Close(injector)

	if err := runHTTP(cfg, injector); err != nil {
		slog.Error("http server failed", "error", err)
		return 1
	}
	return 0
}

func mustLoadConfig() config.App {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg config.App) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func runHTTP(cfg config.App, injector do.Injector) error {
	db, err := do.Invoke[*store.DB](injector)
	if err != nil {
		return err
	}
	rdb, err := do.Invoke[*store.Redis](injector)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// With an in-process queue nothing else can drain notify jobs.
	if cfg.QueueBackend == "memory" {
		worker := do.MustInvoke[*notify.Worker](injector)
		go func() {
			if err := worker.Run(ctx); err != nil {
				slog.Error("in-process worker failed", "error", err)
			}
		}()
	}

	r := newRouter(routerDeps{
		webhook:   do.MustInvoke[*webhook.Handler](injector),
		admin:     do.MustInvoke[*admin.Handler](injector),
		health:    healthCheck(db, rdb),
		rateLimit: cfg.RateLimitPerMin,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.ListenPort(),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down server")
	case err := <-errCh:
		return err
	}

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server exited")
	return nil
}

// healthCheck reports each configured backend; unconfigured ones count as healthy.
func healthCheck(db *store.DB, rdb *store.Redis) func(ctx context.Context) map[string]bool {
	return func(ctx context.Context) map[string]bool {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return map[string]bool{
			"db":    db == nil || db.Healthy(ctx),
			"redis": rdb == nil || rdb.Healthy(ctx),
		}
	}
}
