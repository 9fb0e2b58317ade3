// Package app provides the dependency graph shared by the api and worker binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/do/v2"

	"geoattend/internal/admin"
	"geoattend/internal/attendance"
	"geoattend/internal/auth"
	"geoattend/internal/config"
	"geoattend/internal/conversation"
	"geoattend/internal/messenger"
	"geoattend/internal/metrics"
	"geoattend/internal/notify"
	"geoattend/internal/queue"
	"geoattend/internal/session"
	"geoattend/internal/store"
	"geoattend/internal/webhook"
)

const (
	databaseInitTimeout = 15 * time.Second
	dedupTTL            = 10 * time.Minute
	memoryQueueSize     = 256
)

// UsesRedis reports whether any configured backend lives in Redis.
func UsesRedis(cfg config.App) bool {
	return cfg.SessionBackend == "redis" || cfg.QueueBackend == "redis"
}

// New builds an injector with every service registered lazily.
func New(cfg config.App, reg prometheus.Registerer) do.Injector {
	injector := do.New()
	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, metrics.New(reg))
	registerInfra(injector)
	registerDomain(injector)
	return injector
}

func registerInfra(injector do.Injector) {
	// *store.DB is nil when the in-memory repository is configured.
	do.Provide(injector, func(i do.Injector) (*store.DB, error) {
		cfg := do.MustInvoke[config.App](i)
		if cfg.UsesMemoryDatabase() {
			return nil, nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), databaseInitTimeout)
		defer cancel()
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect database: %w", err)
		}
		return db, nil
	})

	do.Provide(injector, func(i do.Injector) (*store.Redis, error) {
		cfg := do.MustInvoke[config.App](i)
		if !UsesRedis(cfg) {
			return nil, nil
		}
		return store.NewRedis(cfg.RedisAddr), nil
	})

	do.Provide(injector, func(i do.Injector) (attendance.Store, error) {
		db := do.MustInvoke[*store.DB](i)
		if db == nil {
			slog.Warn("using in-memory attendance repository; data is lost on restart")
			return attendance.NewMemoryRepository(), nil
		}
		return attendance.NewRepository(db.Client), nil
	})

	do.Provide(injector, func(i do.Injector) (session.Store, error) {
		cfg := do.MustInvoke[config.App](i)
		if cfg.SessionBackend == "redis" {
			rdb := do.MustInvoke[*store.Redis](i)
			return session.NewRedisStore(rdb.Client, "", cfg.SessionTTL), nil
		}
		return session.NewMemoryStore(), nil
	})

	do.Provide(injector, func(i do.Injector) (webhook.Deduper, error) {
		if rdb := do.MustInvoke[*store.Redis](i); rdb != nil {
			return webhook.NewRedisDeduper(rdb.Client, dedupTTL), nil
		}
		return webhook.NewMemoryDeduper(dedupTTL), nil
	})

	do.Provide(injector, func(i do.Injector) (queue.Queue, error) {
		cfg := do.MustInvoke[config.App](i)
		if cfg.QueueBackend == "redis" {
			rdb := do.MustInvoke[*store.Redis](i)
			return queue.NewRedisQueue(rdb.Client, ""), nil
		}
		return queue.NewInMemory(memoryQueueSize), nil
	})

	do.Provide(injector, func(i do.Injector) (*messenger.Client, error) {
		cfg := do.MustInvoke[config.App](i)
		return messenger.New(cfg.MessagingAPIURL, cfg.ChannelAccessToken), nil
	})
}

func registerDomain(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*conversation.Engine, error) {
		cfg := do.MustInvoke[config.App](i)
		return conversation.NewEngine(conversation.Config{
			Fence:       cfg.Fence(),
			Trigger:     cfg.TriggerKeyword,
			CallTimeout: cfg.CollaboratorTimeout,
		},
			do.MustInvoke[session.Store](i),
			do.MustInvoke[attendance.Store](i),
			do.MustInvoke[*metrics.Metrics](i),
			slog.Default(),
		), nil
	})

	do.Provide(injector, func(i do.Injector) (*webhook.Handler, error) {
		cfg := do.MustInvoke[config.App](i)
		return webhook.NewHandler(
			cfg.ChannelSecret,
			do.MustInvoke[*conversation.Engine](i),
			do.MustInvoke[*messenger.Client](i),
			do.MustInvoke[webhook.Deduper](i),
			do.MustInvoke[*metrics.Metrics](i),
			slog.Default(),
		), nil
	})

	do.Provide(injector, func(i do.Injector) (*auth.Issuer, error) {
		cfg := do.MustInvoke[config.App](i)
		return auth.NewIssuer(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL), nil
	})

	do.Provide(injector, func(i do.Injector) (*admin.Handler, error) {
		cfg := do.MustInvoke[config.App](i)
		svc := attendance.NewService(do.MustInvoke[attendance.Store](i), cfg.Location())
		return admin.NewHandler(svc, do.MustInvoke[*auth.Issuer](i), cfg.AdminAPIKey, do.MustInvoke[queue.Queue](i), slog.Default()), nil
	})

	do.Provide(injector, func(i do.Injector) (*notify.Worker, error) {
		return notify.NewWorker(
			do.MustInvoke[queue.Queue](i),
			do.MustInvoke[*messenger.Client](i),
			do.MustInvoke[*metrics.Metrics](i),
			slog.Default(),
		), nil
	})
}

// Close shuts down the services that were resolved, in reverse order.
// Backends log their own close failures.
func Close(injector do.Injector) {
	_ = injector.Shutdown()
	slog.Info("dependencies released")
}
