package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/queue-engine/internal/api/http"
	"github.com/spec-kit/queue-engine/internal/api/http/handlers"
	"github.com/spec-kit/queue-engine/internal/config"
	"github.com/spec-kit/queue-engine/internal/events"
	"github.com/spec-kit/queue-engine/internal/notification"
	"github.com/spec-kit/queue-engine/internal/observability"
	"github.com/spec-kit/queue-engine/internal/persistence"
	"github.com/spec-kit/queue-engine/internal/repository"
	"github.com/spec-kit/queue-engine/internal/repository/memory"
	"github.com/spec-kit/queue-engine/internal/service"
	"github.com/spec-kit/queue-engine/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing := observability.SetupTracing(ctx, cfg.App, cfg.Telemetry, logger)

	dependencies := map[string]handlers.Pinger{}
	var stores service.Stores

	switch cfg.Queue.Store {
	case "memory":
		logger.Warn("using in-memory queue store, state is lost on restart and must not be shared between instances")
		store := memory.NewStore()
		if cfg.Queue.SeedFile != "" {
			if err := memory.LoadSeedFile(store, cfg.Queue.SeedFile); err != nil {
				logger.Fatal("failed to load seed file", zap.Error(err))
			}
		}
		stores = service.Stores{
			Departments:   store.Departments(),
			Tickets:       store.Tickets(),
			Notifications: store.Notifications(),
			Queue:         store.Queue(),
		}
	default:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer pg.Close()

		pool := pg.PoolHandle()
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		stores = service.Stores{
			Departments:   repository.NewDepartmentRepository(pool),
			Tickets:       repository.NewTicketRepository(pool),
			Notifications: repository.NewNotificationRepository(pool),
			Queue: repository.NewQueueStore(pool, repository.QueueStoreOptions{
				LockTimeout:  cfg.Queue.LockTimeout,
				Serializable: cfg.Queue.Serializable,
			}),
		}
		dependencies["postgres"] = pg
	}

	var cache service.DepartmentCache
	if cfg.Redis.Addr != "" {
		redis, err := persistence.NewRedis(ctx, cfg.Redis, logger)
		if redis != nil {
			defer redis.Close()
			dependencies["redis"] = redis
		}
		// the cache is only used when redis answered at startup
		if err == nil {
			cache = persistence.NewDepartmentCache(redis, cfg.Redis.RegistryTTL)
		}
	}

	metrics := observability.NewMetrics()
	components := service.Wire(service.Options{
		Stores:     stores,
		Cache:      cache,
		Dispatcher: events.NewInMemoryDispatcher(logger.Named("events")),
		Retry: service.RetryPolicy{
			MaxAttempts: cfg.Queue.RetryMaxAttempts,
			Initial:     cfg.Queue.RetryInitial,
			Max:         cfg.Queue.RetryMax,
		},
		Location:       cfg.Queue.Timezone,
		Channel:        cfg.Notification.Channel,
		AheadPositions: cfg.Notification.AheadPositions,
		Logger:         logger,
		Metrics:        metrics,
	})

	notificationWorker := worker.NewNotificationWorker(
		stores.Notifications,
		notification.NewSender(cfg.Notification, logger.Named("sender")),
		worker.Config{
			RetrySchedule: cfg.Notification.RetrySchedule,
			BatchSize:     cfg.Notification.BatchSize,
			Lease:         cfg.Notification.ClaimLease,
		},
		logger.Named("notification_worker"),
		metrics,
	)
	components.Notifications.SetWaker(notificationWorker)
	go notificationWorker.Start(ctx, cfg.Notification.PollInterval)

	app := httptransport.NewApp(components.Engine, httptransport.AppConfig{
		Name:           cfg.App.Name,
		Version:        cfg.App.Version,
		RequestTimeout: cfg.App.RequestTimeout(),
		Logger:         logger,
		Metrics:        metrics,
		Dependencies:   dependencies,
	})

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()), zap.String("store", cfg.Queue.Store))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	cancel()

	tracingCtx, tracingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer tracingCancel()
	if err := shutdownTracing(tracingCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
