package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/acecharity/raffle-backend/internal/audit"
	"github.com/acecharity/raffle-backend/internal/cron"
	"github.com/acecharity/raffle-backend/internal/notifications"
	"github.com/acecharity/raffle-backend/internal/orders"
	"github.com/acecharity/raffle-backend/internal/tickets"
	"github.com/acecharity/raffle-backend/pkg/config"
	"github.com/acecharity/raffle-backend/pkg/db"
	"github.com/acecharity/raffle-backend/pkg/logger"
	"github.com/acecharity/raffle-backend/pkg/metrics"
	"github.com/acecharity/raffle-backend/pkg/migrate"
	"github.com/acecharity/raffle-backend/pkg/pubsub"
	"github.com/acecharity/raffle-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "ticket-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "ticket-worker"

	logg = logger.New(logger.Options{
		ServiceName: "ticket-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	ordersRepo := orders.NewRepository(dbClient.DB())

	ticketsRepo := tickets.NewRepository(dbClient.DB())
	reconciler, err := tickets.NewReconciler(tickets.ReconcilerParams{
		Repo:        ticketsRepo,
		InsertChunk: cfg.Worker.InsertChunk,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build ticket reconciler", err)
		os.Exit(1)
	}

	auditSink, err := audit.NewSink(dbClient.DB(), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build audit sink", err)
		os.Exit(1)
	}

	var dispatcher notifications.Dispatcher = notifications.NewNoopDispatcher(logg)
	if cfg.GCP.ProjectID != "" && cfg.PubSub.NotificationTopic != "" {
		pubsubClient, psErr := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if psErr != nil {
			logg.Error(context.Background(), "pubsub unavailable, notifications disabled", psErr)
		} else {
			defer func() {
				if err := pubsubClient.Close(); err != nil {
					logg.Error(context.Background(), "error closing pubsub", err)
				}
			}()
			published, dErr := notifications.NewPubSubDispatcher(pubsubClient.NotificationPublisher(), logg)
			if dErr != nil {
				logg.Error(context.Background(), "dispatcher unavailable, notifications disabled", dErr)
			} else {
				dispatcher = published
			}
		}
	}

	jobMetrics := metrics.NewJobMetrics(prometheus.DefaultRegisterer)

	generationJob, err := cron.NewTicketGenerationJob(cron.TicketGenerationJobParams{
		Repo:          ordersRepo,
		Tx:            dbClient,
		Reconciler:    reconciler,
		Notifications: dispatcher,
		Audit:         auditSink,
		Metrics:       jobMetrics,
		Logger:        logg,
		BatchSize:     cfg.Worker.BatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build ticket generation job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName(cfg.App.Env)),
		cron.LockTTLForInterval(cfg.Worker.Interval))
	if err != nil {
		logg.Error(context.Background(), "failed to create worker lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(generationJob),
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: cfg.Worker.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create worker service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting ticket worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "ticket worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "ticket worker shutting down gracefully")
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("ticket-worker:%s", env)
}
