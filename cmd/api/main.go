package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/acecharity/raffle-backend/api"
	"github.com/acecharity/raffle-backend/api/controllers"
	"github.com/acecharity/raffle-backend/api/routes"
	"github.com/acecharity/raffle-backend/internal/audit"
	"github.com/acecharity/raffle-backend/internal/cart"
	"github.com/acecharity/raffle-backend/internal/checkout"
	"github.com/acecharity/raffle-backend/internal/lease"
	"github.com/acecharity/raffle-backend/internal/notifications"
	"github.com/acecharity/raffle-backend/internal/orders"
	"github.com/acecharity/raffle-backend/internal/payments"
	"github.com/acecharity/raffle-backend/internal/raffle"
	"github.com/acecharity/raffle-backend/pkg/config"
	"github.com/acecharity/raffle-backend/pkg/db"
	"github.com/acecharity/raffle-backend/pkg/enums"
	"github.com/acecharity/raffle-backend/pkg/logger"
	"github.com/acecharity/raffle-backend/pkg/migrate"
	"github.com/acecharity/raffle-backend/pkg/pubsub"
	"github.com/acecharity/raffle-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	registry, err := buildPaymentRegistry(cfg)
	if err != nil {
		logg.Error(context.Background(), "failed to build payment registry", err)
		os.Exit(1)
	}

	gatewayAdapter, err := checkout.NewGatewayAdapter(registry)
	if err != nil {
		logg.Error(context.Background(), "failed to build gateway adapter", err)
		os.Exit(1)
	}

	leaseManager, err := lease.NewManager(lease.ManagerParams{
		Store: redisClient,
		TTL:   cfg.Checkout.LeaseTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build lease manager", err)
		os.Exit(1)
	}

	auditSink, err := audit.NewSink(dbClient.DB(), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build audit sink", err)
		os.Exit(1)
	}

	redisAllocator, err := orders.NewRedisAllocator(redisClient, "order_number")
	if err != nil {
		logg.Error(context.Background(), "failed to build redis allocator", err)
		os.Exit(1)
	}
	allocator, err := orders.NewFallbackAllocator(orders.NewSequenceAllocator(), redisAllocator, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build order number allocator", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:        orders.NewRepository(dbClient.DB()),
		Tx:          dbClient,
		Allocator:   allocator,
		Lease:       leaseManager,
		Payments:    gatewayAdapter,
		Refunder:    gatewayAdapter,
		Audit:       auditSink,
		Logger:      logg,
		SweepMinAge: cfg.Sweeper.MinAge,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build orders service", err)
		os.Exit(1)
	}

	raffleService, err := raffle.NewService(raffle.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to build raffle service", err)
		os.Exit(1)
	}

	validator, err := cart.NewValidator(raffleService)
	if err != nil {
		logg.Error(context.Background(), "failed to build cart validator", err)
		os.Exit(1)
	}

	cartSessions, err := cart.NewSessionStore(cart.SessionStoreParams{
		Store: redisClient,
		TTL:   cfg.Checkout.CartTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build cart session store", err)
		os.Exit(1)
	}

	dispatcher, pubsubClient := buildDispatcher(cfg, logg)
	if pubsubClient != nil {
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Orders:        ordersService,
		Validator:     validator,
		CartSessions:  cartSessions,
		Raffle:        raffleService,
		Registry:      registry,
		Notifications: dispatcher,
		Audit:         auditSink,
		Logger:        logg,
		Processor:     enums.PaymentProcessor(cfg.Payments.Processor),
		TermsURL:      cfg.Checkout.TermsURL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build checkout service", err)
		os.Exit(1)
	}

	handler := routes.NewRouter(routes.RouterParams{
		Config:       cfg,
		Logger:       logg,
		Checkout:     checkoutService,
		Orders:       ordersService,
		CartSessions: cartSessions,
		Readiness: map[string]controllers.Pinger{
			"database": dbClient,
			"redis":    redisClient,
		},
	})

	srv := api.NewServer(cfg, handler)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"port": cfg.App.Port,
	})

	go func() {
		<-ctx.Done()
		if err := api.Shutdown(srv); err != nil {
			logg.Error(ctx, "server shutdown failed", err)
		}
	}()

	logg.Info(ctx, "starting api server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}

func buildPaymentRegistry(cfg *config.Config) (*payments.Registry, error) {
	gateways := []payments.Gateway{}
	if cfg.Stripe.APIKey != "" {
		stripeGateway, err := payments.NewStripeGateway(payments.StripeGatewayParams{
			APIKey:  cfg.Stripe.APIKey,
			Timeout: cfg.Payments.Timeout,
		})
		if err != nil {
			return nil, err
		}
		gateways = append(gateways, stripeGateway)
	}
	if cfg.App.IsDev() {
		gateways = append(gateways, payments.AlwaysSucceedGateway{}, payments.AlwaysFailGateway{})
	}
	return payments.NewRegistry(gateways...)
}

func buildDispatcher(cfg *config.Config, logg *logger.Logger) (checkoutDispatcher, *pubsub.Client) {
	if cfg.GCP.ProjectID == "" || cfg.PubSub.NotificationTopic == "" {
		return notifications.NewNoopDispatcher(logg), nil
	}
	client, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "pubsub unavailable, notifications disabled", err)
		return notifications.NewNoopDispatcher(logg), nil
	}
	dispatcher, err := notifications.NewPubSubDispatcher(client.NotificationPublisher(), logg)
	if err != nil {
		logg.Error(context.Background(), "dispatcher unavailable, notifications disabled", err)
		return notifications.NewNoopDispatcher(logg), client
	}
	return dispatcher, client
}

type checkoutDispatcher interface {
	SendPaymentConfirmation(ctx context.Context, orderID string, orderNumber int64) error
}
