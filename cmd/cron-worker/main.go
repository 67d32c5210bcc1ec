package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/commerce-core/internal/cron"
	"github.com/angelmondragon/commerce-core/internal/discounts"
	"github.com/angelmondragon/commerce-core/internal/gateway"
	"github.com/angelmondragon/commerce-core/internal/ledger"
	"github.com/angelmondragon/commerce-core/internal/lineitems"
	"github.com/angelmondragon/commerce-core/internal/orders"
	"github.com/angelmondragon/commerce-core/internal/shipping"
	"github.com/angelmondragon/commerce-core/internal/tax"
	"github.com/angelmondragon/commerce-core/pkg/config"
	"github.com/angelmondragon/commerce-core/pkg/db"
	"github.com/angelmondragon/commerce-core/pkg/instance"
	"github.com/angelmondragon/commerce-core/pkg/logger"
	"github.com/angelmondragon/commerce-core/pkg/metrics"
	"github.com/angelmondragon/commerce-core/pkg/migrate"
	"github.com/angelmondragon/commerce-core/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	service, err := buildService(cfg, logg, dbClient, redisClient, prometheus.DefaultRegisterer)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
		"interval": cfg.Cron.Interval.String(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildService(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, reg prometheus.Registerer) (*cron.Service, error) {
	conn := dbClient.DB()

	lineItems, err := lineitems.NewService(lineitems.NewRepository(conn), nil)
	if err != nil {
		return nil, err
	}
	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:      orders.NewRepository(conn),
		Tx:        dbClient,
		Locker:    orders.NewLocker(redisClient, cfg.Locks.OrderTTL, cfg.Locks.OrderWait),
		LineItems: lineItems,
		Discounts: discounts.NewRepository(conn),
		Shipping:  shipping.NewRepository(conn),
		Tax:       tax.NewRepository(conn),
		Pricing:   cfg.Pricing,
		Logger:    logg,
		Metrics:   metrics.NewPricingMetrics(reg),
	})
	if err != nil {
		return nil, fmt.Errorf("orders service: %w", err)
	}

	gateways, err := gateway.NewRegistry(gateway.NewDummy())
	if err != nil {
		return nil, err
	}
	ledgerService, err := ledger.NewService(ledger.ServiceParams{
		Repo:     ledger.NewRepository(conn),
		Tx:       dbClient,
		Gateways: gateways,
		Orders:   orderService,
		Gateway:  cfg.Gateway,
		Ledger:   cfg.Ledger,
		Logger:   logg,
		Metrics:  metrics.NewLedgerMetrics(reg),
	})
	if err != nil {
		return nil, fmt.Errorf("ledger service: %w", err)
	}

	reconcile, err := cron.NewReconcileJob(cron.ReconcileJobParams{
		Logger:     logg,
		Ledger:     ledgerService,
		StaleAfter: cfg.Ledger.ReconcileStaleAfter,
	})
	if err != nil {
		return nil, err
	}
	registry, err := cron.NewRegistry(reconcile)
	if err != nil {
		return nil, err
	}

	lock, err := cron.NewRedisLock(redisClient, instance.GetID(), cfg.Cron.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("cron lock: %w", err)
	}

	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(reg),
		Interval: cfg.Cron.Interval,
	})
}
