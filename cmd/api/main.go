package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/commerce-core/api/controllers"
	"github.com/angelmondragon/commerce-core/api/routes"
	"github.com/angelmondragon/commerce-core/internal/discounts"
	"github.com/angelmondragon/commerce-core/internal/gateway"
	"github.com/angelmondragon/commerce-core/internal/ledger"
	"github.com/angelmondragon/commerce-core/internal/lineitems"
	"github.com/angelmondragon/commerce-core/internal/orders"
	"github.com/angelmondragon/commerce-core/internal/shipping"
	"github.com/angelmondragon/commerce-core/internal/tax"
	"github.com/angelmondragon/commerce-core/internal/webhooks"
	"github.com/angelmondragon/commerce-core/pkg/config"
	"github.com/angelmondragon/commerce-core/pkg/db"
	"github.com/angelmondragon/commerce-core/pkg/logger"
	"github.com/angelmondragon/commerce-core/pkg/metrics"
	"github.com/angelmondragon/commerce-core/pkg/migrate"
	"github.com/angelmondragon/commerce-core/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

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

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	handler, err := buildHandler(cfg, logg, dbClient, redisClient, registry)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logg.Info(gctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logg.Info(ctx, "shutting down api server")
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}

func buildHandler(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, registry *prometheus.Registry) (http.Handler, error) {
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
		Metrics:   metrics.NewPricingMetrics(registry),
	})
	if err != nil {
		return nil, err
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
		Metrics:  metrics.NewLedgerMetrics(registry),
	})
	if err != nil {
		return nil, err
	}

	var callbacks controllers.GatewayCallbackService
	if cfg.Gateway.WebhookSecret != "" {
		guard, err := webhooks.NewIdempotencyGuard(redisClient, cfg.Gateway.WebhookDedupeTTL)
		if err != nil {
			return nil, err
		}
		svc, err := webhooks.NewService(webhooks.ServiceParams{
			Ledger: ledgerService,
			Guard:  guard,
			Secret: cfg.Gateway.WebhookSecret,
			Logger: logg,
		})
		if err != nil {
			return nil, err
		}
		callbacks = svc
	} else {
		logg.Warn(context.Background(), "gateway webhook secret not set; callbacks disabled")
	}

	return routes.NewRouter(routes.Dependencies{
		Config:      cfg,
		Logger:      logg,
		DB:          dbClient,
		Redis:       redisClient,
		Idempotency: redisClient,
		Orders:      orderService,
		Ledger:      ledgerService,
		Webhooks:    callbacks,
		Metrics:     registry,
	}), nil
}
