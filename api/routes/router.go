package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/commerce-core/api/controllers"
	"github.com/angelmondragon/commerce-core/api/middleware"
	"github.com/angelmondragon/commerce-core/internal/ledger"
	"github.com/angelmondragon/commerce-core/internal/orders"
	"github.com/angelmondragon/commerce-core/pkg/config"
	"github.com/angelmondragon/commerce-core/pkg/logger"
	"github.com/angelmondragon/commerce-core/pkg/redis"
)

// Dependencies lists everything the HTTP surface calls into.
type Dependencies struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Idempotency redis.IdempotencyStore
	Orders      orders.Service
	Ledger      ledger.Service
	Webhooks    controllers.GatewayCallbackService
	Metrics     prometheus.Gatherer
}

func NewRouter(deps Dependencies) http.Handler {
	cfg, logg := deps.Config, deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	if deps.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/gateways/{handle}", controllers.GatewayWebhook(deps.Webhooks, logg))
	})

	idempotent := middleware.Idempotency(deps.Idempotency, logg)

	r.Route("/api/v1/orders/{orderId}", func(r chi.Router) {
		r.Get("/", controllers.OrderTotals(deps.Orders, logg))
		r.Post("/recalculate", controllers.OrderRecalculate(deps.Orders, logg))
		r.Get("/balance", controllers.OrderBalance(deps.Orders, logg))
		r.Put("/coupon", controllers.OrderApplyCoupon(deps.Orders, logg))
		r.Put("/shipping", controllers.OrderSetShippingMethod(deps.Orders, logg))
		r.Put("/addresses", controllers.OrderSetAddresses(deps.Orders, logg))
		r.Patch("/line-items/{lineItemId}", controllers.OrderUpdateLineItem(deps.Orders, logg))
		r.Delete("/line-items/{lineItemId}", controllers.OrderRemoveLineItem(deps.Orders, logg))
		r.Get("/transactions", controllers.OrderTransactions(deps.Ledger, logg))

		r.Group(func(r chi.Router) {
			r.Use(idempotent)
			r.Post("/line-items", controllers.OrderAddLineItem(deps.Orders, logg))
			r.Post("/complete", controllers.OrderComplete(deps.Orders, logg))
			r.Post("/payments", controllers.OrderRequestPayment(deps.Ledger, logg))
		})
	})

	r.Route("/api/v1/transactions/{transactionId}", func(r chi.Router) {
		r.Get("/", controllers.TransactionDetail(deps.Ledger, logg))

		r.Group(func(r chi.Router) {
			r.Use(idempotent)
			r.Post("/capture", controllers.TransactionCapture(deps.Ledger, logg))
			r.Post("/refund", controllers.TransactionRefund(deps.Ledger, logg))
		})
	})

	return r
}
