package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Services bundles everything the router exposes.
type Services struct {
	Orders interface {
		OrderCreator
		OrderReader
		OrderCanceller
	}
	Payments interface {
		PaymentConfirmer
		OfflinePaymentService
		Refunder
	}
	Admin       AdminService
	Access      AccessVerifier
	OrderReaper Sweeper
	Watchdog    Sweeper
}

// NewRouter wires all handlers. Caller identity arrives in the X-User-ID
// header, set by the gateway.
func NewRouter(svcs Services, logger *zap.Logger, corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", HealthHandler)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/activities", func(r chi.Router) {
		r.Post("/", HandleCreateActivity(svcs.Admin))
		r.Route("/{activityID}", func(r chi.Router) {
			r.Get("/items", HandleListItems(svcs.Admin))
			r.Post("/items", HandleCreateItem(svcs.Admin))
			r.Post("/verify-password", HandleVerifyPassword(svcs.Access))
		})
	})
	r.Delete("/items/{itemID}", HandleDeleteItem(svcs.Admin))

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", HandleCreateOrder(svcs.Orders))
		r.Get("/", HandleListOrders(svcs.Orders))
		r.Route("/{orderID}", func(r chi.Router) {
			r.Get("/", HandleGetOrder(svcs.Orders))
			r.Post("/cancel", HandleCancelOrder(svcs.Orders))
			r.Post("/payments", HandleSubmitOfflinePayment(svcs.Payments))
			r.Post("/refund", HandleRefund(svcs.Payments))
		})
	})

	r.Post("/payments/webhook", HandlePaymentWebhook(svcs.Payments))
	r.Post("/payments/{paymentID}/review", HandleReviewPayment(svcs.Payments))

	r.Post("/sweeps/expired-orders", HandleSweep(svcs.OrderReaper))
	r.Post("/sweeps/shipping-reminders", HandleSweep(svcs.Watchdog))

	r.NotFound(NotFoundHandler().ServeHTTP)

	var handler http.Handler = r
	handler = CORS(corsOrigins, handler)
	handler = RequestLogger(handler, logger)
	return handler
}
