package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/acecharity/raffle-backend/api/controllers"
	"github.com/acecharity/raffle-backend/api/middleware"
	cartsvc "github.com/acecharity/raffle-backend/internal/cart"
	checkoutsvc "github.com/acecharity/raffle-backend/internal/checkout"
	orderssvc "github.com/acecharity/raffle-backend/internal/orders"
	"github.com/acecharity/raffle-backend/pkg/config"
	"github.com/acecharity/raffle-backend/pkg/logger"
)

// RouterParams carry the wired services the HTTP surface exposes.
type RouterParams struct {
	Config       *config.Config
	Logger       *logger.Logger
	Checkout     checkoutsvc.Service
	Orders       orderssvc.Service
	CartSessions *cartsvc.SessionStore
	Readiness    map[string]controllers.Pinger
}

// NewRouter assembles the chi router for the API binary.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(params.Logger),
		middleware.RequestID(params.Logger),
		middleware.Logging(params.Logger),
	)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", controllers.Healthz())
	r.Get("/readyz", controllers.Readyz(params.Logger, params.Readiness))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Put("/cart", controllers.SaveCart(params.CartSessions, params.Logger))
		r.Post("/checkout", controllers.ViewCheckout(params.Checkout, params.Logger))
		r.Post("/checkout/submit", controllers.SubmitCheckout(params.Checkout, params.Logger))

		r.Route("/orders/{orderID}", func(r chi.Router) {
			r.Get("/log", controllers.GetOrderLog(params.Orders, params.Logger))
			r.Post("/refund", controllers.RefundOrder(params.Orders, params.Logger))
		})
	})

	return r
}
