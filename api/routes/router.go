package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/paygate-backend/api/controllers"
	"github.com/angelmondragon/paygate-backend/api/middleware"
	"github.com/angelmondragon/paygate-backend/pkg/config"
	"github.com/angelmondragon/paygate-backend/pkg/logger"
	"github.com/angelmondragon/paygate-backend/pkg/security"
)

// RouterParams carries everything the HTTP surface needs. RateLimiter and
// Registry may be nil; the corresponding endpoints degrade gracefully.
type RouterParams struct {
	Logger      *logger.Logger
	Config      *config.Config
	Payments    *controllers.PaymentsController
	Tokens      *controllers.TokensController
	Health      *controllers.HealthController
	Antiforgery *security.Antiforgery
	Verifier    *security.SignedRequestVerifier
	RateLimiter RateLimiterStore
	Registry    *prometheus.Registry
}

// RateLimiterStore is the slice of the Redis client the router wires into the
// rate-limit middleware.
type RateLimiterStore = middleware.RateLimiterStore

// New assembles the service router. Every intake route sits behind
// authentication and rate limiting; probes and metrics do not.
func New(p RouterParams) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer(p.Logger))
	r.Use(middleware.RequestID(p.Logger))
	r.Use(middleware.Logging(p.Logger))

	r.Get("/health/live", p.Health.Live)
	r.Get("/health/ready", p.Health.Ready)

	if p.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/antiforgery-token", p.Tokens.AntiforgeryToken)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(p.Antiforgery, p.Verifier, p.Logger))
			r.Use(middleware.RateLimit(p.Config.RateLimit, p.RateLimiter, p.Logger))

			r.Post("/process-payment", p.Payments.ProcessPayment)
			r.Get("/payment-intents/{intentID}", p.Payments.GetIntent)
		})
	})

	return r
}
