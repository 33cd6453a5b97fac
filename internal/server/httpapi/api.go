// Package httpapi exposes the auth service over HTTP: JSON request/response
// envelopes, bearer-token middleware and per-route rate limiting.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/codementor-ai/auth-service/internal/logging"
	"github.com/codementor-ai/auth-service/internal/server/config"
	"github.com/codementor-ai/auth-service/internal/server/metrics"
	"github.com/codementor-ai/auth-service/internal/server/ratelimit"
	"github.com/codementor-ai/auth-service/internal/server/services"
)

// API wires the auth service into HTTP handlers.
type API struct {
	auth            *services.AuthService
	jwtSecret       []byte
	logger          logging.Logger
	metrics         *metrics.Metrics
	registerLimiter ratelimit.Limiter
	loginLimiter    ratelimit.Limiter
}

// New builds the API. The limiters guard the unauthenticated credential
// endpoints; pass in-process limiters for single-replica deployments.
func New(auth *services.AuthService, cfg *config.Config, logger logging.Logger, mtr *metrics.Metrics, registerLimiter, loginLimiter ratelimit.Limiter) *API {
	return &API{
		auth:            auth,
		jwtSecret:       []byte(cfg.SecretKey),
		logger:          logger,
		metrics:         mtr,
		registerLimiter: registerLimiter,
		loginLimiter:    loginLimiter,
	}
}

// Router returns a chi.Router with all routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(metrics.HTTPMiddleware(a.metrics))
	r.Use(a.requestLogger)
	r.Use(a.recoverer)

	r.Get("/health", a.Health)
	r.Method(http.MethodGet, "/metrics", a.metrics.Handler())

	r.Route("/api/auth", func(r chi.Router) {
		r.With(a.rateLimit(a.registerLimiter, "register")).Post("/register", a.Register)
		r.With(a.rateLimit(a.loginLimiter, "login")).Post("/login", a.Login)
		r.Post("/refresh", a.Refresh)
		r.Post("/logout", a.Logout)

		r.With(a.AuthMiddleware).Get("/me", a.Me)
		r.With(a.AuthMiddleware).Post("/assessment", a.Assessment)
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, &notFoundError)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, &notFoundError)
	})

	return r
}
