package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/codementor-ai/auth-service/internal/common"
	"github.com/codementor-ai/auth-service/internal/server/auth"
	"github.com/codementor-ai/auth-service/internal/server/ratelimit"
)

type contextKey int

const claimsKey contextKey = iota

// claimsFromContext returns the verified token claims set by AuthMiddleware,
// or nil when the request was not authenticated.
func claimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

// AuthMiddleware requires a valid bearer token and stores its claims on the
// request context.
func (a *API) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(w, common.ErrMissingToken)
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, common.ErrMissingToken)
			return
		}

		claims, err := auth.ParseToken(token, a.jwtSecret)
		if err != nil {
			if errors.Is(err, common.ErrTokenExpired) {
				a.logger.Debug(r.Context(), "expired bearer token", "path", r.URL.Path)
			}
			writeError(w, common.ErrInvalidToken)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLogger logs every request once it completes.
func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		a.logger.Info(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// recoverer converts handler panics into a generic 500 envelope.
func (a *API) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				a.logger.Error(r.Context(), "handler panic", "method", r.Method, "path", r.URL.Path, "panic", rec)
				writeError(w, &internalError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// rateLimit guards a route with a fixed-window limiter keyed by client IP.
// When the limiter backend is unreachable the request proceeds: losing rate
// limiting briefly beats refusing all logins.
func (a *API) rateLimit(limiter ratelimit.Limiter, route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, err := limiter.Allow(r.Context(), route+":"+clientIP(r))
			if err != nil {
				a.logger.Warn(r.Context(), "rate limiter unavailable", "route", route, "error", err)
			} else if !ok {
				a.metrics.RateLimitedTotal.WithLabelValues(route).Inc()
				writeError(w, common.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP returns the peer address. Proxy headers are deliberately not
// consulted; spoofable headers must not feed the rate limiter.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
