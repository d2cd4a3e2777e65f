package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/pharmaplace/pharmacy-commerce-platform/internal/errors"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/repositories/redis"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/utils/response"
)

// RateLimit throttles per client IP using the sliding-window limiter.
// A limiter outage fails open: catalog reads keep working without Redis.
func RateLimit(limiter redis.RateLimiter) func(http.Handler) http.HandlerFunc {
	return func(next http.Handler) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			logger := LoggerFromContext(r.Context())

			allowed, remaining, retryAfter, err := limiter.Allow(r.Context(), clientIP(r))
			if err != nil {
				logger.Warn("Rate limiter unavailable, allowing request",
					slog.String("error", err.Error()))
				next.ServeHTTP(w, r)

				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				response.Error(w, errors.TooManyRequestsError("Too many requests, slow down"))

				return
			}

			next.ServeHTTP(w, r)
		}
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
