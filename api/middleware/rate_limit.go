package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/paygate-backend/api/responses"
	"github.com/angelmondragon/paygate-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/paygate-backend/pkg/errors"
	"github.com/angelmondragon/paygate-backend/pkg/logger"
)

// RateLimiterStore is the slice of the Redis client the limiter needs.
type RateLimiterStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimit throttles the intake surface per caller and per source IP using
// fixed windows in Redis. A limiter outage fails open; blocking payments on
// the limiter would turn a Redis blip into an outage.
func RateLimit(cfg config.RateLimitConfig, store RateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil || cfg.Window <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if cfg.CallerLimit > 0 {
				if callerID := CallerIDFromContext(ctx); callerID != "" {
					scope := fmt.Sprintf("caller:%s", callerID)
					if !allow(ctx, store, scope, int64(cfg.CallerLimit), cfg.Window, logg) {
						responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "caller rate limit exceeded"))
						return
					}
				}
			}

			if cfg.IPLimit > 0 {
				if ip := clientIP(r); ip != "" {
					scope := fmt.Sprintf("ip:%s", ip)
					if !allow(ctx, store, scope, int64(cfg.IPLimit), cfg.Window, logg) {
						responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
						return
					}
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func allow(ctx context.Context, store RateLimiterStore, scope string, limit int64, window time.Duration, logg *logger.Logger) bool {
	ok, _, err := store.FixedWindowAllow(ctx, scope, limit, window)
	if err != nil {
		if logg != nil {
			logg.Error(ctx, "rate limiter unavailable", err)
		}
		return true
	}
	return ok
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
