package ratelimit

import (
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ashita-ai/hyoka/internal/model"
)

// KeyFunc extracts the rate limit key from a request.
// Returns empty string to skip rate limiting for this request.
type KeyFunc func(r *http.Request) string

// RequestIDFunc extracts the request ID from the request context.
// Injected by the caller to avoid a dependency on the server package.
type RequestIDFunc func(r *http.Request) string

// Waiter is implemented by limiters that know how long a rejected key must
// back off. MemoryLimiter is one; the fixed-window RedisLimiter is not.
type Waiter interface {
	RetryAfter(key string) time.Duration
}

// MiddlewareConfig configures Middleware.
type MiddlewareConfig struct {
	Limiter   Limiter
	KeyFunc   KeyFunc
	RequestID RequestIDFunc // optional
	// RetryAfter is advertised when the limiter is not a Waiter.
	RetryAfter time.Duration
	Logger     *slog.Logger
}

// Middleware returns HTTP middleware that rejects requests over the limit
// with 429. Limiter errors are logged and the request is let through.
func Middleware(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	waiter, _ := cfg.Limiter.(Waiter)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			key := cfg.KeyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowed, err := cfg.Limiter.Allow(r.Context(), key)
			if err != nil {
				cfg.Logger.Warn("rate limiter error, allowing request", "error", err, "key", key)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				wait := cfg.RetryAfter
				if waiter != nil {
					if d := waiter.RetryAfter(key); d > 0 {
						wait = d
					}
				}
				w.Header().Set("Retry-After", retryAfterSeconds(wait))
				cfg.Logger.Debug("live read rate limited", "key", key, "retry_after", wait)
				var requestID string
				if cfg.RequestID != nil {
					requestID = cfg.RequestID(r)
				}
				writeRateLimitError(w, requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// retryAfterSeconds rounds d up to whole seconds, at least 1.
func retryAfterSeconds(d time.Duration) string {
	return strconv.Itoa(max(1, int(math.Ceil(d.Seconds()))))
}

func writeRateLimitError(w http.ResponseWriter, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(model.APIError{
		Error: model.ErrorDetail{
			Code:    model.ErrCodeRateLimited,
			Message: "too many requests",
		},
		Meta: model.ResponseMeta{
			RequestID: requestID,
			Timestamp: time.Now().UTC(),
		},
	})
}

// IPKeyFunc keys on the client IP from RemoteAddr. X-Forwarded-For is not
// trusted; behind a proxy, have the proxy rewrite RemoteAddr.
func IPKeyFunc(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "" {
		return ""
	}
	return "ip:" + host
}
