package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces limiter keys in a shared Redis.
const DefaultRedisPrefix = "hyoka:ratelimit:"

// RedisLimiter implements Limiter with a fixed window counter in Redis, so
// every replica behind a load balancer draws from the same allowance.
//
// The window is the time a token bucket of the same rate and burst takes to
// refill completely; at most burst requests are admitted per window.
type RedisLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
	prefix string
	owned  bool
}

// NewRedisLimiter creates a limiter over client. The caller keeps ownership
// of client; Close does not close it.
func NewRedisLimiter(client *redis.Client, rate float64, burst int) *RedisLimiter {
	if burst < 1 {
		burst = 1
	}
	window := time.Second
	if rate > 0 {
		window = time.Duration(math.Ceil(float64(burst) / rate * float64(time.Second)))
	}
	if window < time.Millisecond {
		window = time.Millisecond
	}
	return &RedisLimiter{
		client: client,
		limit:  int64(burst),
		window: window,
		prefix: DefaultRedisPrefix,
	}
}

// DialRedis parses url (redis://...), verifies the connection, and returns a
// limiter that owns the client.
func DialRedis(ctx context.Context, url string, rate float64, burst int) (*RedisLimiter, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ratelimit: ping redis: %w", err)
	}
	l := NewRedisLimiter(client, rate, burst)
	l.owned = true
	return l, nil
}

// Window returns the counting window.
func (l *RedisLimiter) Window() time.Duration { return l.window }

// Allow increments key's counter for the current window.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	windowStart := time.Now().UnixMilli() / l.window.Milliseconds()
	k := fmt.Sprintf("%s%s:%d", l.prefix, key, windowStart)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.PExpire(ctx, k, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("ratelimit: redis incr: %w", err)
	}
	return incr.Val() <= l.limit, nil
}

// Close closes the client if the limiter created it.
func (l *RedisLimiter) Close() error {
	if !l.owned {
		return nil
	}
	return l.client.Close()
}
