package ratelimit_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/hyoka/internal/ratelimit"
	"github.com/ashita-ai/hyoka/internal/testutil"
)

var (
	testRedis    *redis.Client
	testRedisURL string
)

func TestMain(m *testing.M) {
	rc, err := testutil.StartRedis(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "redis unavailable, skipping integration tests: %v\n", err)
	} else {
		testRedis = rc.Client
		testRedisURL = rc.URL
	}

	code := m.Run()

	if rc != nil {
		rc.Terminate()
	}
	os.Exit(code)
}

func requireRedis(t *testing.T) {
	t.Helper()
	if testRedis == nil {
		t.Skip("redis container not available")
	}
}

// uniqueKey keeps tests from sharing counters in the shared container.
func uniqueKey(t *testing.T) string {
	return fmt.Sprintf("%s-%d", t.Name(), time.Now().UnixNano())
}

func TestRedisLimiterAllow(t *testing.T) {
	requireRedis(t)
	ctx := context.Background()
	limiter := ratelimit.NewRedisLimiter(testRedis, 0.1, 5) // 5 per 50s window
	key := uniqueKey(t)

	for i := range 5 {
		ok, err := limiter.Allow(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok, "request %d should be allowed", i+1)
	}

	ok, err := limiter.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "6th request should be denied")
}

func TestRedisLimiterMultipleKeys(t *testing.T) {
	requireRedis(t)
	ctx := context.Background()
	limiter := ratelimit.NewRedisLimiter(testRedis, 0.1, 3)
	base := uniqueKey(t)

	for i := range 3 {
		okA, err := limiter.Allow(ctx, base+"-A")
		require.NoError(t, err)
		okB, err := limiter.Allow(ctx, base+"-B")
		require.NoError(t, err)
		assert.True(t, okA, "A request %d", i+1)
		assert.True(t, okB, "B request %d", i+1)
	}

	okA, _ := limiter.Allow(ctx, base+"-A")
	okB, _ := limiter.Allow(ctx, base+"-B")
	assert.False(t, okA)
	assert.False(t, okB)
}

func TestRedisLimiterWindowExpires(t *testing.T) {
	requireRedis(t)
	ctx := context.Background()
	limiter := ratelimit.NewRedisLimiter(testRedis, 4, 2) // 2 per 500ms
	require.Equal(t, 500*time.Millisecond, limiter.Window())
	key := uniqueKey(t)

	// Align to the start of a window so the burst lands in one bucket.
	w := limiter.Window()
	time.Sleep(w - time.Duration(time.Now().UnixNano()%int64(w)) + 10*time.Millisecond)

	r1, _ := limiter.Allow(ctx, key)
	r2, _ := limiter.Allow(ctx, key)
	r3, _ := limiter.Allow(ctx, key)
	assert.True(t, r1)
	assert.True(t, r2)
	assert.False(t, r3)

	time.Sleep(w + 50*time.Millisecond)

	r4, err := limiter.Allow(ctx, key)
	require.NoError(t, err)
	assert.True(t, r4, "request after the window should be allowed")
}

func TestRedisLimiterConcurrent(t *testing.T) {
	requireRedis(t)
	ctx := context.Background()
	limiter := ratelimit.NewRedisLimiter(testRedis, 1, 100) // 100 per 100s window
	key := uniqueKey(t)

	results := make(chan bool, 200)
	for range 200 {
		go func() {
			ok, err := limiter.Allow(ctx, key)
			results <- ok && err == nil
		}()
	}

	allowed := 0
	for range 200 {
		if <-results {
			allowed++
		}
	}
	assert.Equal(t, 100, allowed, "INCR is atomic: exactly the limit is admitted")
}

func TestRedisLimiterErrorsWhenUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer func() { _ = client.Close() }()
	limiter := ratelimit.NewRedisLimiter(client, 1, 1)

	_, err := limiter.Allow(context.Background(), "k")
	assert.Error(t, err)
}

func TestDialRedis(t *testing.T) {
	requireRedis(t)
	ctx := context.Background()

	limiter, err := ratelimit.DialRedis(ctx, testRedisURL, 1, 1)
	require.NoError(t, err)
	ok, err := limiter.Allow(ctx, uniqueKey(t))
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, limiter.Close())
}

func TestDialRedisInvalidURL(t *testing.T) {
	_, err := ratelimit.DialRedis(context.Background(), "not a url", 1, 1)
	assert.Error(t, err)
}

func TestNewRedisLimiterWindow(t *testing.T) {
	assert.Equal(t, 2*time.Second, ratelimit.NewRedisLimiter(nil, 5, 10).Window())
	assert.Equal(t, time.Second, ratelimit.NewRedisLimiter(nil, 0, 10).Window(), "zero rate falls back to one second")
}
