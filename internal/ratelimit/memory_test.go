package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func closeLimiter(t *testing.T, m *MemoryLimiter) {
	t.Helper()
	if err := m.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
}

// frozen pins the limiter's clock and returns a function that advances it.
func frozen(m *MemoryLimiter) func(time.Duration) {
	var mu sync.Mutex
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.mu.Lock()
	m.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	m.mu.Unlock()
	return func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}
}

func TestMemoryLimiterAllowUnderBurst(t *testing.T) {
	m := NewMemoryLimiter(10, 5)
	defer closeLimiter(t, m)
	frozen(m)

	ctx := context.Background()
	for i := range 5 {
		ok, err := m.Allow(ctx, "k1")
		if err != nil {
			t.Fatalf("Allow returned error on request %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("expected Allow=true for request %d (within burst)", i)
		}
	}
}

func TestMemoryLimiterDenyAfterBurst(t *testing.T) {
	m := NewMemoryLimiter(10, 3)
	defer closeLimiter(t, m)
	frozen(m)

	ctx := context.Background()
	for i := range 3 {
		if ok, _ := m.Allow(ctx, "k1"); !ok {
			t.Fatalf("expected Allow=true for request %d", i)
		}
	}

	ok, err := m.Allow(ctx, "k1")
	if err != nil {
		t.Fatalf("Allow error: %v", err)
	}
	if ok {
		t.Fatal("expected Allow=false after burst exhausted")
	}
}

func TestMemoryLimiterTokenRefill(t *testing.T) {
	m := NewMemoryLimiter(5, 2)
	defer closeLimiter(t, m)
	advance := frozen(m)

	ctx := context.Background()
	for range 2 {
		_, _ = m.Allow(ctx, "k1")
	}
	if ok, _ := m.Allow(ctx, "k1"); ok {
		t.Fatal("should be denied immediately after exhausting burst")
	}

	// 5 rps: one token every 200ms.
	advance(100 * time.Millisecond)
	if ok, _ := m.Allow(ctx, "k1"); ok {
		t.Fatal("half a token is not enough")
	}
	advance(150 * time.Millisecond)
	if ok, _ := m.Allow(ctx, "k1"); !ok {
		t.Fatal("expected Allow=true after refill period")
	}
}

func TestMemoryLimiterRefillCapsAtBurst(t *testing.T) {
	m := NewMemoryLimiter(100, 2)
	defer closeLimiter(t, m)
	advance := frozen(m)

	ctx := context.Background()
	_, _ = m.Allow(ctx, "k1")
	advance(time.Hour)

	allowed := 0
	for range 10 {
		if ok, _ := m.Allow(ctx, "k1"); ok {
			allowed++
		}
	}
	if allowed != 2 {
		t.Fatalf("expected burst of 2 after long idle, got %d", allowed)
	}
}

func TestMemoryLimiterIndependentKeys(t *testing.T) {
	m := NewMemoryLimiter(10, 1)
	defer closeLimiter(t, m)
	frozen(m)

	ctx := context.Background()
	if ok, _ := m.Allow(ctx, "a"); !ok {
		t.Fatal("first request for 'a' should succeed")
	}
	if ok, _ := m.Allow(ctx, "a"); ok {
		t.Fatal("second request for 'a' should be denied")
	}
	if ok, _ := m.Allow(ctx, "b"); !ok {
		t.Fatal("first request for 'b' should succeed")
	}
}

func TestMemoryLimiterConcurrent(t *testing.T) {
	m := NewMemoryLimiter(100, 50)
	defer closeLimiter(t, m)
	frozen(m)

	ctx := context.Background()
	var wg sync.WaitGroup
	allowed := make([]int, 10)

	for g := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				ok, err := m.Allow(ctx, "shared")
				if err != nil {
					t.Errorf("goroutine %d: Allow error: %v", g, err)
					return
				}
				if ok {
					allowed[g]++
				}
			}
		}()
	}
	wg.Wait()

	total := 0
	for _, c := range allowed {
		total += c
	}
	if total != 50 {
		t.Fatalf("frozen clock: expected exactly the burst of 50, got %d", total)
	}
}

func TestMemoryLimiterEvictRecovered(t *testing.T) {
	m := NewMemoryLimiter(1, 5)
	defer closeLimiter(t, m)
	advance := frozen(m)

	ctx := context.Background()
	_, _ = m.Allow(ctx, "idle") // spent until t0+1s
	advance(2 * time.Second)
	for range 3 {
		_, _ = m.Allow(ctx, "busy") // spent until t0+5s
	}
	advance(time.Second)

	m.evictRecovered()

	m.mu.Lock()
	_, idleExists := m.tat["idle"]
	_, busyExists := m.tat["busy"]
	m.mu.Unlock()

	if idleExists {
		t.Fatal("expected recovered key to be evicted")
	}
	if !busyExists {
		t.Fatal("expected key with outstanding debt to survive eviction")
	}

	// The busy key has used 3 of 5 and recovered 1 since: 3 more are admitted.
	allowed := 0
	for range 10 {
		if ok, _ := m.Allow(ctx, "busy"); ok {
			allowed++
		}
	}
	if allowed != 3 {
		t.Fatalf("expected 3 admissions after partial recovery, got %d", allowed)
	}
}

func TestMemoryLimiterRetryAfter(t *testing.T) {
	m := NewMemoryLimiter(1, 2)
	defer closeLimiter(t, m)
	advance := frozen(m)

	ctx := context.Background()
	if d := m.RetryAfter("k1"); d != 0 {
		t.Fatalf("unknown key: expected 0, got %v", d)
	}
	for range 2 {
		_, _ = m.Allow(ctx, "k1")
	}
	if ok, _ := m.Allow(ctx, "k1"); ok {
		t.Fatal("expected denial after burst")
	}
	if d := m.RetryAfter("k1"); d != time.Second {
		t.Fatalf("expected 1s wait, got %v", d)
	}

	advance(400 * time.Millisecond)
	if d := m.RetryAfter("k1"); d != 600*time.Millisecond {
		t.Fatalf("expected 600ms wait, got %v", d)
	}

	advance(600 * time.Millisecond)
	if d := m.RetryAfter("k1"); d != 0 {
		t.Fatalf("expected no wait, got %v", d)
	}
	if ok, _ := m.Allow(ctx, "k1"); !ok {
		t.Fatal("expected admission once the wait has elapsed")
	}
}

func TestMemoryLimiterNonPositiveRate(t *testing.T) {
	m := NewMemoryLimiter(0, 1)
	defer closeLimiter(t, m)
	advance := frozen(m)

	ctx := context.Background()
	if ok, _ := m.Allow(ctx, "k1"); !ok {
		t.Fatal("burst is still admitted")
	}
	advance(time.Hour)
	if ok, _ := m.Allow(ctx, "k1"); ok {
		t.Fatal("a zero rate never refills within an hour")
	}
}

func TestMemoryLimiterCloseIdempotent(t *testing.T) {
	m := NewMemoryLimiter(1, 1)
	if err := m.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestNoopLimiter(t *testing.T) {
	var l Limiter = NoopLimiter{}
	for range 100 {
		if ok, err := l.Allow(context.Background(), "k"); !ok || err != nil {
			t.Fatalf("noop limiter denied: ok=%v err=%v", ok, err)
		}
	}
}
