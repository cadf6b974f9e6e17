package ratelimit

import (
	"context"
	"sync"
	"time"
)

// minRate keeps the emission interval finite for a zero or negative rate.
const minRate = 1e-6

// sweepEvery is how often keys whose allowance has fully recovered are dropped.
const sweepEvery = time.Minute

// MemoryLimiter is a per-process limiter for live registry reads.
//
// It tracks, per key, the time at which the key's allowance is fully spent
// (the generic cell rate algorithm). A request is admitted while that time is
// no more than burst-1 emission intervals ahead of now, and each admission
// pushes it one interval further. The stored time doubles as the exact wait a
// rejected caller must observe, which Middleware reports in Retry-After.
type MemoryLimiter struct {
	interval time.Duration // cost of one request: 1/rate
	slack    time.Duration // (burst-1) * interval
	now      func() time.Time

	mu  sync.Mutex
	tat map[string]time.Time

	stopOnce sync.Once
	done     chan struct{}
}

// NewMemoryLimiter admits rate requests per second per key, with up to burst
// requests back to back. Call Close to stop the background sweep.
func NewMemoryLimiter(rate float64, burst int) *MemoryLimiter {
	rate = max(rate, minRate)
	burst = max(burst, 1)
	interval := time.Duration(float64(time.Second) / rate)

	m := &MemoryLimiter{
		interval: interval,
		slack:    time.Duration(burst-1) * interval,
		now:      time.Now,
		tat:      make(map[string]time.Time),
		done:     make(chan struct{}),
	}
	go m.sweep()
	return m
}

// Allow admits one request for key if its allowance permits.
func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	tat := m.tat[key]
	if tat.Before(now) {
		tat = now
	}
	if tat.Sub(now) > m.slack {
		return false, nil
	}
	m.tat[key] = tat.Add(m.interval)
	return true, nil
}

// RetryAfter reports how long key must wait until Allow admits it again.
// Zero means the next request would be admitted.
func (m *MemoryLimiter) RetryAfter(key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	tat, ok := m.tat[key]
	if !ok {
		return 0
	}
	return max(0, tat.Sub(m.now())-m.slack)
}

// Close stops the sweep goroutine. Safe to call multiple times.
func (m *MemoryLimiter) Close() error {
	m.stopOnce.Do(func() { close(m.done) })
	return nil
}

func (m *MemoryLimiter) sweep() {
	ticker := time.NewTicker(sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.evictRecovered()
		}
	}
}

// evictRecovered drops keys whose allowance is full again. A missing key and
// a recovered one admit the same requests, so eviction never changes a verdict.
func (m *MemoryLimiter) evictRecovered() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for key, tat := range m.tat {
		if !tat.After(now) {
			delete(m.tat, key)
		}
	}
}
