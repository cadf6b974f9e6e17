package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/ashita-ai/hyoka/internal/service/profiles"
)

// EventProfilesRefreshed is the SSE event type sent after every refresh.
const EventProfilesRefreshed = "profiles_refreshed"

// Broker fans out profile refresh notifications to SSE subscribers.
// Register OnRefresh as a profiles.Service hook to feed it.
type Broker struct {
	logger *slog.Logger

	mu          sync.RWMutex
	subscribers map[chan []byte]struct{}
	closed      bool
}

// NewBroker creates a new SSE broker.
func NewBroker(logger *slog.Logger) *Broker {
	return &Broker{
		logger:      logger,
		subscribers: make(map[chan []byte]struct{}),
	}
}

type refreshEvent struct {
	Profiles           int       `json:"profiles"`
	Bounties           int       `json:"bounties"`
	OnChainAgents      int       `json:"onchain_agents"`
	Backfilled         int       `json:"backfilled"`
	BountySourceFailed bool      `json:"bounty_source_failed"`
	DurationMS         int64     `json:"duration_ms"`
	RefreshedAt        time.Time `json:"refreshed_at"`
}

// OnRefresh publishes a profiles_refreshed event. It matches profiles.RefreshHook.
func (b *Broker) OnRefresh(_ context.Context, r profiles.RefreshResult) {
	payload, err := json.Marshal(refreshEvent{
		Profiles:           r.Profiles,
		Bounties:           r.Bounties,
		OnChainAgents:      r.OnChainAgents,
		Backfilled:         r.Backfilled,
		BountySourceFailed: r.BountySourceFailed,
		DurationMS:         r.Duration.Milliseconds(),
		RefreshedAt:        r.RefreshedAt,
	})
	if err != nil {
		b.logger.Error("broker: marshal refresh event", "error", err)
		return
	}
	b.broadcast(formatSSE(EventProfilesRefreshed, string(payload)))
}

// Subscribe returns a channel that receives SSE-formatted events.
// The caller must call Unsubscribe when done. After Close, the returned
// channel is already closed.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64) // Buffer to avoid blocking the broadcast loop.
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscriber channel and closes it.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[ch]; !ok {
		return // already closed by Close
	}
	delete(b.subscribers, ch)
	close(ch)
}

// Subscribers returns the number of connected subscribers.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close disconnects every subscriber. Later broadcasts are dropped.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subscribers {
		delete(b.subscribers, ch)
		close(ch)
	}
}

// broadcast sends an event to all subscribers. Subscribers with a full
// buffer miss the event rather than stall the others.
func (b *Broker) broadcast(event []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// formatSSE formats an event as a Server-Sent Events message.
func formatSSE(eventType, data string) []byte {
	return []byte("event: " + eventType + "\ndata: " + data + "\n\n")
}
