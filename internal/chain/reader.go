package chain

import (
	"context"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/hyoka/internal/model"
)

// Defaults for ReaderConfig zero values.
const (
	DefaultMaxAgents   = 50
	DefaultCallTimeout = 10 * time.Second
)

// ReaderConfig bounds the Reader's fan-out and per-call latency.
type ReaderConfig struct {
	MaxAgents   int           // cap on enumerated agents per EnumerateAgents call
	CallTimeout time.Duration // deadline applied to each individual contract read
}

// Reader applies the registry failure policy: reads never fail, they degrade
// to zero reputation and empty feedback.
type Reader struct {
	registry    Registry
	maxAgents   int
	callTimeout time.Duration
	logger      *slog.Logger
}

// NewReader creates a Reader over registry.
func NewReader(registry Registry, cfg ReaderConfig, logger *slog.Logger) *Reader {
	if cfg.MaxAgents <= 0 {
		cfg.MaxAgents = DefaultMaxAgents
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	return &Reader{
		registry:    registry,
		maxAgents:   cfg.MaxAgents,
		callTimeout: cfg.CallTimeout,
		logger:      logger,
	}
}

// FetchReputation reads the score and feedback for address concurrently.
// A failed or timed-out score read yields 0, a failed feedback read yields an
// empty list. The returned Address is the input as given.
func (r *Reader) FetchReputation(ctx context.Context, address string) model.OnChainReputation {
	rep := model.OnChainReputation{Address: address, Feedback: []model.Feedback{}}

	agent, err := ParseAddress(address)
	if err != nil {
		r.logger.Debug("chain: skipping reputation read", "address", address, "error", err)
		return rep
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
		defer cancel()
		score, err := r.registry.Reputation(callCtx, agent)
		if err != nil {
			r.logger.Debug("chain: reputation read failed", "address", address, "error", err)
			return
		}
		rep.ReputationScore = bigToUint64(score)
	}()
	var feedback []model.Feedback
	go func() {
		defer wg.Done()
		callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
		defer cancel()
		fb, err := r.registry.Feedback(callCtx, agent)
		if err != nil {
			r.logger.Debug("chain: feedback read failed", "address", address, "error", err)
			return
		}
		feedback = fb
	}()
	wg.Wait()

	if feedback != nil {
		rep.Feedback = feedback
	}
	return rep
}

// EnumerateAgents reads up to MaxAgents registered agents and their
// reputation. Registries without enumeration support (count read fails)
// yield an empty map. Indices whose address read fails are skipped.
// Keys are lower-cased addresses.
func (r *Reader) EnumerateAgents(ctx context.Context) map[string]model.OnChainReputation {
	agents := make(map[string]model.OnChainReputation)

	countCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	count, err := r.registry.AgentCount(countCtx)
	cancel()
	if err != nil {
		r.logger.Debug("chain: agent enumeration unavailable", "error", err)
		return agents
	}

	n := r.maxAgents
	if count.Sign() <= 0 {
		return agents
	}
	if count.IsInt64() && count.Int64() < int64(n) {
		n = int(count.Int64())
	}

	var (
		mu      sync.Mutex
		skipped int
		g       errgroup.Group
	)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			idxCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
			addr, err := r.registry.AgentByIndex(idxCtx, big.NewInt(int64(i)))
			cancel()
			if err != nil || addr == (common.Address{}) {
				mu.Lock()
				skipped++
				mu.Unlock()
				r.logger.Debug("chain: skipping agent index", "index", i, "error", err)
				return nil
			}

			rep := r.FetchReputation(ctx, addr.Hex())

			mu.Lock()
			agents[model.NormalizeAddress(rep.Address)] = rep
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // goroutines never return errors

	r.logger.Debug("chain: enumerated agents",
		"registered", count.String(), "fetched", len(agents), "skipped", skipped)
	return agents
}
