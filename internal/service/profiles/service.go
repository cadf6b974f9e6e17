// Package profiles serves aggregated agent profiles from a short-lived cache.
//
// A refresh reads the bounty list and the enumerable on-chain agents
// concurrently, backfills on-chain data for claimants the enumeration missed,
// aggregates, and publishes an immutable snapshot. Concurrent cache misses
// share one in-flight refresh.
package profiles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ashita-ai/hyoka/internal/bounty"
	"github.com/ashita-ai/hyoka/internal/model"
	"github.com/ashita-ai/hyoka/internal/service/aggregate"
)

// ErrNotFound is returned when an address is absent from the current profile set.
var ErrNotFound = errors.New("profiles: agent not found")

// Defaults for Config zero values.
const (
	DefaultTTL                 = 60 * time.Second
	DefaultBackfillConcurrency = 16
)

var tracer = otel.Tracer("hyoka/profiles")

// ChainReader is the on-chain side of a refresh. Both reads absorb their own
// failures.
type ChainReader interface {
	FetchReputation(ctx context.Context, address string) model.OnChainReputation
	EnumerateAgents(ctx context.Context) map[string]model.OnChainReputation
}

// Config configures a Service.
type Config struct {
	TTL                 time.Duration    // measured from the end of the last refresh
	RecentFeedback      int              // feedback entries kept per profile
	BackfillConcurrency int              // parallel individual reputation reads
	Clock               func() time.Time // nil = time.Now
}

// Snapshot is one published profile set. It is never mutated after publication.
type Snapshot struct {
	Profiles    []model.AgentProfile
	RefreshedAt time.Time

	index      map[string]int
	generation int64
}

// RefreshResult describes a completed refresh.
type RefreshResult struct {
	Profiles           int
	Bounties           int
	OnChainAgents      int
	Backfilled         int
	BountySourceFailed bool
	Duration           time.Duration
	RefreshedAt        time.Time
}

// RefreshHook is called asynchronously after every completed refresh.
type RefreshHook func(ctx context.Context, result RefreshResult)

// Service owns the cached profile set. Construct one per process.
type Service struct {
	bounties            bounty.Source
	chain               ChainReader
	ttl                 time.Duration
	recentFeedback      int
	backfillConcurrency int
	now                 func() time.Time
	metrics             *Metrics
	logger              *slog.Logger

	group      singleflight.Group
	snapshot   atomic.Pointer[Snapshot]
	generation atomic.Int64

	hooksMu sync.RWMutex
	hooks   []RefreshHook
}

// New creates a Service. metrics may be nil.
func New(bounties bounty.Source, chain ChainReader, cfg Config, metrics *Metrics, logger *slog.Logger) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.BackfillConcurrency <= 0 {
		cfg.BackfillConcurrency = DefaultBackfillConcurrency
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Service{
		bounties:            bounties,
		chain:               chain,
		ttl:                 cfg.TTL,
		recentFeedback:      cfg.RecentFeedback,
		backfillConcurrency: cfg.BackfillConcurrency,
		now:                 cfg.Clock,
		metrics:             metrics,
		logger:              logger,
	}
}

// OnRefresh registers a hook fired after each completed refresh.
func (s *Service) OnRefresh(hook RefreshHook) {
	s.hooksMu.Lock()
	s.hooks = append(s.hooks, hook)
	s.hooksMu.Unlock()
}

// Profiles returns the ranked profile set, refreshing it when stale.
// The only errors are ctx errors from a caller that stopped waiting.
func (s *Service) Profiles(ctx context.Context) ([]model.AgentProfile, error) {
	snap, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Profiles, nil
}

// Snapshot returns the current snapshot, refreshing it when stale.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	return s.current(ctx)
}

// Profile returns the profile for address (case-insensitive) from the
// current set, or ErrNotFound.
func (s *Service) Profile(ctx context.Context, address string) (model.AgentProfile, error) {
	snap, err := s.current(ctx)
	if err != nil {
		return model.AgentProfile{}, err
	}
	i, ok := snap.index[model.NormalizeAddress(address)]
	if !ok {
		return model.AgentProfile{}, fmt.Errorf("%w: %s", ErrNotFound, address)
	}
	return snap.Profiles[i], nil
}

// Reputation reads the live on-chain reputation for address, bypassing the
// cache. It always succeeds.
func (s *Service) Reputation(ctx context.Context, address string) model.OnChainReputation {
	s.metrics.LiveReads.Inc()
	return s.chain.FetchReputation(ctx, address)
}

// Stats summarizes the current snapshot.
func (s *Service) Stats(ctx context.Context, topTags int) (aggregate.Summary, time.Time, error) {
	snap, err := s.current(ctx)
	if err != nil {
		return aggregate.Summary{}, time.Time{}, err
	}
	return aggregate.Summarize(snap.Profiles, topTags), snap.RefreshedAt, nil
}

// Invalidate marks the current snapshot stale; the next read refreshes.
// A refresh already in flight still publishes, but its snapshot is stale.
func (s *Service) Invalidate() {
	s.generation.Add(1)
}

// Peek returns the published snapshot without refreshing, or nil.
func (s *Service) Peek() *Snapshot {
	return s.snapshot.Load()
}

// Fresh reports whether snap can be served without a refresh.
func (s *Service) Fresh(snap *Snapshot) bool {
	return snap != nil &&
		snap.generation == s.generation.Load() &&
		s.now().Sub(snap.RefreshedAt) < s.ttl
}

func (s *Service) current(ctx context.Context) (*Snapshot, error) {
	if snap := s.snapshot.Load(); s.Fresh(snap) {
		s.metrics.Lookups.WithLabelValues("hit").Inc()
		return snap, nil
	}
	s.metrics.Lookups.WithLabelValues("miss").Inc()

	// The refresh runs detached from the caller: singleflight shares it with
	// every waiter, and one waiter giving up must not abort it for the rest.
	detached := context.WithoutCancel(ctx)
	ch := s.group.DoChan("refresh", func() (any, error) {
		return s.refresh(detached), nil
	})
	select {
	case res := <-ch:
		return res.Val.(*Snapshot), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Service) refresh(ctx context.Context) *Snapshot {
	ctx, span := tracer.Start(ctx, "profiles.refresh")
	defer span.End()

	start := s.now()
	generation := s.generation.Load()

	var (
		bounties  []model.Bounty
		bountyErr error
		onChain   map[string]model.OnChainReputation
		g         errgroup.Group
	)
	g.Go(func() error {
		bounties, bountyErr = s.bounties.ListBounties(ctx)
		return nil
	})
	g.Go(func() error {
		onChain = s.chain.EnumerateAgents(ctx)
		return nil
	})
	_ = g.Wait() // goroutines never return errors

	if bountyErr != nil {
		s.logger.Warn("profiles: bounty source unavailable, continuing with on-chain data only", "error", bountyErr)
		s.metrics.SourceFailures.WithLabelValues("bounty").Inc()
		bounties = nil
	}
	if onChain == nil {
		onChain = make(map[string]model.OnChainReputation)
	}
	enumerated := len(onChain)

	bounties = titled(bounties)
	backfilled := s.backfill(ctx, bounties, onChain)

	profiles := aggregate.Aggregate(bounties, onChain, aggregate.Options{RecentFeedback: s.recentFeedback})

	done := s.now()
	snap := &Snapshot{
		Profiles:    profiles,
		RefreshedAt: done,
		index:       make(map[string]int, len(profiles)),
		generation:  generation,
	}
	for i, p := range profiles {
		snap.index[model.NormalizeAddress(p.Address)] = i
	}
	s.snapshot.Store(snap)

	result := RefreshResult{
		Profiles:           len(profiles),
		Bounties:           len(bounties),
		OnChainAgents:      enumerated,
		Backfilled:         backfilled,
		BountySourceFailed: bountyErr != nil,
		Duration:           done.Sub(start),
		RefreshedAt:        done,
	}

	s.metrics.Refreshes.Inc()
	s.metrics.RefreshDuration.Observe(result.Duration.Seconds())
	s.metrics.Profiles.Set(float64(len(profiles)))
	s.metrics.Backfilled.Add(float64(backfilled))
	span.SetAttributes(
		attribute.Int("hyoka.profiles", result.Profiles),
		attribute.Int("hyoka.bounties", result.Bounties),
		attribute.Int("hyoka.onchain_agents", result.OnChainAgents),
		attribute.Int("hyoka.backfilled", result.Backfilled),
	)
	s.logger.Info("profiles: refreshed",
		"profiles", result.Profiles,
		"bounties", result.Bounties,
		"onchain_agents", result.OnChainAgents,
		"backfilled", result.Backfilled,
		"duration_ms", result.Duration.Milliseconds(),
	)

	s.fireHooks(ctx, result)
	return snap
}

// backfill reads reputation for claimants missing from onChain and inserts
// the ones with an on-chain footprint. Returns the number inserted.
func (s *Service) backfill(ctx context.Context, bounties []model.Bounty, onChain map[string]model.OnChainReputation) int {
	seen := make(map[string]bool)
	var missing []string
	for _, b := range bounties {
		claimant := strings.TrimSpace(b.ClaimedBy)
		key := model.NormalizeAddress(claimant)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		if _, ok := onChain[key]; !ok {
			missing = append(missing, claimant)
		}
	}
	if len(missing) == 0 {
		return 0
	}

	var (
		mu       sync.Mutex
		inserted int
		g        errgroup.Group
	)
	g.SetLimit(s.backfillConcurrency)
	for _, addr := range missing {
		g.Go(func() error {
			rep := s.chain.FetchReputation(ctx, addr)
			if !rep.HasFootprint() {
				return nil
			}
			mu.Lock()
			onChain[model.NormalizeAddress(addr)] = rep
			inserted++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return inserted
}

func (s *Service) fireHooks(ctx context.Context, result RefreshResult) {
	s.hooksMu.RLock()
	hooks := make([]RefreshHook, len(s.hooks))
	copy(hooks, s.hooks)
	s.hooksMu.RUnlock()

	for _, hook := range hooks {
		go hook(ctx, result)
	}
}

// titled drops bounties without a title.
func titled(bounties []model.Bounty) []model.Bounty {
	out := make([]model.Bounty, 0, len(bounties))
	for _, b := range bounties {
		if strings.TrimSpace(b.Title) != "" {
			out = append(out, b)
		}
	}
	return out
}
