// Package hyoka is the public API for embedding the Hyoka reputation server.
//
// Consumers import this package to construct and extend the server without
// forking it:
//
//	app, err := hyoka.New(ctx,
//	    hyoka.WithVersion(version),
//	    hyoka.WithLogger(logger),
//	    hyoka.WithRefreshHook(myHook{}),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// The root package imports internal/*, never the reverse. Public types are
// standalone structs; the conversions between them and internal/model live
// in this file because it is the only one that sees both sides.
package hyoka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashita-ai/hyoka/api"
	"github.com/ashita-ai/hyoka/internal/bounty"
	"github.com/ashita-ai/hyoka/internal/chain"
	"github.com/ashita-ai/hyoka/internal/config"
	"github.com/ashita-ai/hyoka/internal/mcp"
	"github.com/ashita-ai/hyoka/internal/model"
	"github.com/ashita-ai/hyoka/internal/ratelimit"
	"github.com/ashita-ai/hyoka/internal/server"
	"github.com/ashita-ai/hyoka/internal/service/profiles"
	"github.com/ashita-ai/hyoka/internal/telemetry"
)

const (
	shutdownTimeout = 15 * time.Second
	hookTimeout     = 10 * time.Second
)

// App is the Hyoka server lifecycle. Construct with New, run with Run.
type App struct {
	cfg          config.Config
	srv          *server.Server
	profiles     *profiles.Service
	registry     *chain.ContractRegistry
	limiter      ratelimit.Limiter
	broker       *server.Broker
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
	version      string
	warm         bool
}

// New loads configuration, dials the registry and wires all subsystems.
// It does not start serving; call Run.
func New(ctx context.Context, opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	cfg := o.config
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = &loaded
	}
	if o.port != 0 {
		cfg.Port = o.port
	}

	logger.Info("hyoka starting", "version", version, "port", cfg.Port)

	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	registry, err := chain.Dial(ctx, cfg.RPCURL, cfg.RegistryAddress)
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("chain: %w", err)
	}
	logger.Info("registry connected", "address", registry.Address().Hex())

	reader := chain.NewReader(registry, chain.ReaderConfig{
		MaxAgents:   cfg.MaxEnumeratedAgents,
		CallTimeout: cfg.ChainCallTimeout,
	}, logger)

	var source bounty.Source
	if o.bountySource != nil {
		source = &bountySourceAdapter{src: o.bountySource}
		logger.Info("bounty source: external")
	} else {
		source = bounty.NewClient(bounty.Config{
			URL:     cfg.BountyURL,
			Timeout: cfg.BountyTimeout,
		}, logger)
	}

	reg := telemetry.NewRegistry()
	svc := profiles.New(source, reader, profiles.Config{
		TTL:                 cfg.CacheTTL,
		RecentFeedback:      cfg.RecentFeedback,
		BackfillConcurrency: cfg.BackfillConcurrency,
	}, profiles.NewMetrics(reg), logger)

	broker := server.NewBroker(logger)
	svc.OnRefresh(broker.OnRefresh)
	for _, h := range o.refreshHooks {
		svc.OnRefresh(refreshHookAdapter(h, logger))
	}

	limiter, err := newLimiter(ctx, *cfg, logger)
	if err != nil {
		registry.Close()
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	mcpSrv := mcp.New(svc, logger, version)

	var middlewares []func(http.Handler) http.Handler
	for _, mw := range o.middlewares {
		middlewares = append(middlewares, mw)
	}

	srv := server.New(server.ServerConfig{
		Profiles:     svc,
		Logger:       logger,
		Limiter:      limiter,
		Broker:       broker,
		MCPServer:    mcpSrv.MCPServer(),
		Metrics:      telemetry.MetricsHandler(reg),
		OpenAPISpec:  api.OpenAPISpec,
		Middlewares:  middlewares,
		RetryAfter:   retryAfter(*cfg),
		AdminToken:   cfg.AdminToken,
		Port:         cfg.Port,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Version:      version,
	})

	if cfg.AdminToken == "" {
		logger.Info("admin refresh: disabled (no HYOKA_ADMIN_TOKEN)")
	}

	return &App{
		cfg:          *cfg,
		srv:          srv,
		profiles:     svc,
		registry:     registry,
		limiter:      limiter,
		broker:       broker,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
		warm:         !o.skipWarmup,
	}, nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.srv.Handler()
}

// Run serves HTTP until ctx is cancelled or the server fails, then shuts
// down. Callers should not call Shutdown separately.
func (a *App) Run(ctx context.Context) error {
	if a.warm {
		go a.warmCache(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Join(runErr, a.Shutdown(shutdownCtx))
}

// Shutdown drains HTTP, closes SSE subscribers, and releases the limiter,
// the RPC connection and the OTEL exporters.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("hyoka shutting down")

	var errs []error
	// Subscribers first, or their streams hold the HTTP drain open.
	a.broker.Close()
	if err := a.srv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := a.limiter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("rate limiter: %w", err))
	}
	a.registry.Close()
	if err := a.otelShutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}
	return errors.Join(errs...)
}

// warmCache builds the first snapshot so the first request does not pay for it.
func (a *App) warmCache(ctx context.Context) {
	snap, err := a.profiles.Snapshot(ctx)
	if err != nil {
		a.logger.Debug("cache warmup abandoned", "error", err)
		return
	}
	a.logger.Info("cache warmed", "profiles", len(snap.Profiles))
}

func newLimiter(ctx context.Context, cfg config.Config, logger *slog.Logger) (ratelimit.Limiter, error) {
	switch {
	case !cfg.RateLimitEnabled:
		logger.Info("rate limiting: disabled")
		return ratelimit.NoopLimiter{}, nil
	case cfg.RedisURL != "":
		l, err := ratelimit.DialRedis(ctx, cfg.RedisURL, cfg.RateLimitRPS, cfg.RateLimitBurst)
		if err != nil {
			return nil, err
		}
		logger.Info("rate limiting: redis (shared fixed window)",
			"rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst, "window", l.Window())
		return l, nil
	default:
		logger.Info("rate limiting: memory (in-process token bucket)",
			"rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
		return ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst), nil
	}
}

// retryAfter is the time for one token to refill, at least a second.
func retryAfter(cfg config.Config) time.Duration {
	if cfg.RateLimitRPS <= 0 {
		return time.Second
	}
	return max(time.Second, time.Duration(float64(time.Second)/cfg.RateLimitRPS))
}

// ── Adapters (defined here because this file imports both sides) ───────────────

// bountySourceAdapter wraps a hyoka.BountySource to satisfy bounty.Source.
type bountySourceAdapter struct {
	src BountySource
}

func (a *bountySourceAdapter) ListBounties(ctx context.Context) ([]model.Bounty, error) {
	pub, err := a.src.ListBounties(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Bounty, len(pub))
	for i, b := range pub {
		out[i] = toModelBounty(b)
	}
	return out, nil
}

func toModelBounty(b Bounty) model.Bounty {
	mb := model.Bounty{
		ID:          model.FlexString(b.ID),
		Title:       b.Title,
		Description: b.Description,
		Status:      b.Status,
		RewardRaw:   model.FlexString(b.Reward),
		Tags:        model.Tags(b.Tags),
		ClaimedBy:   b.ClaimedBy,
		CreatedAt:   model.FlexTime{Time: b.CreatedAt},
	}
	if b.GrossAmount != "" || b.GrossReward != "" {
		mb.Payment = &model.Payment{
			GrossAmount: model.FlexString(strings.TrimSpace(b.GrossAmount)),
			GrossReward: model.FlexString(strings.TrimSpace(b.GrossReward)),
		}
	}
	return mb
}

func toPublicRefresh(r profiles.RefreshResult) RefreshEvent {
	return RefreshEvent{
		Profiles:           r.Profiles,
		Bounties:           r.Bounties,
		OnChainAgents:      r.OnChainAgents,
		Backfilled:         r.Backfilled,
		BountySourceFailed: r.BountySourceFailed,
		Duration:           r.Duration,
		RefreshedAt:        r.RefreshedAt,
	}
}

// refreshHookAdapter bounds a public hook and logs its failure.
func refreshHookAdapter(h RefreshHook, logger *slog.Logger) profiles.RefreshHook {
	return func(ctx context.Context, r profiles.RefreshResult) {
		hookCtx, cancel := context.WithTimeout(ctx, hookTimeout)
		defer cancel()
		if err := h.OnRefresh(hookCtx, toPublicRefresh(r)); err != nil {
			logger.Warn("refresh hook failed", "error", err)
		}
	}
}
