package hyoka

import (
	"log/slog"

	"github.com/ashita-ai/hyoka/internal/config"
)

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
type resolvedOptions struct {
	port         int
	config       *config.Config
	logger       *slog.Logger
	version      string
	bountySource BountySource
	refreshHooks []RefreshHook
	middlewares  []Middleware
	skipWarmup   bool
}

// WithPort overrides the TCP port from config (HYOKA_PORT env var).
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in the health endpoint and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithBountySource replaces the HTTP bounty client. HYOKA_BOUNTY_URL is
// still validated but unused.
func WithBountySource(src BountySource) Option {
	return func(o *resolvedOptions) { o.bountySource = src }
}

// WithRefreshHook registers a hook notified after every profile refresh.
// Multiple hooks may be registered; all of them receive every event.
func WithRefreshHook(hook RefreshHook) Option {
	return func(o *resolvedOptions) { o.refreshHooks = append(o.refreshHooks, hook) }
}

// WithMiddleware registers an outermost HTTP middleware. The first-registered
// middleware is called first by every request.
func WithMiddleware(mw Middleware) Option {
	return func(o *resolvedOptions) { o.middlewares = append(o.middlewares, mw) }
}

// WithoutWarmup skips building the first snapshot when Run starts.
func WithoutWarmup() Option {
	return func(o *resolvedOptions) { o.skipWarmup = true }
}

func withConfig(cfg config.Config) Option {
	return func(o *resolvedOptions) { o.config = &cfg }
}
