package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/hyoka/internal/ratelimit"
	"github.com/ashita-ai/hyoka/internal/service/profiles"
)

// Server is the Hyoka HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a Server.
// Optional fields (nil-safe): Limiter, Broker, MCPServer, Metrics.
type ServerConfig struct {
	// Required dependencies.
	Profiles *profiles.Service
	Logger   *slog.Logger

	// Optional dependencies (nil = disabled).
	Limiter   ratelimit.Limiter
	Broker    *Broker
	MCPServer *mcpserver.MCPServer
	Metrics   http.Handler // Prometheus exposition

	// OpenAPISpec is served at GET /openapi.yaml when non-empty.
	OpenAPISpec []byte

	// Middlewares wrap the whole handler, first registered outermost.
	Middlewares []func(http.Handler) http.Handler

	// RetryAfter is advertised to rate-limited clients.
	RetryAfter time.Duration
	// AdminToken guards POST /v1/refresh; empty disables it.
	AdminToken string

	// HTTP server settings.
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Version      string
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		Profiles: cfg.Profiles,
		Broker:   cfg.Broker,
		Logger:   cfg.Logger,
		Version:  cfg.Version,
	})

	// Live reads hit the chain on every request; limit them per client IP.
	liveRL := ratelimit.Middleware(ratelimit.MiddlewareConfig{
		Limiter:    cfg.Limiter,
		KeyFunc:    ratelimit.IPKeyFunc,
		RetryAfter: cfg.RetryAfter,
		RequestID: func(r *http.Request) string {
			return RequestIDFromContext(r.Context())
		},
		Logger: cfg.Logger,
	})

	mux := http.NewServeMux()

	// Cached profile reads.
	mux.HandleFunc("GET /v1/agents", h.HandleListAgents)
	mux.HandleFunc("GET /v1/agents/{address}", h.HandleGetAgent)
	mux.HandleFunc("GET /v1/stats", h.HandleStats)

	// Live chain read (rate limited).
	mux.Handle("GET /v1/agents/{address}/reputation", liveRL(http.HandlerFunc(h.HandleGetReputation)))

	// Admin.
	mux.Handle("POST /v1/refresh", requireAdminToken(cfg.AdminToken, http.HandlerFunc(h.HandleRefresh)))

	// Subscription endpoint (no rate limit, long-lived connection).
	mux.HandleFunc("GET /v1/subscribe", h.HandleSubscribe)

	// MCP StreamableHTTP transport.
	if cfg.MCPServer != nil {
		mux.Handle("/mcp", mcpserver.NewStreamableHTTPServer(cfg.MCPServer))
	}

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	mux.HandleFunc("GET /health", h.HandleHealth)

	if len(cfg.OpenAPISpec) > 0 {
		spec := cfg.OpenAPISpec
		mux.HandleFunc("GET /openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/yaml")
			_, _ = w.Write(spec)
		})
	}

	// Middleware chain (outermost executes first):
	// request ID → security headers → tracing → logging → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(newHTTPInstruments(), handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)
	for i := len(cfg.Middlewares) - 1; i >= 0; i-- {
		handler = cfg.Middlewares[i](handler)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      cfg.WriteTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   cfg.Logger,
	}
}

// Handlers returns the underlying Handlers.
func (s *Server) Handlers() *Handlers {
	return s.handlers
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
