package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ashita-ai/hyoka/internal/model"
	"github.com/ashita-ai/hyoka/internal/service/profiles"
)

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	profiles  *profiles.Service
	broker    *Broker
	logger    *slog.Logger
	startedAt time.Time
	version   string
}

// HandlersDeps holds all dependencies for constructing Handlers.
// Optional (nil-safe): Broker.
type HandlersDeps struct {
	Profiles *profiles.Service
	Broker   *Broker
	Logger   *slog.Logger
	Version  string
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		profiles:  d.Profiles,
		broker:    d.Broker,
		logger:    d.Logger,
		startedAt: time.Now(),
		version:   d.Version,
	}
}

const (
	maxQueryLimit  = 1000
	defaultTopTags = 10
	maxTopTags     = 100
)

// HandleListAgents handles GET /v1/agents.
// Optional query params: limit, offset, min_reputation.
func (h *Handlers) HandleListAgents(w http.ResponseWriter, r *http.Request) {
	minRep, err := queryUint(r, "min_reputation")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	snap, err := h.profiles.Snapshot(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	filtered := snap.Profiles
	if minRep > 0 {
		filtered = make([]model.AgentProfile, 0, len(snap.Profiles))
		for _, p := range snap.Profiles {
			if p.OnChainReputation >= minRep {
				filtered = append(filtered, p)
			}
		}
	}

	total := len(filtered)
	offset := min(queryOffset(r), total)
	limit := queryLimit(r, total)
	end := min(offset+limit, total)

	writeList(w, r, filtered[offset:end], total, snap.RefreshedAt)
}

// HandleGetAgent handles GET /v1/agents/{address}.
func (h *Handlers) HandleGetAgent(w http.ResponseWriter, r *http.Request) {
	address, ok := pathAddress(w, r)
	if !ok {
		return
	}
	p, err := h.profiles.Profile(r.Context(), address)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, p)
}

// HandleGetReputation handles GET /v1/agents/{address}/reputation.
// Reads the registry live; never served from the cache.
func (h *Handlers) HandleGetReputation(w http.ResponseWriter, r *http.Request) {
	address, ok := pathAddress(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, h.profiles.Reputation(r.Context(), address))
}

// HandleStats handles GET /v1/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	topTags := queryInt(r, "top_tags", defaultTopTags)
	topTags = max(1, min(topTags, maxTopTags))

	sum, refreshedAt, err := h.profiles.Stats(r.Context(), topTags)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, model.StatsResponse{
		Agents:            sum.Agents,
		AgentsOnChain:     sum.AgentsOnChain,
		TotalEarnings:     sum.TotalEarnings,
		BountiesClaimed:   sum.BountiesClaimed,
		BountiesCompleted: sum.BountiesCompleted,
		TopTags:           sum.TopTags,
		RefreshedAt:       refreshedAt.UTC(),
	})
}

// HandleRefresh handles POST /v1/refresh: drops the cached snapshot and
// waits for the replacement.
func (h *Handlers) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	h.profiles.Invalidate()
	snap, err := h.profiles.Snapshot(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.logger.Info("profiles refreshed on request", "profiles", len(snap.Profiles),
		"request_id", RequestIDFromContext(r.Context()))
	writeJSON(w, r, http.StatusOK, map[string]any{
		"profiles":     len(snap.Profiles),
		"refreshed_at": snap.RefreshedAt.UTC(),
	})
}

// HandleSubscribe handles GET /v1/subscribe (SSE).
func (h *Handlers) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	if h.broker == nil {
		writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeUnavailable, "event stream not available")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Idle SSE connections would otherwise be cut at WriteTimeout.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	ch := h.broker.Subscribe()
	defer h.broker.Unsubscribe(ch)

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			if _, err := w.Write([]byte(":keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case event, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(event); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// HandleHealth handles GET /health. It reports cache state without
// triggering a refresh.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := model.HealthResponse{
		Status:      "healthy",
		Version:     h.version,
		CacheStatus: "empty",
		Uptime:      int64(time.Since(h.startedAt).Seconds()),
	}

	if snap := h.profiles.Peek(); snap != nil {
		resp.Profiles = len(snap.Profiles)
		resp.CacheAgeSeconds = time.Since(snap.RefreshedAt).Seconds()
		if h.profiles.Fresh(snap) {
			resp.CacheStatus = "fresh"
		} else {
			resp.CacheStatus = "stale"
		}
	}

	if h.broker != nil {
		resp.SSEBroker = "running"
	}

	writeJSON(w, r, http.StatusOK, resp)
}

// writeServiceError maps service errors to HTTP responses.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, profiles.ErrNotFound):
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "agent not found")
	case r.Context().Err() != nil:
		// Client went away.
		writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeUnavailable, "request cancelled")
	default:
		h.logger.Error("unexpected service error", "error", err,
			"request_id", RequestIDFromContext(r.Context()))
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "internal error")
	}
}

// --- Shared helpers ---

// pathAddress returns the trimmed {address} path value, writing a 400 when
// it is blank. Any other form is looked up as given: claimants from the
// bounty source need not be canonical hex.
func pathAddress(w http.ResponseWriter, r *http.Request) (string, bool) {
	address := strings.TrimSpace(r.PathValue("address"))
	if address == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "address is required")
		return "", false
	}
	return address, true
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func queryUint(r *http.Request, key string) (uint64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, errors.New(key + " must be a non-negative integer")
	}
	return n, nil
}

// queryOffset returns a non-negative offset from query params.
func queryOffset(r *http.Request) int {
	return max(0, queryInt(r, "offset", 0))
}

// queryLimit returns a limit clamped to [1, maxQueryLimit]; absent means defaultVal.
func queryLimit(r *http.Request, defaultVal int) int {
	if r.URL.Query().Get("limit") == "" {
		return defaultVal
	}
	return max(1, min(queryInt(r, "limit", defaultVal), maxQueryLimit))
}
