// Package bounty fetches the bounty list from the off-chain bounty tracker.
package bounty

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"

	"github.com/ashita-ai/hyoka/internal/model"
	"github.com/ashita-ai/hyoka/internal/telemetry"
)

// Defaults for Config zero values.
const (
	DefaultTimeout      = 15 * time.Second
	DefaultMaxBodyBytes = 16 << 20 // 16 MiB
)

// Source supplies the full bounty list.
type Source interface {
	ListBounties(ctx context.Context) ([]model.Bounty, error)
}

// Config configures a Client.
type Config struct {
	URL          string        // GET endpoint returning a JSON array of bounties
	Timeout      time.Duration // whole-request deadline
	MaxBodyBytes int64
}

// Client implements Source over HTTP.
type Client struct {
	url          string
	httpClient   *http.Client
	maxBodyBytes int64
	logger       *slog.Logger

	fetchDuration metric.Float64Histogram
}

// NewClient creates a bounty API client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	fetchDur, _ := telemetry.Meter("hyoka/bounty").Float64Histogram("hyoka.bounty.fetch.duration",
		metric.WithDescription("Time to fetch the bounty list (ms)"),
		metric.WithUnit("ms"),
	)
	return &Client{
		url:           cfg.URL,
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		maxBodyBytes:  cfg.MaxBodyBytes,
		logger:        logger,
		fetchDuration: fetchDur,
	}
}

// ListBounties fetches and decodes the bounty list. Entries that fail to
// decode are dropped; a body that is not a JSON array is an error.
func (c *Client) ListBounties(ctx context.Context) (_ []model.Bounty, err error) {
	start := time.Now()
	defer func() {
		if c.fetchDuration == nil {
			return
		}
		result := "ok"
		if err != nil {
			result = "error"
		}
		c.fetchDuration.Record(ctx, float64(time.Since(start).Milliseconds()),
			metric.WithAttributes(attribute.String("result", result)))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("bounty: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bounty: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("bounty: status %d: %s", resp.StatusCode, string(body))
	}

	var raw []json.RawMessage
	if err := json.NewDecoder(io.LimitReader(resp.Body, c.maxBodyBytes)).Decode(&raw); err != nil {
		return nil, fmt.Errorf("bounty: decode response: %w", err)
	}

	bounties := make([]model.Bounty, 0, len(raw))
	dropped := 0
	for _, r := range raw {
		var b model.Bounty
		if err := json.Unmarshal(r, &b); err != nil {
			dropped++
			continue
		}
		bounties = append(bounties, b)
	}
	if dropped > 0 {
		c.logger.Warn("bounty: dropped undecodable entries", "dropped", dropped, "kept", len(bounties))
	}
	return bounties, nil
}
