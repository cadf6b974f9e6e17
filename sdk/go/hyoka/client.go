package hyoka

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// EventProfilesRefreshed is the SSE event name for RefreshEvent.
const EventProfilesRefreshed = "profiles_refreshed"

// Config holds the settings needed to construct a Client.
type Config struct {
	// BaseURL is the root URL of the Hyoka server (e.g. "http://localhost:8080").
	BaseURL string

	// AdminToken authorizes Refresh. Optional; other calls are unauthenticated.
	AdminToken string

	// HTTPClient is an optional custom HTTP client. If nil, a default client
	// with Timeout is used.
	HTTPClient *http.Client

	// Timeout applies to individual API requests. Defaults to 30 seconds.
	// It does not apply to Subscribe.
	Timeout time.Duration
}

// Client is an HTTP client for the Hyoka API.
// All methods are safe for concurrent use.
type Client struct {
	baseURL    string
	adminToken string
	client     *http.Client
	stream     *http.Client
}

// NewClient creates a Client from the given configuration.
// Returns an error if BaseURL is empty or malformed.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("hyoka: BaseURL is required")
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("hyoka: BaseURL: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	// Streams are long-lived; only the caller's context ends them.
	stream := *httpClient
	stream.Timeout = 0

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		adminToken: cfg.AdminToken,
		client:     httpClient,
		stream:     &stream,
	}, nil
}

// ListAgents returns one page of profiles ranked by on-chain reputation,
// then earnings. Nil opts returns every profile.
func (c *Client) ListAgents(ctx context.Context, opts *ListOptions) (*AgentList, error) {
	params := url.Values{}
	if opts != nil {
		if opts.Limit > 0 {
			params.Set("limit", strconv.Itoa(opts.Limit))
		}
		if opts.Offset > 0 {
			params.Set("offset", strconv.Itoa(opts.Offset))
		}
		if opts.MinReputation > 0 {
			params.Set("min_reputation", strconv.FormatUint(opts.MinReputation, 10))
		}
	}
	path := "/v1/agents"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var resp listEnvelope
	if err := c.do(ctx, http.MethodGet, path, &resp, false); err != nil {
		return nil, err
	}
	return &AgentList{
		Agents:      resp.Data,
		Total:       resp.Total,
		RefreshedAt: resp.RefreshedAt,
	}, nil
}

// GetAgent returns one agent's profile. Lookup is case-insensitive; an
// unknown address is a not-found error (see IsNotFound).
func (c *Client) GetAgent(ctx context.Context, address string) (*AgentProfile, error) {
	var p AgentProfile
	if err := c.get(ctx, "/v1/agents/"+url.PathEscape(address), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetReputation reads an address's reputation live from the registry.
// Unknown addresses return a zero score, not an error.
func (c *Client) GetReputation(ctx context.Context, address string) (*Reputation, error) {
	var r Reputation
	if err := c.get(ctx, "/v1/agents/"+url.PathEscape(address)+"/reputation", &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Stats summarizes the current profile set. topTags <= 0 uses the server default.
func (c *Client) Stats(ctx context.Context, topTags int) (*Stats, error) {
	path := "/v1/stats"
	if topTags > 0 {
		path += "?top_tags=" + strconv.Itoa(topTags)
	}
	var s Stats
	if err := c.get(ctx, path, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Refresh discards the server's cached profiles and waits for a rebuild.
// Requires Config.AdminToken.
func (c *Client) Refresh(ctx context.Context) (*RefreshResult, error) {
	if c.adminToken == "" {
		return nil, fmt.Errorf("hyoka: Refresh requires an AdminToken")
	}
	var envelope apiEnvelope
	if err := c.do(ctx, http.MethodPost, "/v1/refresh", &envelope, true); err != nil {
		return nil, err
	}
	var r RefreshResult
	if err := json.Unmarshal(envelope.Data, &r); err != nil {
		return nil, fmt.Errorf("hyoka: decode refresh: %w", err)
	}
	return &r, nil
}

// Health reports server and cache state. It never triggers a refresh.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.get(ctx, "/health", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Subscribe streams refresh events to fn until ctx is done or the server
// closes the stream. A cancelled ctx returns nil.
func (c *Client) Subscribe(ctx context.Context, fn func(RefreshEvent)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/subscribe", nil)
	if err != nil {
		return fmt.Errorf("hyoka: create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("hyoka: GET /v1/subscribe: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return parseErrorResponse(resp.StatusCode, body)
	}

	err = readEvents(resp.Body, func(event, data string) {
		if event != EventProfilesRefreshed {
			return
		}
		var ev RefreshEvent
		if json.Unmarshal([]byte(data), &ev) == nil {
			fn(ev)
		}
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// readEvents parses a text/event-stream body. Comments (keepalives) and
// events without data are skipped.
func readEvents(r io.Reader, fn func(event, data string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var event string
	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if len(data) > 0 {
				fn(event, strings.Join(data, "\n"))
			}
			event, data = "", nil
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("hyoka: read event stream: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// HTTP transport
// ---------------------------------------------------------------------------

// apiEnvelope is the server's standard response wrapper.
type apiEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// listEnvelope is the server's list response wrapper.
type listEnvelope struct {
	Data        []AgentProfile `json:"data"`
	Total       int            `json:"total"`
	RefreshedAt time.Time      `json:"refreshed_at"`
}

// apiErrorEnvelope is the server's standard error response wrapper.
type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Meta struct {
		RequestID string `json:"request_id"`
	} `json:"meta"`
}

// get fetches path and decodes the data field of the envelope into dest.
func (c *Client) get(ctx context.Context, path string, dest any) error {
	var envelope apiEnvelope
	if err := c.do(ctx, http.MethodGet, path, &envelope, false); err != nil {
		return err
	}
	if envelope.Data == nil {
		return fmt.Errorf("hyoka: GET %s: response has no data", path)
	}
	if err := json.Unmarshal(envelope.Data, dest); err != nil {
		return fmt.Errorf("hyoka: decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, dest any, admin bool) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("hyoka: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if admin {
		req.Header.Set("Authorization", "Bearer "+c.adminToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("hyoka: %s %s: %w", method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("hyoka: read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return parseErrorResponse(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("hyoka: decode response envelope: %w", err)
	}
	return nil
}

func parseErrorResponse(statusCode int, body []byte) *Error {
	apiErr := &Error{StatusCode: statusCode}

	var envelope apiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
		apiErr.RequestID = envelope.Meta.RequestID
	} else {
		apiErr.Code = http.StatusText(statusCode)
		apiErr.Message = string(body)
	}

	return apiErr
}
