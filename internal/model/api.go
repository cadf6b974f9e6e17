package model

import "time"

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// ListResponse is the standard envelope for list endpoints.
type ListResponse struct {
	Data        any          `json:"data"`
	Total       int          `json:"total"`
	RefreshedAt time.Time    `json:"refreshed_at"`
	Meta        ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeRateLimited   = "RATE_LIMITED"
	ErrCodeUnavailable   = "UNAVAILABLE"
)

// StatsResponse is the response for GET /v1/stats.
type StatsResponse struct {
	Agents            int       `json:"agents"`
	AgentsOnChain     int       `json:"agents_on_chain"`
	TotalEarnings     float64   `json:"total_earnings"`
	BountiesClaimed   int       `json:"bounties_claimed"`
	BountiesCompleted int       `json:"bounties_completed"`
	TopTags           []TagStat `json:"top_tags"`
	RefreshedAt       time.Time `json:"refreshed_at"`
}

// TagStat is a tag with its occurrence count across all profiles.
type TagStat struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status          string  `json:"status"`
	Version         string  `json:"version"`
	CacheStatus     string  `json:"cache_status"` // "empty", "fresh", "stale"
	CacheAgeSeconds float64 `json:"cache_age_seconds"`
	Profiles        int     `json:"profiles"`
	SSEBroker       string  `json:"sse_broker,omitempty"`
	Uptime          int64   `json:"uptime_seconds"`
}
