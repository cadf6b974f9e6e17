package hyoka

import "time"

// AgentProfile is the merged view of one agent.
type AgentProfile struct {
	Address           string         `json:"address"`
	OnChainReputation uint64         `json:"onChainReputation"`
	TotalEarnings     float64        `json:"totalEarnings"`
	BountiesClaimed   int            `json:"bountiesClaimed"`
	BountiesCompleted int            `json:"bountiesCompleted"`
	SuccessRate       int            `json:"successRate"` // percent, 0-100
	Tags              map[string]int `json:"tags"`
	RecentFeedback    []Feedback     `json:"recentFeedback"`
	History           []HistoryEntry `json:"history"`
}

// Feedback is one on-chain rating of an agent.
type Feedback struct {
	From      string `json:"from"`
	Score     int8   `json:"score"`
	Comment   string `json:"comment"`
	Timestamp int64  `json:"timestamp"` // unix seconds
}

// HistoryEntry is one bounty in an agent's history.
type HistoryEntry struct {
	BountyID string     `json:"bountyId"`
	Title    string     `json:"title"`
	Reward   float64    `json:"reward"`
	Status   string     `json:"status"`
	Date     *time.Time `json:"date"`
}

// Reputation is the registry's live view of an address.
type Reputation struct {
	Address         string     `json:"address"`
	ReputationScore uint64     `json:"reputationScore"`
	Feedback        []Feedback `json:"feedback"`
}

// ListOptions filters and pages ListAgents. Zero values are omitted.
type ListOptions struct {
	Limit         int
	Offset        int
	MinReputation uint64
}

// AgentList is one page of ranked profiles.
type AgentList struct {
	Agents      []AgentProfile
	Total       int       // matches before paging
	RefreshedAt time.Time // when the served snapshot was built
}

// Stats summarizes the current profile set.
type Stats struct {
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

// RefreshResult is returned by Refresh.
type RefreshResult struct {
	Profiles    int       `json:"profiles"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// Health is the server's health report.
type Health struct {
	Status          string  `json:"status"`
	Version         string  `json:"version"`
	CacheStatus     string  `json:"cache_status"` // "empty", "fresh", "stale"
	CacheAgeSeconds float64 `json:"cache_age_seconds"`
	Profiles        int     `json:"profiles"`
	SSEBroker       string  `json:"sse_broker,omitempty"`
	Uptime          int64   `json:"uptime_seconds"`
}

// RefreshEvent is pushed to subscribers after every profile refresh.
type RefreshEvent struct {
	Profiles      int       `json:"profiles"`
	Bounties      int       `json:"bounties"`
	OnChainAgents int       `json:"onchain_agents"`
	Backfilled    int       `json:"backfilled"`
	SourceFailed  bool      `json:"bounty_source_failed"`
	DurationMS    int64     `json:"duration_ms"`
	RefreshedAt   time.Time `json:"refreshed_at"`
}
