package model

import (
	"strings"
	"time"
)

// OnChainReputation is the registry's view of a single address.
// A zero score with no feedback is indistinguishable from a registry miss.
type OnChainReputation struct {
	Address         string     `json:"address"`
	ReputationScore uint64     `json:"reputationScore"`
	Feedback        []Feedback `json:"feedback"`
}

// HasFootprint reports whether the registry holds anything for the address.
func (r OnChainReputation) HasFootprint() bool {
	return r.ReputationScore > 0 || len(r.Feedback) > 0
}

// Feedback is one on-chain rating of an agent by another party.
type Feedback struct {
	From      string `json:"from"`
	Score     int8   `json:"score"`
	Comment   string `json:"comment"`
	Timestamp int64  `json:"timestamp"` // unix seconds
}

// AgentProfile is the merged view of one agent, keyed by lower-cased address.
type AgentProfile struct {
	Address           string         `json:"address"`
	OnChainReputation uint64         `json:"onChainReputation"`
	TotalEarnings     float64        `json:"totalEarnings"`
	BountiesClaimed   int            `json:"bountiesClaimed"`
	BountiesCompleted int            `json:"bountiesCompleted"`
	SuccessRate       int            `json:"successRate"`
	Tags              map[string]int `json:"tags"`
	RecentFeedback    []Feedback     `json:"recentFeedback"`
	History           []HistoryEntry `json:"history"`
}

// HistoryEntry is one bounty in an agent's history.
type HistoryEntry struct {
	BountyID string     `json:"bountyId"`
	Title    string     `json:"title"`
	Reward   float64    `json:"reward"`
	Status   string     `json:"status"`
	Date     *time.Time `json:"date"`
}

// NormalizeAddress returns the case-insensitive merge key for an address.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
