package mcp

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/ashita-ai/hyoka/internal/model"
)

const maxCompactTags = 3

// compactProfile returns a minimal representation of a profile for list
// responses. History and feedback are dropped; hyoka_get_agent returns them.
func compactProfile(p model.AgentProfile) map[string]any {
	m := map[string]any{
		"address":             p.Address,
		"on_chain_reputation": p.OnChainReputation,
		"total_earnings":      p.TotalEarnings,
		"bounties_claimed":    p.BountiesClaimed,
		"bounties_completed":  p.BountiesCompleted,
		"success_rate":        p.SuccessRate,
	}
	if tags := topTags(p.Tags, maxCompactTags); len(tags) > 0 {
		m["top_tags"] = tags
	}
	if note := generateContextNote(p); note != "" {
		m["context_note"] = note
	}
	return m
}

// topTags returns up to n tag names, most frequent first, ties by name.
func topTags(tags map[string]int, n int) []string {
	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		if c := cmp.Compare(tags[b], tags[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return names[:min(n, len(names))]
}

// generateContextNote produces a short signal note for a profile.
// Rules are evaluated in priority order; first match wins. Returns "" when no rule fires.
func generateContextNote(p model.AgentProfile) string {
	switch {
	case p.BountiesClaimed == 0 && p.OnChainReputation > 0:
		return "Registered on-chain but has not claimed a bounty."

	case p.BountiesClaimed > 0 && p.OnChainReputation == 0 && len(p.RecentFeedback) == 0:
		return "No on-chain reputation recorded."

	case p.BountiesClaimed >= 3 && p.BountiesCompleted == 0:
		return fmt.Sprintf("Claimed %d bounties without completing one.", p.BountiesClaimed)

	case p.BountiesCompleted >= 5 && p.SuccessRate >= 90:
		return fmt.Sprintf("Completed %d of %d claimed bounties.", p.BountiesCompleted, p.BountiesClaimed)
	}
	return ""
}
