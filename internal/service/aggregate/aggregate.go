// Package aggregate merges bounty history with on-chain reputation into
// ranked agent profiles. Everything here is pure: identical inputs always
// produce identical output, and malformed input degrades to defaults.
package aggregate

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"github.com/ashita-ai/hyoka/internal/model"
)

const (
	// DefaultRecentFeedback is how many trailing feedback entries a profile keeps.
	DefaultRecentFeedback = 10

	// MicroUnitsPerUnit converts integer payment amounts to currency units.
	MicroUnitsPerUnit = 1_000_000

	// UntitledBounty replaces a missing bounty title in history entries.
	UntitledBounty = "Untitled"
)

// Options tunes aggregation. Zero values select defaults.
type Options struct {
	RecentFeedback int
}

// Aggregate builds one profile per claimant in bounties and per address in
// onChain, sorted by on-chain reputation then earnings, both descending.
// onChain keys are matched case-insensitively.
func Aggregate(bounties []model.Bounty, onChain map[string]model.OnChainReputation, opts Options) []model.AgentProfile {
	if opts.RecentFeedback <= 0 {
		opts.RecentFeedback = DefaultRecentFeedback
	}

	// Sorted keys make insertion order, and therefore tie order, deterministic.
	chainKeys := make([]string, 0, len(onChain))
	for k := range onChain {
		chainKeys = append(chainKeys, k)
	}
	slices.Sort(chainKeys)
	reputations := make(map[string]model.OnChainReputation, len(onChain))
	for _, k := range chainKeys {
		key := model.NormalizeAddress(k)
		if _, dup := reputations[key]; dup {
			continue
		}
		reputations[key] = onChain[k]
	}

	index := make(map[string]int)
	var profiles []*model.AgentProfile

	for _, b := range bounties {
		claimant := strings.TrimSpace(b.ClaimedBy)
		if claimant == "" {
			continue
		}
		key := model.NormalizeAddress(claimant)
		i, ok := index[key]
		if !ok {
			rep, hasRep := reputations[key]
			p := newProfile(claimant, rep, hasRep, opts.RecentFeedback)
			i = len(profiles)
			index[key] = i
			profiles = append(profiles, p)
		}
		addBounty(profiles[i], b)
	}

	for _, k := range chainKeys {
		key := model.NormalizeAddress(k)
		if _, ok := index[key]; ok {
			continue
		}
		rep := reputations[key]
		addr := rep.Address
		if strings.TrimSpace(addr) == "" {
			addr = key
		}
		index[key] = len(profiles)
		profiles = append(profiles, newProfile(addr, rep, true, opts.RecentFeedback))
	}

	out := make([]model.AgentProfile, 0, len(profiles))
	for _, p := range profiles {
		p.SuccessRate = SuccessRate(p.BountiesCompleted, p.BountiesClaimed)
		out = append(out, *p)
	}

	slices.SortStableFunc(out, func(a, b model.AgentProfile) int {
		if c := cmp.Compare(b.OnChainReputation, a.OnChainReputation); c != 0 {
			return c
		}
		return cmp.Compare(b.TotalEarnings, a.TotalEarnings)
	})
	return out
}

func newProfile(address string, rep model.OnChainReputation, hasRep bool, recent int) *model.AgentProfile {
	p := &model.AgentProfile{
		Address:        address,
		Tags:           make(map[string]int),
		RecentFeedback: []model.Feedback{},
		History:        []model.HistoryEntry{},
	}
	if hasRep {
		p.OnChainReputation = rep.ReputationScore
		p.RecentFeedback = lastFeedback(rep.Feedback, recent)
	}
	return p
}

func addBounty(p *model.AgentProfile, b model.Bounty) {
	reward := RewardOf(b)

	p.BountiesClaimed++
	if b.Status == model.StatusCompleted {
		p.BountiesCompleted++
		p.TotalEarnings += reward
	}
	// Tags are a set: a tag repeated on one bounty counts once.
	seen := make(map[string]bool, len(b.Tags))
	for _, tag := range b.Tags {
		if seen[tag] {
			continue
		}
		seen[tag] = true
		p.Tags[tag]++
	}

	title := strings.TrimSpace(b.Title)
	if title == "" {
		title = UntitledBounty
	}
	p.History = append(p.History, model.HistoryEntry{
		BountyID: string(b.ID),
		Title:    title,
		Reward:   reward,
		Status:   b.Status,
		Date:     b.CreatedAt.Ptr(),
	})
}

// RewardOf returns the net reward of a completed bounty in currency units:
// payment.grossAmount, else payment.grossReward, divided by MicroUnitsPerUnit.
// Bounties that are not completed or carry no parseable amount earn 0.
func RewardOf(b model.Bounty) float64 {
	if b.Status != model.StatusCompleted || b.Payment == nil {
		return 0
	}
	if v, ok := b.Payment.GrossAmount.Float(); ok {
		return v / MicroUnitsPerUnit
	}
	if v, ok := b.Payment.GrossReward.Float(); ok {
		return v / MicroUnitsPerUnit
	}
	return 0
}

// SuccessRate returns round(100 * completed / claimed), or 0 when nothing
// was claimed.
func SuccessRate(completed, claimed int) int {
	if claimed <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(completed) / float64(claimed)))
}

func lastFeedback(feedback []model.Feedback, n int) []model.Feedback {
	if len(feedback) > n {
		feedback = feedback[len(feedback)-n:]
	}
	out := make([]model.Feedback, len(feedback))
	copy(out, feedback)
	return out
}
