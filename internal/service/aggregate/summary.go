package aggregate

import (
	"cmp"
	"slices"

	"github.com/ashita-ai/hyoka/internal/model"
)

// Summary holds leaderboard-wide totals over a profile set.
type Summary struct {
	Agents            int
	AgentsOnChain     int // profiles with non-zero on-chain reputation
	TotalEarnings     float64
	BountiesClaimed   int
	BountiesCompleted int
	TopTags           []model.TagStat
}

// Summarize totals profiles. topTags caps the tag list (0 = all tags),
// ordered by count descending then tag name.
func Summarize(profiles []model.AgentProfile, topTags int) Summary {
	s := Summary{Agents: len(profiles)}
	tags := make(map[string]int)
	for _, p := range profiles {
		if p.OnChainReputation > 0 {
			s.AgentsOnChain++
		}
		s.TotalEarnings += p.TotalEarnings
		s.BountiesClaimed += p.BountiesClaimed
		s.BountiesCompleted += p.BountiesCompleted
		for tag, n := range p.Tags {
			tags[tag] += n
		}
	}

	s.TopTags = make([]model.TagStat, 0, len(tags))
	for tag, n := range tags {
		s.TopTags = append(s.TopTags, model.TagStat{Tag: tag, Count: n})
	}
	slices.SortFunc(s.TopTags, func(a, b model.TagStat) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Tag, b.Tag)
	})
	if topTags > 0 && len(s.TopTags) > topTags {
		s.TopTags = s.TopTags[:topTags]
	}
	return s
}
