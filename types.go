package hyoka

import "time"

// Bounty is the public representation of one bounty record.
// No internal package imports; safe to use from outside the module.
type Bounty struct {
	ID          string
	Title       string
	Description string
	Status      string // completed | claimed | submitted | any other value
	// Reward is the advertised reward as display text. It is carried
	// through unchanged and never counted as earnings.
	Reward    string
	Tags      []string
	ClaimedBy string // claimant wallet address; empty when unclaimed
	CreatedAt time.Time
	// GrossAmount is the paid gross in integer micro-units.
	GrossAmount string
	// GrossReward is the alternate paid gross in integer micro-units,
	// used only when GrossAmount is empty or unparseable.
	GrossReward string
}

// RefreshEvent describes one completed profile refresh.
type RefreshEvent struct {
	Profiles      int
	Bounties      int
	OnChainAgents int
	Backfilled    int
	// BountySourceFailed is true when the refresh ran on on-chain data alone.
	BountySourceFailed bool
	Duration           time.Duration
	RefreshedAt        time.Time
}
