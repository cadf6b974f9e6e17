package hyoka

import (
	"context"
	"net/http"
)

// BountySource supplies the bounty list. When provided via WithBountySource
// it replaces the HTTP client. An error marks the source down for one
// refresh; profiles are then built from on-chain data alone.
type BountySource interface {
	ListBounties(ctx context.Context) ([]Bounty, error)
}

// RefreshHook receives async notifications after each completed profile
// refresh. Hooks run in goroutines with a bounded context; failures are
// logged and never affect the refresh.
type RefreshHook interface {
	OnRefresh(ctx context.Context, event RefreshEvent) error
}

// Middleware wraps the root HTTP handler.
// Applied outermost (before routing), so it sees all requests including /health.
type Middleware func(http.Handler) http.Handler
