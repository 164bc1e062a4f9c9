package port

import (
	"context"
	"errors"

	"github.com/rl1809/invsnap/internal/core/domain"
)

var (
	// ErrFetchFailed is returned once a fetch has exhausted its tracker's failure budget.
	ErrFetchFailed = errors.New("fetch failed")
	ErrNoFallback  = errors.New("no fallback source configured")
)

// Source is the per-marketplace half of the snapshot protocol.
type Source interface {
	Name() string
	Marketplace() domain.Marketplace

	// FetchOrderSummary fetches the order list and reduces it to its fingerprint
	FetchOrderSummary(ctx context.Context) (domain.OrderSummary, error)

	// FetchInventory fetches the full inventory from the primary API
	FetchInventory(ctx context.Context) (*domain.Inventory, error)

	// FallbackConfigured reports whether a secondary authenticated source is available
	FallbackConfigured() bool

	// FetchFallbackInventory fetches the inventory via the secondary source
	FetchFallbackInventory(ctx context.Context) (*domain.Inventory, error)
}
