package port

import (
	"context"

	"github.com/rl1809/invsnap/internal/core/domain"
)

type SyncLock interface {
	// AcquireSyncLock claims the snapshot slot for a marketplace, returns false if already held
	AcquireSyncLock(ctx context.Context, marketplace domain.Marketplace) (bool, error)

	// ReleaseSyncLock frees a slot previously acquired by this process
	ReleaseSyncLock(ctx context.Context, marketplace domain.Marketplace) error
}

type SummaryCache interface {
	// SetLastSummary records the order summary of the latest certified snapshot
	SetLastSummary(ctx context.Context, snap domain.Snapshot) error

	// GetLastSummary returns the last certified summary, nil if none was recorded
	GetLastSummary(ctx context.Context, marketplace domain.Marketplace) (*domain.OrderSummary, error)
}
