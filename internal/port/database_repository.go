package port

import (
	"context"

	"github.com/rl1809/invsnap/internal/core/domain"
)

type SnapshotRepository interface {
	// SaveSnapshot persists a certified snapshot with all of its lots
	SaveSnapshot(ctx context.Context, snap domain.Snapshot) error

	// GetLatestSnapshot retrieves the most recent snapshot for a marketplace
	GetLatestSnapshot(ctx context.Context, marketplace domain.Marketplace) (*domain.Snapshot, error)
}
