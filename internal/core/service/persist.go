package service

import (
	"context"
	"log"
	"time"

	"github.com/rl1809/invsnap/internal/core/domain"
	"github.com/rl1809/invsnap/internal/port"
)

const persistTimeout = 30 * time.Second

// PersistSnapshots drains queue into repo until the queue is closed. A
// snapshot that fails to save is logged and dropped; the live result was
// already returned to the caller.
func PersistSnapshots(id int, queue <-chan domain.Snapshot, repo port.SnapshotRepository, logger *log.Logger) {
	if logger == nil {
		logger = log.Default()
	}
	for snap := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)

		if err := repo.SaveSnapshot(ctx, snap); err != nil {
			logger.Printf("worker %d: failed to save snapshot %s: %v", id, snap.ID, err)
		} else {
			logger.Printf("worker %d: saved %s snapshot %s (%d lots)", id, snap.Marketplace, snap.ID, snap.Inventory.ItemCount)
		}

		cancel()
	}
}
