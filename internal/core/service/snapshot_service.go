package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/invsnap/internal/core/domain"
	"github.com/rl1809/invsnap/internal/port"
)

const (
	DefaultMaxRestarts = 5
	DefaultSettleDelay = 2500 * time.Millisecond
)

var (
	ErrEmptyInventory       = errors.New("inventory is empty")
	ErrInconsistentSnapshot = errors.New("order list kept changing while retrieving the inventory")
	ErrSyncInProgress       = errors.New("snapshot already in progress")
	ErrUnknownMarketplace   = errors.New("unknown marketplace")
)

type Options struct {
	MaxRestarts int
	SettleDelay time.Duration
	// AllowEmpty lists marketplaces whose empty inventory is reported rather
	// than rejected, e.g. a store that is closed on purpose.
	AllowEmpty map[domain.Marketplace]bool
	QueueSize  int
	Logger     *log.Logger

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// SnapshotService takes inventory snapshots that are certified to match the
// order history: the order list is read before and after the inventory and
// the whole fetch restarts when the two disagree.
type SnapshotService struct {
	sources map[domain.Marketplace]port.Source
	lock    port.SyncLock
	cache   port.SummaryCache

	maxRestarts int
	settleDelay time.Duration
	allowEmpty  map[domain.Marketplace]bool
	logger      *log.Logger
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error

	mu            sync.RWMutex
	closed        bool
	snapshotQueue chan domain.Snapshot
}

// NewSnapshotService wires the sources. lock and cache are optional.
func NewSnapshotService(sources []port.Source, lock port.SyncLock, cache port.SummaryCache, opts Options) *SnapshotService {
	s := &SnapshotService{
		sources:     make(map[domain.Marketplace]port.Source, len(sources)),
		lock:        lock,
		cache:       cache,
		maxRestarts: opts.MaxRestarts,
		settleDelay: opts.SettleDelay,
		allowEmpty:  opts.AllowEmpty,
		logger:      opts.Logger,
		now:         opts.Now,
		sleep:       opts.Sleep,
	}
	for _, src := range sources {
		s.sources[src.Marketplace()] = src
	}
	if s.maxRestarts <= 0 {
		s.maxRestarts = DefaultMaxRestarts
	}
	if s.settleDelay <= 0 {
		s.settleDelay = DefaultSettleDelay
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.sleep == nil {
		s.sleep = sleepContext
	}
	if opts.QueueSize > 0 {
		s.snapshotQueue = make(chan domain.Snapshot, opts.QueueSize)
	}
	return s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SnapshotService) source(mp domain.Marketplace) (port.Source, error) {
	src, ok := s.sources[mp]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMarketplace, mp)
	}
	return src, nil
}

// FetchFullState takes one certified snapshot of a marketplace. Nothing
// partial is ever returned: on error the snapshot is nil.
func (s *SnapshotService) FetchFullState(ctx context.Context, mp domain.Marketplace) (*domain.Snapshot, error) {
	src, err := s.source(mp)
	if err != nil {
		return nil, err
	}

	if s.lock != nil {
		ok, err := s.lock.AcquireSyncLock(ctx, mp)
		if err != nil {
			return nil, fmt.Errorf("sync lock: %w", err)
		}
		if !ok {
			return nil, ErrSyncInProgress
		}
		defer func() {
			if err := s.lock.ReleaseSyncLock(context.WithoutCancel(ctx), mp); err != nil {
				s.logger.Printf("WARNING: failed to release %s sync lock: %v", mp, err)
			}
		}()
	}

	snap, err := s.fetchFullState(ctx, src)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetLastSummary(ctx, *snap); err != nil {
			s.logger.Printf("WARNING: failed to record %s order summary: %v", mp, err)
		}
	}
	s.publish(ctx, *snap)
	return snap, nil
}

func (s *SnapshotService) fetchFullState(ctx context.Context, src port.Source) (*domain.Snapshot, error) {
	name := src.Name()
	for attempt := 0; ; attempt++ {
		orders, err := src.FetchOrderSummary(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s order list: %w", name, err)
		}

		synctime := s.now()

		inv, err := src.FetchInventory(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s inventory: %w", name, err)
		}

		viaFallback := false
		if src.FallbackConfigured() && inv.IsEmpty() {
			alt, err := src.FetchFallbackInventory(ctx)
			switch {
			case err != nil:
				s.logger.Printf("WARNING: %s fallback inventory failed: %v", name, err)
			case alt.LiveCount() > 0 && alt.ItemCount > 0:
				inv = alt
				viaFallback = true
				s.logger.Printf("INFO: %s inventory loaded via BrickStore fallback.", name)
			}
		}
		// A configured fallback that still finds nothing looks like data loss;
		// only a store without one may be reported empty.
		if inv.IsEmpty() && (src.FallbackConfigured() || !s.allowEmpty[src.Marketplace()]) {
			return nil, fmt.Errorf("%s: %w", name, ErrEmptyInventory)
		}

		// The order list must not be read back while its top date could still
		// match the current second.
		if elapsed := s.now().Sub(synctime); elapsed < s.settleDelay {
			if err := s.sleep(ctx, s.settleDelay-elapsed); err != nil {
				return nil, err
			}
		}

		check, err := src.FetchOrderSummary(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s order list: %w", name, err)
		}

		if orders.Equal(check) {
			s.logger.Printf("INFO: %s inventory has %d items in %d lots.", name, inv.PartCount, inv.ItemCount)
			if inv.IsEmpty() {
				s.logger.Printf("WARNING: Is your %s store closed? The inventory of a closed store appears totally empty from the API.", name)
			}
			return &domain.Snapshot{
				ID:          uuid.New(),
				Marketplace: src.Marketplace(),
				Inventory:   inv,
				Orders:      check,
				TakenAt:     synctime,
				Attempts:    attempt + 1,
				ViaFallback: viaFallback,
			}, nil
		}

		if attempt >= s.maxRestarts {
			return nil, fmt.Errorf("%s: %w after %d attempts", name, ErrInconsistentSnapshot, attempt+1)
		}

		s.logger.Printf("INFO: An order arrived while we were retrieving the inventory.")
		inv.Empty()
	}
}

func (s *SnapshotService) publish(ctx context.Context, snap domain.Snapshot) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || s.snapshotQueue == nil {
		return
	}
	select {
	case s.snapshotQueue <- snap:
	case <-ctx.Done():
		s.logger.Printf("WARNING: snapshot %s not queued for persistence: %v", snap.ID, ctx.Err())
	}
}

// LastSummary returns the order summary of the last certified snapshot.
func (s *SnapshotService) LastSummary(ctx context.Context, mp domain.Marketplace) (*domain.OrderSummary, error) {
	if _, err := s.source(mp); err != nil {
		return nil, err
	}
	if s.cache == nil {
		return nil, nil
	}
	return s.cache.GetLastSummary(ctx, mp)
}

// GetSnapshotQueue returns the queue certified snapshots are published on,
// nil if the service was built without one.
func (s *SnapshotService) GetSnapshotQueue() <-chan domain.Snapshot {
	return s.snapshotQueue
}

func (s *SnapshotService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.snapshotQueue != nil {
		close(s.snapshotQueue)
	}
}
