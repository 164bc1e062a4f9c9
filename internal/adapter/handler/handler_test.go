package handler

import (
	"context"
	"sync"
	"time"

	"github.com/rl1809/invsnap/internal/core/domain"
	"github.com/rl1809/invsnap/internal/core/service"
	"github.com/rl1809/invsnap/internal/port"
)

// stubSource serves a fixed inventory behind an order list that never moves.
type stubSource struct {
	mp      domain.Marketplace
	orders  domain.OrderSummary
	items   []domain.Item
	fail    error
	entered chan struct{}
	release chan struct{}
}

func (s *stubSource) Name() string                    { return "Stub" }
func (s *stubSource) Marketplace() domain.Marketplace { return s.mp }
func (s *stubSource) FallbackConfigured() bool        { return false }

func (s *stubSource) FetchOrderSummary(ctx context.Context) (domain.OrderSummary, error) {
	return s.orders, nil
}

func (s *stubSource) FetchInventory(ctx context.Context) (*domain.Inventory, error) {
	if s.entered != nil {
		select {
		case s.entered <- struct{}{}:
		default:
		}
	}
	if s.release != nil {
		<-s.release
	}
	if s.fail != nil {
		return nil, s.fail
	}
	inv := domain.NewInventory()
	for _, it := range s.items {
		inv.Add(it)
	}
	return inv, nil
}

func (s *stubSource) FetchFallbackInventory(ctx context.Context) (*domain.Inventory, error) {
	return nil, port.ErrNoFallback
}

// memLock is an in-process SyncLock.
type memLock struct {
	mu   sync.Mutex
	held map[domain.Marketplace]bool
}

func (l *memLock) AcquireSyncLock(ctx context.Context, mp domain.Marketplace) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = make(map[domain.Marketplace]bool)
	}
	if l.held[mp] {
		return false, nil
	}
	l.held[mp] = true
	return true, nil
}

func (l *memLock) ReleaseSyncLock(ctx context.Context, mp domain.Marketplace) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, mp)
	return nil
}

type memCache struct {
	mu   sync.Mutex
	last map[domain.Marketplace]domain.OrderSummary
}

func (c *memCache) SetLastSummary(ctx context.Context, snap domain.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		c.last = make(map[domain.Marketplace]domain.OrderSummary)
	}
	c.last[snap.Marketplace] = snap.Orders
	return nil
}

func (c *memCache) GetLastSummary(ctx context.Context, mp domain.Marketplace) (*domain.OrderSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.last[mp]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func newTestService(sources ...port.Source) *service.SnapshotService {
	return service.NewSnapshotService(sources, &memLock{}, &memCache{}, service.Options{
		Sleep: func(ctx context.Context, d time.Duration) error { return nil },
	})
}

func brickLinkStub() *stubSource {
	return &stubSource{
		mp:     domain.MarketplaceBrickLink,
		orders: domain.OrderSummary{TopDate: 1714638600, TopDateCount: 1, OrderCount: 7},
		items: []domain.Item{
			{ID: "3001", TypeID: 'P', ColorID: 5, Quantity: 12, Price: 0.25, Condition: 'N'},
			{ID: "75192-1", TypeID: 'S', Quantity: 1, Price: 799.99, Condition: 'N'},
		},
	}
}
