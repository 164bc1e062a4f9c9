package service

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rl1809/invsnap/internal/core/domain"
	"github.com/rl1809/invsnap/internal/port"
)

// Mock Source
type mockSource struct {
	mp                 domain.Marketplace
	summaries          []domain.OrderSummary
	inventory          func() *domain.Inventory
	inventoryErr       error
	fallbackConfigured bool
	fallback           func() *domain.Inventory
	fallbackErr        error

	mu             sync.Mutex
	summaryCalls   int
	inventoryCalls int
	fallbackCalls  int
}

func (m *mockSource) Name() string                    { return "Mock" }
func (m *mockSource) Marketplace() domain.Marketplace { return m.mp }
func (m *mockSource) FallbackConfigured() bool        { return m.fallbackConfigured }

func (m *mockSource) FetchOrderSummary(ctx context.Context) (domain.OrderSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.summaryCalls
	m.summaryCalls++
	if i >= len(m.summaries) {
		i = len(m.summaries) - 1
	}
	return m.summaries[i], nil
}

func (m *mockSource) FetchInventory(ctx context.Context) (*domain.Inventory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inventoryCalls++
	if m.inventoryErr != nil {
		return nil, m.inventoryErr
	}
	return m.inventory(), nil
}

func (m *mockSource) FetchFallbackInventory(ctx context.Context) (*domain.Inventory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbackCalls++
	if m.fallbackErr != nil {
		return nil, m.fallbackErr
	}
	return m.fallback(), nil
}

// Mock SyncLock
type mockLock struct {
	held     bool
	acquired int
	released int
}

func (m *mockLock) AcquireSyncLock(ctx context.Context, mp domain.Marketplace) (bool, error) {
	if m.held {
		return false, nil
	}
	m.held = true
	m.acquired++
	return true, nil
}

func (m *mockLock) ReleaseSyncLock(ctx context.Context, mp domain.Marketplace) error {
	m.held = false
	m.released++
	return nil
}

// Mock SummaryCache
type mockCache struct {
	last map[domain.Marketplace]domain.OrderSummary
}

func (m *mockCache) SetLastSummary(ctx context.Context, snap domain.Snapshot) error {
	if m.last == nil {
		m.last = make(map[domain.Marketplace]domain.OrderSummary)
	}
	m.last[snap.Marketplace] = snap.Orders
	return nil
}

func (m *mockCache) GetLastSummary(ctx context.Context, mp domain.Marketplace) (*domain.OrderSummary, error) {
	s, ok := m.last[mp]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// fakeClock never advances on its own; sleeps are only recorded.
type fakeClock struct {
	now    time.Time
	step   time.Duration
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time {
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	return ctx.Err()
}

func stockedInventory() *domain.Inventory {
	inv := domain.NewInventory()
	inv.Add(domain.Item{ID: "3001", TypeID: 'P', Quantity: 40})
	inv.Add(domain.Item{ID: "3002", TypeID: 'P', Quantity: 2})
	return inv
}

func placeholderInventory() *domain.Inventory {
	inv := domain.NewInventory()
	inv.Add(domain.Item{ID: "3003", TypeID: 'P', Quantity: 0})
	return inv
}

var summaryA = domain.OrderSummary{TopDate: 1700000000, TopDateCount: 1, OrderCount: 10}

func newTestService(src port.Source, opts Options) (*SnapshotService, *fakeClock, *bytes.Buffer) {
	clock := &fakeClock{now: time.Unix(1700000100, 0)}
	var out bytes.Buffer
	opts.Now = clock.Now
	opts.Sleep = clock.Sleep
	opts.Logger = log.New(&out, "", 0)
	return NewSnapshotService([]port.Source{src}, nil, nil, opts), clock, &out
}

func TestFetchFullState_CertifiedFirstTry(t *testing.T) {
	src := &mockSource{mp: domain.MarketplaceBrickLink, summaries: []domain.OrderSummary{summaryA}, inventory: stockedInventory}
	lock := &mockLock{}
	cache := &mockCache{}
	clock := &fakeClock{now: time.Unix(1700000100, 0)}
	var out bytes.Buffer

	svc := NewSnapshotService([]port.Source{src}, lock, cache, Options{
		QueueSize: 1,
		Logger:    log.New(&out, "", 0),
		Now:       clock.Now,
		Sleep:     clock.Sleep,
	})
	defer svc.Close()

	snap, err := svc.FetchFullState(context.Background(), domain.MarketplaceBrickLink)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if snap.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", snap.Attempts)
	}
	if snap.Inventory.ItemCount != 2 || snap.Inventory.PartCount != 42 {
		t.Errorf("unexpected inventory counters: %+v", snap.Inventory)
	}
	if !snap.Orders.Equal(summaryA) {
		t.Errorf("expected orders %+v, got %+v", summaryA, snap.Orders)
	}
	if snap.ViaFallback {
		t.Error("expected primary inventory")
	}
	if len(clock.sleeps) != 1 || clock.sleeps[0] != DefaultSettleDelay {
		t.Errorf("expected one settle sleep of %v, got %v", DefaultSettleDelay, clock.sleeps)
	}
	if lock.acquired != 1 || lock.released != 1 {
		t.Errorf("expected lock acquired and released once, got %d/%d", lock.acquired, lock.released)
	}
	if got, _ := svc.LastSummary(context.Background(), domain.MarketplaceBrickLink); got == nil || !got.Equal(summaryA) {
		t.Errorf("expected cached summary %+v, got %+v", summaryA, got)
	}
	if !strings.Contains(out.String(), "Mock inventory has 42 items in 2 lots.") {
		t.Errorf("missing summary log line, got: %s", out.String())
	}

	queued := <-svc.GetSnapshotQueue()
	if queued.ID != snap.ID {
		t.Errorf("expected snapshot %s on the queue, got %s", snap.ID, queued.ID)
	}
}

func TestFetchFullState_RestartsWhenOrderArrives(t *testing.T) {
	summaryB := domain.OrderSummary{TopDate: summaryA.TopDate + 60, TopDateCount: 1}
	src := &mockSource{
		mp:        domain.MarketplaceBrickLink,
		summaries: []domain.OrderSummary{summaryA, summaryB, summaryB, summaryB},
		inventory: stockedInventory,
	}
	svc, _, out := newTestService(src, Options{})

	snap, err := svc.FetchFullState(context.Background(), domain.MarketplaceBrickLink)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if snap.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", snap.Attempts)
	}
	if src.inventoryCalls != 2 {
		t.Errorf("expected inventory fetched twice, got %d", src.inventoryCalls)
	}
	if !snap.Orders.Equal(summaryB) {
		t.Errorf("expected the second summary, got %+v", snap.Orders)
	}
	if !strings.Contains(out.String(), "An order arrived while we were retrieving the inventory.") {
		t.Errorf("missing restart log line, got: %s", out.String())
	}
}

func TestFetchFullState_GivesUpAfterMaxRestarts(t *testing.T) {
	var summaries []domain.OrderSummary
	for i := 0; i < 20; i++ {
		summaries = append(summaries, domain.OrderSummary{TopDate: int64(1700000000 + i), TopDateCount: 1})
	}
	src := &mockSource{mp: domain.MarketplaceBrickLink, summaries: summaries, inventory: stockedInventory}
	svc, _, _ := newTestService(src, Options{})

	snap, err := svc.FetchFullState(context.Background(), domain.MarketplaceBrickLink)
	if !errors.Is(err, ErrInconsistentSnapshot) {
		t.Fatalf("expected ErrInconsistentSnapshot, got: %v", err)
	}
	if snap != nil {
		t.Error("expected no snapshot")
	}
	if src.inventoryCalls != DefaultMaxRestarts+1 {
		t.Errorf("expected %d attempts, got %d", DefaultMaxRestarts+1, src.inventoryCalls)
	}
}

func TestFetchFullState_UsesFallbackWhenPrimaryEmpty(t *testing.T) {
	src := &mockSource{
		mp:                 domain.MarketplaceBrickLink,
		summaries:          []domain.OrderSummary{summaryA},
		inventory:          domain.NewInventory,
		fallbackConfigured: true,
		fallback:           stockedInventory,
	}
	svc, _, _ := newTestService(src, Options{})

	snap, err := svc.FetchFullState(context.Background(), domain.MarketplaceBrickLink)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if !snap.ViaFallback {
		t.Error("expected fallback inventory")
	}
	if snap.Inventory.ItemCount != 2 {
		t.Errorf("expected 2 lots, got %d", snap.Inventory.ItemCount)
	}
}

func TestFetchFullState_PlaceholdersOnlyTriggersFallback(t *testing.T) {
	src := &mockSource{
		mp:                 domain.MarketplaceBrickLink,
		summaries:          []domain.OrderSummary{summaryA},
		inventory:          placeholderInventory,
		fallbackConfigured: true,
		fallback:           stockedInventory,
	}
	svc, _, _ := newTestService(src, Options{})

	snap, err := svc.FetchFullState(context.Background(), domain.MarketplaceBrickLink)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if src.fallbackCalls != 1 || !snap.ViaFallback {
		t.Errorf("expected fallback to replace a placeholder-only inventory, calls=%d", src.fallbackCalls)
	}
}

func TestFetchFullState_SkipsFallbackWhenPrimaryStocked(t *testing.T) {
	src := &mockSource{
		mp:                 domain.MarketplaceBrickLink,
		summaries:          []domain.OrderSummary{summaryA},
		inventory:          stockedInventory,
		fallbackConfigured: true,
		fallback:           stockedInventory,
	}
	svc, _, _ := newTestService(src, Options{})

	if _, err := svc.FetchFullState(context.Background(), domain.MarketplaceBrickLink); err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if src.fallbackCalls != 0 {
		t.Errorf("expected no fallback call, got %d", src.fallbackCalls)
	}
}

func TestFetchFullState_EmptyWithoutFallbackFails(t *testing.T) {
	src := &mockSource{mp: domain.MarketplaceBrickOwl, summaries: []domain.OrderSummary{summaryA}, inventory: domain.NewInventory}
	svc, _, _ := newTestService(src, Options{})

	snap, err := svc.FetchFullState(context.Background(), domain.MarketplaceBrickOwl)
	if !errors.Is(err, ErrEmptyInventory) {
		t.Fatalf("expected ErrEmptyInventory, got: %v", err)
	}
	if snap != nil {
		t.Error("expected no snapshot")
	}
	if src.fallbackCalls != 0 {
		t.Errorf("expected no fallback call, got %d", src.fallbackCalls)
	}
}

func TestFetchFullState_EmptyFallbackFails(t *testing.T) {
	src := &mockSource{
		mp:                 domain.MarketplaceBrickLink,
		summaries:          []domain.OrderSummary{summaryA},
		inventory:          domain.NewInventory,
		fallbackConfigured: true,
		fallback:           placeholderInventory,
	}
	svc, _, _ := newTestService(src, Options{})

	_, err := svc.FetchFullState(context.Background(), domain.MarketplaceBrickLink)
	if !errors.Is(err, ErrEmptyInventory) {
		t.Fatalf("expected ErrEmptyInventory, got: %v", err)
	}
	if src.fallbackCalls != 1 {
		t.Errorf("expected one fallback call, got %d", src.fallbackCalls)
	}
}

func TestFetchFullState_FallbackErrorFails(t *testing.T) {
	src := &mockSource{
		mp:                 domain.MarketplaceBrickLink,
		summaries:          []domain.OrderSummary{summaryA},
		inventory:          domain.NewInventory,
		fallbackConfigured: true,
		fallbackErr:        errors.New("authentication failed"),
	}
	svc, _, out := newTestService(src, Options{})

	_, err := svc.FetchFullState(context.Background(), domain.MarketplaceBrickLink)
	if !errors.Is(err, ErrEmptyInventory) {
		t.Fatalf("expected ErrEmptyInventory, got: %v", err)
	}
	if !strings.Contains(out.String(), "fallback inventory failed") {
		t.Errorf("missing fallback warning, got: %s", out.String())
	}
}

func TestFetchFullState_AllowEmptyInventory(t *testing.T) {
	src := &mockSource{mp: domain.MarketplaceBrickLink, summaries: []domain.OrderSummary{summaryA}, inventory: domain.NewInventory}
	svc, _, out := newTestService(src, Options{AllowEmpty: map[domain.Marketplace]bool{domain.MarketplaceBrickLink: true}})

	snap, err := svc.FetchFullState(context.Background(), domain.MarketplaceBrickLink)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if !snap.Inventory.IsEmpty() {
		t.Error("expected an empty inventory")
	}
	if !strings.Contains(out.String(), "Is your Mock store closed?") {
		t.Errorf("missing closed store warning, got: %s", out.String())
	}
}

func TestFetchFullState_AllowEmptyDoesNotCoverEmptyFallback(t *testing.T) {
	src := &mockSource{
		mp:                 domain.MarketplaceBrickLink,
		summaries:          []domain.OrderSummary{summaryA},
		inventory:          domain.NewInventory,
		fallbackConfigured: true,
		fallback:           placeholderInventory,
	}
	svc, _, _ := newTestService(src, Options{AllowEmpty: map[domain.Marketplace]bool{domain.MarketplaceBrickLink: true}})

	snap, err := svc.FetchFullState(context.Background(), domain.MarketplaceBrickLink)
	if !errors.Is(err, ErrEmptyInventory) {
		t.Fatalf("expected ErrEmptyInventory, got: %v", err)
	}
	if snap != nil {
		t.Error("expected no snapshot")
	}
	if src.fallbackCalls != 1 {
		t.Errorf("expected 1 fallback call, got %d", src.fallbackCalls)
	}
}

func TestFetchFullState_NoSettleWhenSlow(t *testing.T) {
	src := &mockSource{mp: domain.MarketplaceBrickLink, summaries: []domain.OrderSummary{summaryA}, inventory: stockedInventory}
	svc, clock, _ := newTestService(src, Options{})
	clock.step = 3 * time.Second

	if _, err := svc.FetchFullState(context.Background(), domain.MarketplaceBrickLink); err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if len(clock.sleeps) != 0 {
		t.Errorf("expected no settle sleep, got %v", clock.sleeps)
	}
}

func TestFetchFullState_SettleSleepsRemainder(t *testing.T) {
	src := &mockSource{mp: domain.MarketplaceBrickLink, summaries: []domain.OrderSummary{summaryA}, inventory: stockedInventory}
	svc, clock, _ := newTestService(src, Options{})
	clock.step = time.Second

	if _, err := svc.FetchFullState(context.Background(), domain.MarketplaceBrickLink); err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if len(clock.sleeps) != 1 || clock.sleeps[0] != 1500*time.Millisecond {
		t.Errorf("expected a 1.5s settle sleep, got %v", clock.sleeps)
	}
}

func TestFetchFullState_CancelledDuringSettle(t *testing.T) {
	src := &mockSource{mp: domain.MarketplaceBrickLink, summaries: []domain.OrderSummary{summaryA}, inventory: stockedInventory}
	svc, _, _ := newTestService(src, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snap, err := svc.FetchFullState(ctx, domain.MarketplaceBrickLink)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got: %v", err)
	}
	if snap != nil {
		t.Error("expected no snapshot")
	}
}

func TestFetchFullState_SyncInProgress(t *testing.T) {
	src := &mockSource{mp: domain.MarketplaceBrickLink, summaries: []domain.OrderSummary{summaryA}, inventory: stockedInventory}
	lock := &mockLock{held: true}
	svc := NewSnapshotService([]port.Source{src}, lock, nil, Options{})

	_, err := svc.FetchFullState(context.Background(), domain.MarketplaceBrickLink)
	if !errors.Is(err, ErrSyncInProgress) {
		t.Fatalf("expected ErrSyncInProgress, got: %v", err)
	}
	if src.summaryCalls != 0 {
		t.Errorf("expected no fetch, got %d order list calls", src.summaryCalls)
	}
}

func TestFetchFullState_SourceFailureReleasesLock(t *testing.T) {
	src := &mockSource{
		mp:           domain.MarketplaceBrickLink,
		summaries:    []domain.OrderSummary{summaryA},
		inventoryErr: port.ErrFetchFailed,
	}
	lock := &mockLock{}
	svc := NewSnapshotService([]port.Source{src}, lock, nil, Options{})

	snap, err := svc.FetchFullState(context.Background(), domain.MarketplaceBrickLink)
	if !errors.Is(err, port.ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed, got: %v", err)
	}
	if snap != nil {
		t.Error("expected no snapshot")
	}
	if lock.held {
		t.Error("expected lock to be released")
	}
}

func TestFetchFullState_UnknownMarketplace(t *testing.T) {
	svc := NewSnapshotService(nil, nil, nil, Options{})

	_, err := svc.FetchFullState(context.Background(), domain.Marketplace("lego"))
	if !errors.Is(err, ErrUnknownMarketplace) {
		t.Fatalf("expected ErrUnknownMarketplace, got: %v", err)
	}
}

func TestClose_StopsPublishing(t *testing.T) {
	src := &mockSource{mp: domain.MarketplaceBrickLink, summaries: []domain.OrderSummary{summaryA}, inventory: stockedInventory}
	svc, _, _ := newTestService(src, Options{QueueSize: 1})
	svc.Close()
	svc.Close()

	if _, err := svc.FetchFullState(context.Background(), domain.MarketplaceBrickLink); err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if _, ok := <-svc.GetSnapshotQueue(); ok {
		t.Error("expected a closed, empty queue")
	}
}
