package marketplace

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"

	"github.com/rl1809/invsnap/internal/core/domain"
	"github.com/rl1809/invsnap/internal/core/tracker"
	"github.com/rl1809/invsnap/internal/port"
)

type BrickOwlConfig struct {
	Scheme  string
	APIHost string
	Key     string

	// ReuseEmpty also lists inactive lots; they come back as placeholders.
	ReuseEmpty       bool
	MinimumOrderDate int64
	MaxFailures      int
}

// BrickOwl reads the store through the BrickOwl API. It has no fallback.
type BrickOwl struct {
	cfg       BrickOwlConfig
	transport port.Transport
	errors    *tracker.ErrorStore
	logger    *log.Logger
}

func NewBrickOwl(cfg BrickOwlConfig, transport port.Transport, errs *tracker.ErrorStore, logger *log.Logger) *BrickOwl {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if cfg.APIHost == "" {
		cfg.APIHost = "api.brickowl.com"
	}
	return &BrickOwl{cfg: cfg, transport: transport, errors: errs, logger: logger}
}

func (o *BrickOwl) Name() string { return "BrickOwl" }

func (o *BrickOwl) Marketplace() domain.Marketplace { return domain.MarketplaceBrickOwl }

func (o *BrickOwl) FallbackConfigured() bool { return false }

func (o *BrickOwl) FetchFallbackInventory(ctx context.Context) (*domain.Inventory, error) {
	return nil, port.ErrNoFallback
}

func (o *BrickOwl) newTracker() *tracker.Tracker {
	return tracker.New(o.transport, tracker.WithMaxFailures(o.cfg.MaxFailures), tracker.WithLogger(o.logger))
}

func (o *BrickOwl) request(path string, extra url.Values) *port.Request {
	q := url.Values{"key": []string{o.cfg.Key}}
	for k, v := range extra {
		q[k] = v
	}
	return &port.Request{
		Method: http.MethodGet,
		Scheme: o.cfg.Scheme,
		Host:   o.cfg.APIHost,
		Path:   path + "?" + q.Encode(),
		Header: http.Header{"Accept": []string{"application/json"}},
	}
}

func (o *BrickOwl) FetchOrderSummary(ctx context.Context) (domain.OrderSummary, error) {
	var dates []int64
	t := o.newTracker()
	err := tracker.Run(ctx, t, func() {
		dates = dates[:0]
		t.Submit(ctx, t.Allocate(domain.QueryPrimary, &dates), o.request("/v1/order/list", nil), o.replyOrders)
	})
	if err != nil {
		return domain.OrderSummary{}, fmt.Errorf("brickowl order list: %w", err)
	}
	return domain.SummarizeOrderDates(dates), nil
}

func (o *BrickOwl) replyOrders(q *tracker.Query, resp *port.Response, err error) domain.ResultCode {
	result := tracker.Classify(resp, err)
	if result == domain.ResultRemoteError {
		o.errors.Store("BrickOwl HTTP Error", resp)
	}
	if result != domain.ResultSuccess {
		return result
	}
	dates, ok := ReadBrickOwlOrderDates(resp.Body, o.cfg.MinimumOrderDate)
	if !ok {
		o.errors.Store("BrickOwl JSON Parse Error", resp)
		return domain.ResultParseError
	}
	*q.Payload.(*[]int64) = dates
	return result
}

func (o *BrickOwl) FetchInventory(ctx context.Context) (*domain.Inventory, error) {
	var extra url.Values
	if o.cfg.ReuseEmpty {
		extra = url.Values{"active_only": []string{"0"}}
	}

	inv := domain.NewInventory()
	t := o.newTracker()
	err := tracker.Run(ctx, t, func() {
		o.logger.Printf("INFO: Fetching the BrickOwl Inventory...")
		inv.Empty()
		t.Submit(ctx, t.Allocate(domain.QueryPrimary, inv), o.request("/v1/inventory/list", extra), o.replyInventory)
	})
	if err != nil {
		return nil, fmt.Errorf("brickowl inventory: %w", err)
	}
	return inv, nil
}

func (o *BrickOwl) replyInventory(q *tracker.Query, resp *port.Response, err error) domain.ResultCode {
	result := tracker.Classify(resp, err)
	if result == domain.ResultRemoteError {
		o.errors.Store("BrickOwl HTTP Error", resp)
	}
	if result != domain.ResultSuccess {
		return result
	}
	if !ReadBrickOwlInventory(resp.Body, q.Payload.(*domain.Inventory)) {
		o.errors.Store("BrickOwl JSON Parse Error", resp)
		return domain.ResultParseError
	}
	return result
}
