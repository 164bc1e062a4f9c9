// Package marketplace implements port.Source for each supported marketplace.
package marketplace

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/rl1809/invsnap/internal/core/auth"
	"github.com/rl1809/invsnap/internal/core/domain"
	"github.com/rl1809/invsnap/internal/core/extract"
	"github.com/rl1809/invsnap/internal/core/tracker"
	"github.com/rl1809/invsnap/internal/port"
)

const (
	blInventoryPath = "/api/store/v1/inventories?status=Y"
	blOrdersPath    = "/api/store/v1/orders?direction=in"
	blWebInventory  = "/invExcelFinal.asp"

	// Same form BrickStore posts to download a store inventory.
	blWebInventoryForm = "itemType=&catID=&colorID=&invNew=&itemYear=&viewType=x&invStock=Y&invStockOnly=&invQty=&invQtyMin=0&invQtyMax=0&invBrikTrak=&invDesc="
)

type BrickLinkConfig struct {
	Scheme      string
	APIHost     string
	WebHost     string
	ClientID    string
	MaxFailures int
}

// BrickLink reads the store through the public API and, when a BrickStore
// access token is available, through the authenticated web download.
type BrickLink struct {
	cfg       BrickLinkConfig
	transport port.Transport
	signer    port.Signer
	session   *auth.Session
	errors    *tracker.ErrorStore
	logger    *log.Logger
}

func NewBrickLink(cfg BrickLinkConfig, transport port.Transport, signer port.Signer, session *auth.Session, errs *tracker.ErrorStore, logger *log.Logger) *BrickLink {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if cfg.APIHost == "" {
		cfg.APIHost = "api.bricklink.com"
	}
	if cfg.WebHost == "" {
		cfg.WebHost = "www.bricklink.com"
	}
	return &BrickLink{
		cfg:       cfg,
		transport: transport,
		signer:    signer,
		session:   session,
		errors:    errs,
		logger:    logger,
	}
}

func (b *BrickLink) Name() string { return "BrickLink" }

func (b *BrickLink) Marketplace() domain.Marketplace { return domain.MarketplaceBrickLink }

func (b *BrickLink) FallbackConfigured() bool {
	return b.session != nil && b.session.Configured()
}

func (b *BrickLink) newTracker() *tracker.Tracker {
	return tracker.New(b.transport, tracker.WithMaxFailures(b.cfg.MaxFailures), tracker.WithLogger(b.logger))
}

func (b *BrickLink) apiRequest(path string) (*port.Request, error) {
	req := &port.Request{
		Method: http.MethodGet,
		Scheme: b.cfg.Scheme,
		Host:   b.cfg.APIHost,
		Path:   path,
		Header: http.Header{"Accept": []string{"application/json"}},
	}
	if b.signer != nil {
		if err := b.signer.Sign(req); err != nil {
			return nil, fmt.Errorf("sign %s: %w", path, err)
		}
	}
	return req, nil
}

func (b *BrickLink) FetchOrderSummary(ctx context.Context) (domain.OrderSummary, error) {
	req, err := b.apiRequest(blOrdersPath)
	if err != nil {
		return domain.OrderSummary{}, err
	}

	var dates []int64
	t := b.newTracker()
	err = tracker.Run(ctx, t, func() {
		dates = dates[:0]
		t.Submit(ctx, t.Allocate(domain.QueryPrimary, &dates), req.Clone(), b.replyOrders)
	})
	if err != nil {
		return domain.OrderSummary{}, fmt.Errorf("bricklink order list: %w", err)
	}
	return domain.SummarizeOrderDates(dates), nil
}

func (b *BrickLink) replyOrders(q *tracker.Query, resp *port.Response, err error) domain.ResultCode {
	result := tracker.Classify(resp, err)
	if result == domain.ResultRemoteError {
		b.errors.Store("BrickLink HTTP Error", resp)
	}
	if result != domain.ResultSuccess {
		return result
	}
	dates, ok := ReadBrickLinkOrderDates(resp.Body)
	if !ok {
		b.errors.Store("BrickLink JSON Parse Error", resp)
		return domain.ResultParseError
	}
	*q.Payload.(*[]int64) = dates
	return result
}

func (b *BrickLink) FetchInventory(ctx context.Context) (*domain.Inventory, error) {
	req, err := b.apiRequest(blInventoryPath)
	if err != nil {
		return nil, err
	}

	inv := domain.NewInventory()
	t := b.newTracker()
	b.logger.Printf("INFO: Fetching the BrickLink Inventory...")
	err = tracker.Run(ctx, t, func() {
		inv.Empty()
		t.Submit(ctx, t.Allocate(domain.QueryPrimary, inv), req.Clone(), b.replyInventory)
	})
	if err != nil {
		return nil, fmt.Errorf("bricklink inventory: %w", err)
	}
	return inv, nil
}

func (b *BrickLink) replyInventory(q *tracker.Query, resp *port.Response, err error) domain.ResultCode {
	result := tracker.Classify(resp, err)
	if result == domain.ResultRemoteError {
		b.errors.Store("BrickLink HTTP Error", resp)
	}
	if result != domain.ResultSuccess {
		return result
	}
	if !ReadBrickLinkInventory(resp.Body, q.Payload.(*domain.Inventory)) {
		b.errors.Store("BrickLink JSON Parse Error", resp)
		return domain.ResultParseError
	}
	return result
}

// FetchFallbackInventory logs in with the BrickStore access token and
// downloads the store inventory from the web endpoint, following redirects.
func (b *BrickLink) FetchFallbackInventory(ctx context.Context) (*domain.Inventory, error) {
	if !b.FallbackConfigured() {
		return nil, port.ErrNoFallback
	}
	if err := b.session.Authenticate(ctx); err != nil {
		return nil, fmt.Errorf("bricklink fallback: %w", err)
	}

	redirector := &auth.Redirector{ClientID: b.cfg.ClientID, Session: b.session, Logger: b.logger}
	handler := redirector.Follow(b.replyWebInventory)

	inv := domain.NewInventory()
	t := b.newTracker()
	b.logger.Printf("INFO: Fetching BrickLink inventory via BrickStore authenticated web endpoint...")
	err := tracker.Run(ctx, t, func() {
		inv.Empty()
		req := &port.Request{
			Method: http.MethodPost,
			Scheme: b.cfg.Scheme,
			Host:   b.cfg.WebHost,
			Path:   blWebInventory,
			Header: http.Header{"Content-Type": []string{"application/x-www-form-urlencoded"}},
			Body:   []byte(blWebInventoryForm),
		}
		req.Header.Set(auth.HeaderClientID, b.cfg.ClientID)
		req.Header.Set(auth.HeaderSessionToken, b.session.Token())
		t.Submit(ctx, t.Allocate(domain.QuerySecondaryWeb, inv), req, handler)
	})
	if err != nil {
		return nil, fmt.Errorf("bricklink fallback: %w", err)
	}
	return inv, nil
}

func (b *BrickLink) replyWebInventory(q *tracker.Query, resp *port.Response, err error) domain.ResultCode {
	result := tracker.Classify(resp, err)
	if result == domain.ResultRemoteError {
		b.errors.Store("BrickLink invExcelFinal HTTP Error", resp)
	}
	if result != domain.ResultSuccess {
		return result
	}
	if !extract.ParseStoreInventory(resp.Body, q.Payload.(*domain.Inventory)) {
		b.errors.Store("BrickLink invExcelFinal Parse Error", resp)
		return domain.ResultParseError
	}
	return result
}
