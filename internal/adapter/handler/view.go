package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"google.golang.org/grpc/codes"

	"github.com/rl1809/invsnap/internal/core/domain"
	"github.com/rl1809/invsnap/internal/core/service"
	"github.com/rl1809/invsnap/internal/port"
)

type OrderSummaryView struct {
	TopDate      int64 `json:"top_date"`
	TopDateCount int   `json:"top_date_count"`
	OrderCount   int   `json:"order_count"`
}

type ItemView struct {
	ID         string  `json:"id"`
	Type       string  `json:"type,omitempty"`
	ColorID    int     `json:"color_id"`
	CategoryID int     `json:"category_id"`
	Quantity   int     `json:"quantity"`
	Price      float64 `json:"price"`
	Bulk       int     `json:"bulk"`
	LotID      int64   `json:"lot_id"`
	MyCost     float64 `json:"my_cost"`
	Condition  string  `json:"condition,omitempty"`
	Comments   string  `json:"comments,omitempty"`
	Remarks    string  `json:"remarks,omitempty"`
}

type SnapshotView struct {
	ID            string           `json:"id"`
	Marketplace   string           `json:"marketplace"`
	TakenAt       time.Time        `json:"taken_at"`
	Attempts      int              `json:"attempts"`
	ViaFallback   bool             `json:"via_fallback"`
	Orders        OrderSummaryView `json:"orders"`
	PartCount     int              `json:"part_count"`
	ItemCount     int              `json:"item_count"`
	ItemFreeCount int              `json:"item_free_count"`
	Items         []ItemView       `json:"items,omitempty"`
}

func code(b byte) string {
	if b == 0 {
		return ""
	}
	return string([]byte{b})
}

func summaryView(s domain.OrderSummary) OrderSummaryView {
	return OrderSummaryView{TopDate: s.TopDate, TopDateCount: s.TopDateCount, OrderCount: s.OrderCount}
}

// NewSnapshotView renders a snapshot; lots are only listed when withItems is set.
func NewSnapshotView(snap *domain.Snapshot, withItems bool) SnapshotView {
	v := SnapshotView{
		ID:          snap.ID.String(),
		Marketplace: string(snap.Marketplace),
		TakenAt:     snap.TakenAt,
		Attempts:    snap.Attempts,
		ViaFallback: snap.ViaFallback,
		Orders:      summaryView(snap.Orders),
	}
	if snap.Inventory == nil {
		return v
	}
	v.PartCount = snap.Inventory.PartCount
	v.ItemCount = snap.Inventory.ItemCount
	v.ItemFreeCount = snap.Inventory.ItemFreeCount
	if !withItems {
		return v
	}
	v.Items = make([]ItemView, 0, len(snap.Inventory.Items))
	for _, it := range snap.Inventory.Items {
		v.Items = append(v.Items, ItemView{
			ID:         it.ID,
			Type:       code(it.TypeID),
			ColorID:    it.ColorID,
			CategoryID: it.CategoryID,
			Quantity:   it.Quantity,
			Price:      it.Price,
			Bulk:       it.Bulk,
			LotID:      it.LotID,
			MyCost:     it.MyCost,
			Condition:  code(it.Condition),
			Comments:   it.Comments,
			Remarks:    it.Remarks,
		})
	}
	return v
}

type errorMapping struct {
	err     error
	status  int
	code    codes.Code
	message string
}

var errorMappings = []errorMapping{
	{service.ErrUnknownMarketplace, http.StatusNotFound, codes.NotFound, "unknown marketplace"},
	{service.ErrSyncInProgress, http.StatusConflict, codes.Aborted, "snapshot already in progress"},
	{service.ErrInconsistentSnapshot, http.StatusServiceUnavailable, codes.Unavailable, "order list kept changing, try again later"},
	{service.ErrEmptyInventory, http.StatusUnprocessableEntity, codes.FailedPrecondition, "inventory is empty"},
	{port.ErrFetchFailed, http.StatusBadGateway, codes.Unavailable, "marketplace unreachable"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, codes.DeadlineExceeded, "timed out"},
	{context.Canceled, 499, codes.Canceled, "cancelled"},
}

func mapError(err error) (int, codes.Code, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code, m.message
		}
	}
	return http.StatusInternalServerError, codes.Internal, "internal error"
}
