package marketplace

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rl1809/invsnap/internal/core/domain"
	"github.com/rl1809/invsnap/internal/core/extract"
)

type blMeta struct {
	Code        int    `json:"code"`
	Message     string `json:"message"`
	Description string `json:"description"`
}

type blInventoryEnvelope struct {
	Meta blMeta             `json:"meta"`
	Data []blInventoryEntry `json:"data"`
}

type blInventoryEntry struct {
	InventoryID int64 `json:"inventory_id"`
	Item        struct {
		No         string `json:"no"`
		Type       string `json:"type"`
		CategoryID int    `json:"category_id"`
	} `json:"item"`
	ColorID     int    `json:"color_id"`
	Quantity    int    `json:"quantity"`
	NewOrUsed   string `json:"new_or_used"`
	UnitPrice   string `json:"unit_price"`
	Bulk        int    `json:"bulk"`
	Description string `json:"description"`
	Remarks     string `json:"remarks"`
	MyCost      string `json:"my_cost"`
	IsStockRoom bool   `json:"is_stock_room"`
}

type blOrdersEnvelope struct {
	Meta blMeta `json:"meta"`
	Data []struct {
		OrderID     int64  `json:"order_id"`
		DateOrdered string `json:"date_ordered"`
	} `json:"data"`
}

var blItemTypes = map[string]byte{
	"PART":         'P',
	"SET":          'S',
	"MINIFIG":      'M',
	"BOOK":         'B',
	"GEAR":         'G',
	"CATALOG":      'C',
	"INSTRUCTION":  'I',
	"UNSORTED_LOT": 'U',
	"ORIGINAL_BOX": 'O',
}

// ReadBrickLinkInventory decodes an inventories envelope into inv. Monetary
// values arrive as fixed-point strings and go through the tolerant reader.
func ReadBrickLinkInventory(body []byte, inv *domain.Inventory) bool {
	var env blInventoryEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return false
	}
	if env.Meta.Code != 200 {
		return false
	}

	for _, e := range env.Data {
		if e.IsStockRoom {
			continue
		}
		item := domain.Item{
			ID:         e.Item.No,
			TypeID:     blItemTypes[strings.ToUpper(e.Item.Type)],
			ColorID:    e.ColorID,
			CategoryID: e.Item.CategoryID,
			Quantity:   e.Quantity,
			Price:      extract.Field{Raw: e.UnitPrice, Present: true}.Float(),
			Bulk:       e.Bulk,
			LotID:      e.InventoryID,
			MyCost:     extract.Field{Raw: e.MyCost, Present: true}.Float(),
			Condition:  extract.Field{Raw: e.NewOrUsed, Present: true}.Char(),
			Comments:   e.Description,
			Remarks:    e.Remarks,
		}
		item.Normalize()
		inv.Add(item)
	}
	return true
}

// ReadBrickLinkOrderDates returns the order timestamps of an orders envelope.
func ReadBrickLinkOrderDates(body []byte) ([]int64, bool) {
	var env blOrdersEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, false
	}
	if env.Meta.Code != 200 {
		return nil, false
	}

	dates := make([]int64, 0, len(env.Data))
	for _, o := range env.Data {
		ts, err := time.Parse(time.RFC3339, o.DateOrdered)
		if err != nil {
			return nil, false
		}
		dates = append(dates, ts.Unix())
	}
	return dates, true
}
