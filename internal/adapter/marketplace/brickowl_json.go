package marketplace

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rl1809/invsnap/internal/core/domain"
	"github.com/rl1809/invsnap/internal/core/extract"
)

// looseValue accepts a JSON string or number. BrickOwl quotes most numbers.
type looseValue string

func (v *looseValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*v = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = looseValue(s)
		return nil
	}
	*v = looseValue(b)
	return nil
}

func (v looseValue) field() extract.Field {
	return extract.Field{Raw: string(v), Present: v != ""}
}

type boInventoryEntry struct {
	LotID        looseValue `json:"lot_id"`
	BOID         looseValue `json:"boid"`
	Type         string     `json:"type"`
	Condition    string     `json:"con"`
	ColorID      looseValue `json:"color_id"`
	Quantity     looseValue `json:"qty"`
	Price        looseValue `json:"price"`
	ForSale      looseValue `json:"for_sale"`
	PublicNote   string     `json:"public_note"`
	PersonalNote string     `json:"personal_note"`
	IDs          []struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	} `json:"ids"`
}

type boOrderEntry struct {
	OrderID   looseValue `json:"order_id"`
	OrderDate looseValue `json:"order_date"`
}

var boItemTypes = map[string]byte{
	"part":         'P',
	"set":          'S',
	"minifigure":   'M',
	"gear":         'G',
	"sticker":      'P',
	"packaging":    'O',
	"instructions": 'I',
}

// ReadBrickOwlInventory decodes an inventory list into inv. Lots that are not
// for sale are kept with a zero quantity so they count as placeholders.
func ReadBrickOwlInventory(body []byte, inv *domain.Inventory) bool {
	var entries []boInventoryEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return false
	}

	for _, e := range entries {
		item := domain.Item{
			ID:        boDesignID(e),
			TypeID:    boItemTypes[strings.ToLower(e.Type)],
			ColorID:   e.ColorID.field().Int(),
			Quantity:  e.Quantity.field().Int(),
			Price:     e.Price.field().Float(),
			LotID:     e.LotID.field().Int64(),
			Condition: boCondition(e.Condition),
			Comments:  e.PublicNote,
			Remarks:   e.PersonalNote,
		}
		if e.ForSale.field().Present && e.ForSale.field().Int() == 0 {
			item.Quantity = 0
		}
		item.Normalize()
		inv.Add(item)
	}
	return true
}

func boDesignID(e boInventoryEntry) string {
	for _, id := range e.IDs {
		if id.Type == "design_id" {
			return id.ID
		}
	}
	return string(e.BOID)
}

func boCondition(con string) byte {
	switch {
	case con == "":
		return 0
	case strings.HasPrefix(strings.ToLower(con), "new"):
		return 'N'
	default:
		return 'U'
	}
}

// ReadBrickOwlOrderDates returns the timestamps of the orders placed at or
// after minDate.
func ReadBrickOwlOrderDates(body []byte, minDate int64) ([]int64, bool) {
	var entries []boOrderEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, false
	}

	dates := make([]int64, 0, len(entries))
	for _, e := range entries {
		f := e.OrderDate.field()
		if !f.Present {
			return nil, false
		}
		d := f.Int64()
		if d < minDate {
			continue
		}
		dates = append(dates, d)
	}
	return dates, true
}
