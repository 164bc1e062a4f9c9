package domain

import "strings"

// Item is one inventory lot as reported by a marketplace.
type Item struct {
	ID         string
	TypeID     byte
	ColorID    int
	CategoryID int
	Quantity   int
	Price      float64
	Bulk       int
	LotID      int64
	MyCost     float64
	Condition  byte
	Comments   string
	Remarks    string
}

// IsPlaceholder reports whether the lot is an empty-but-present slot.
func (it *Item) IsPlaceholder() bool {
	return it.Quantity <= 0
}

// Normalize clamps values the marketplaces occasionally report out of range.
func (it *Item) Normalize() {
	if it.Quantity < 0 {
		it.Quantity = 0
	}
	if it.Bulk < 1 {
		it.Bulk = 1
	}
	if it.Price < 0 {
		it.Price = 0
	}
	if it.MyCost < 0 {
		it.MyCost = 0
	}
	it.TypeID = upper(it.TypeID)
	it.Condition = upper(it.Condition)
	it.ID = strings.TrimSpace(it.ID)
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

type Inventory struct {
	Items []Item

	PartCount     int // sum of quantities
	ItemCount     int // lots, placeholders included
	ItemFreeCount int // placeholder lots
}

func NewInventory() *Inventory {
	return &Inventory{}
}

// Add appends a copy of item and keeps the counters in step.
func (inv *Inventory) Add(item Item) {
	inv.Items = append(inv.Items, item)
	inv.ItemCount++
	if item.IsPlaceholder() {
		inv.ItemFreeCount++
		return
	}
	inv.PartCount += item.Quantity
}

// Empty drops every lot and zeroes the counters.
func (inv *Inventory) Empty() {
	*inv = Inventory{}
}

// LiveCount is the number of lots that are not placeholders.
func (inv *Inventory) LiveCount() int {
	return inv.ItemCount - inv.ItemFreeCount
}

func (inv *Inventory) IsEmpty() bool {
	return inv.LiveCount() == 0
}
