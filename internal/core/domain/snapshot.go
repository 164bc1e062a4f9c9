package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Marketplace string

const (
	MarketplaceBrickLink Marketplace = "bricklink"
	MarketplaceBrickOwl  Marketplace = "brickowl"
)

func ParseMarketplace(s string) (Marketplace, error) {
	switch Marketplace(strings.ToLower(strings.TrimSpace(s))) {
	case MarketplaceBrickLink:
		return MarketplaceBrickLink, nil
	case MarketplaceBrickOwl:
		return MarketplaceBrickOwl, nil
	}
	return "", fmt.Errorf("unknown marketplace %q", s)
}

// Snapshot is an inventory and order summary certified to describe the same instant.
type Snapshot struct {
	ID          uuid.UUID
	Marketplace Marketplace
	Inventory   *Inventory
	Orders      OrderSummary
	TakenAt     time.Time
	Attempts    int
	ViaFallback bool
}
