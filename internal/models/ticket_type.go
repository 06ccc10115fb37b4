package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

const (
	DefaultMinPurchase = 1
	DefaultMaxPurchase = 10
)

// TicketType is a purchasable admission category of an event. Available is
// only ever decremented by the inventory ledger.
type TicketType struct {
	bun.BaseModel `bun:"table:ticket_types,alias:tt"`

	ID            string          `bun:"id,pk" json:"id"`
	EventID       string          `bun:"event_id,notnull" json:"eventId"`
	Name          string          `bun:"name,notnull" json:"name"`
	UnitPrice     decimal.Decimal `bun:"unit_price,type:decimal(12,2),notnull" json:"unitPrice"`
	TotalCapacity int             `bun:"total_capacity,notnull" json:"totalCapacity"`
	Available     int             `bun:"available,notnull" json:"available"`
	SaleStartsAt  *time.Time      `bun:"sale_starts_at" json:"saleStartsAt,omitempty"`
	SaleEndsAt    *time.Time      `bun:"sale_ends_at" json:"saleEndsAt,omitempty"`
	MinPurchase   int             `bun:"min_purchase,notnull" json:"minPurchase"`
	MaxPurchase   int             `bun:"max_purchase,notnull" json:"maxPurchase"`
	Active        bool            `bun:"active,notnull" json:"active"`
}

// PurchaseLimits returns the per-purchase quantity bounds, with zero values
// replaced by the defaults.
func (t *TicketType) PurchaseLimits() (int, int) {
	lo, hi := t.MinPurchase, t.MaxPurchase
	if lo <= 0 {
		lo = DefaultMinPurchase
	}
	if hi <= 0 {
		hi = DefaultMaxPurchase
	}
	return lo, hi
}

// OnSale reports whether now is inside the sale window. Nil bounds are open.
func (t *TicketType) OnSale(now time.Time) bool {
	if t.SaleStartsAt != nil && now.Before(*t.SaleStartsAt) {
		return false
	}
	if t.SaleEndsAt != nil && !now.Before(*t.SaleEndsAt) {
		return false
	}
	return true
}
