package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type DiscountKind string

const (
	DiscountFixed      DiscountKind = "fixed"
	DiscountPercentage DiscountKind = "percentage"
)

// Coupon is a discount code. A nil EventID makes it global; a non-nil
// TicketTypeID limits the discount to lines of that ticket type.
type Coupon struct {
	bun.BaseModel `bun:"table:coupons,alias:c"`

	ID           string              `bun:"id,pk" json:"id"`
	Code         string              `bun:"code,notnull" json:"code"`
	EventID      *string             `bun:"event_id" json:"eventId,omitempty"`
	TicketTypeID *string             `bun:"ticket_type_id" json:"ticketTypeId,omitempty"`
	Kind         DiscountKind        `bun:"kind,notnull" json:"kind"`
	Value        decimal.Decimal     `bun:"value,type:decimal(12,2),notnull" json:"value"`
	MaxDiscount  decimal.NullDecimal `bun:"max_discount,type:decimal(12,2)" json:"maxDiscount"`
	ValidFrom    time.Time           `bun:"valid_from,notnull" json:"validFrom"`
	ValidUntil   time.Time           `bun:"valid_until,notnull" json:"validUntil"`
	UsageCap     *int                `bun:"usage_cap" json:"usageCap,omitempty"`
	CurrentUsage int                 `bun:"current_usage,notnull" json:"currentUsage"`
	Active       bool                `bun:"active,notnull" json:"active"`
	Description  string              `bun:"description" json:"description,omitempty"`
}
