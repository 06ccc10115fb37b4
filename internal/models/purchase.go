package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type PurchaseStatus string

const (
	PurchaseStatusPending  PurchaseStatus = "pending"
	PurchaseStatusApproved PurchaseStatus = "approved"
	PurchaseStatusRejected PurchaseStatus = "rejected"
)

// PaymentMethodPending is stored until the buyer picks a method.
const PaymentMethodPending = "pending"

func (s PurchaseStatus) Terminal() bool {
	return s == PurchaseStatusApproved || s == PurchaseStatusRejected
}

// Purchase is one checkout attempt. It owns its lines; lines and tickets
// point back to it by id only.
type Purchase struct {
	bun.BaseModel `bun:"table:purchases,alias:p"`

	ID             string          `bun:"id,pk" json:"id"`
	UserID         string          `bun:"user_id,notnull" json:"userId"`
	EventID        string          `bun:"event_id,notnull" json:"eventId"`
	PaymentMethod  string          `bun:"payment_method,notnull" json:"paymentMethod"`
	Status         PurchaseStatus  `bun:"status,notnull" json:"status"`
	TotalAmount    decimal.Decimal `bun:"total_amount,type:decimal(12,2),notnull" json:"totalAmount"`
	DiscountAmount decimal.Decimal `bun:"discount_amount,type:decimal(12,2),notnull" json:"discountAmount"`
	CouponCode     *string         `bun:"coupon_code" json:"couponCode,omitempty"`
	TransactionRef *string         `bun:"transaction_ref,unique" json:"transactionRef,omitempty"`
	GatewayRef     *string         `bun:"gateway_ref" json:"gatewayRef,omitempty"`
	RejectReason   *string         `bun:"reject_reason" json:"rejectReason,omitempty"`
	Confirmed      bool            `bun:"confirmed,notnull" json:"confirmed"`
	Refunded       bool            `bun:"refunded,notnull" json:"refunded"`
	CreatedAt      time.Time       `bun:"created_at,notnull" json:"createdAt"`
	ProcessedAt    *time.Time      `bun:"processed_at" json:"processedAt,omitempty"`

	Lines []*PurchaseLine `bun:"rel:has-many,join:id=purchase_id" json:"lines"`

	// PaymentInProgress is reported for pending purchases whose payment is
	// currently running. Not stored.
	PaymentInProgress bool `bun:"-" json:"paymentInProgress,omitempty"`
}

// GrossAmount sums the line subtotals at their snapshotted prices.
func (p *Purchase) GrossAmount() decimal.Decimal {
	total := decimal.Zero
	for _, line := range p.Lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

func (p *Purchase) TicketCount() int {
	n := 0
	for _, line := range p.Lines {
		n += line.Quantity
	}
	return n
}

// PurchaseLine holds the unit price as it was when the order was built.
type PurchaseLine struct {
	bun.BaseModel `bun:"table:purchase_lines,alias:pl"`

	ID           string          `bun:"id,pk" json:"id"`
	PurchaseID   string          `bun:"purchase_id,notnull" json:"purchaseId"`
	TicketTypeID string          `bun:"ticket_type_id,notnull" json:"ticketTypeId"`
	Quantity     int             `bun:"quantity,notnull" json:"quantity"`
	UnitPrice    decimal.Decimal `bun:"unit_price,type:decimal(12,2),notnull" json:"unitPrice"`
}

func (l *PurchaseLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
