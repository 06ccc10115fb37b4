package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderItem is one ticket type and quantity inside an order request.
type OrderItem struct {
	TicketTypeID string `json:"ticketTypeId"`
	Quantity     int    `json:"quantity"`
}

// OrderRequest accepts either the single TicketTypeID/Quantity pair or a
// list of Items. UserID comes from the authenticated caller.
type OrderRequest struct {
	UserID       string      `json:"-"`
	EventID      string      `json:"eventId"`
	TicketTypeID string      `json:"ticketTypeId,omitempty"`
	Quantity     int         `json:"quantity,omitempty"`
	Items        []OrderItem `json:"items,omitempty"`
}

type OrderResponse struct {
	PurchaseID  string          `json:"purchaseId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Status      PurchaseStatus  `json:"status"`
	Lines       []*PurchaseLine `json:"lines"`
}

type ApplyCouponRequest struct {
	UserID     string `json:"-"`
	PurchaseID string `json:"purchaseId,omitempty"`
	EventID    string `json:"eventId,omitempty"`
	Code       string `json:"code"`
}

type CouponPreview struct {
	Code           string          `json:"code"`
	Valid          bool            `json:"valid"`
	Reason         string          `json:"reason,omitempty"`
	DiscountKind   DiscountKind    `json:"discountKind,omitempty"`
	DiscountValue  decimal.Decimal `json:"discountValue"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
}

type PaymentRequest struct {
	UserID     string `json:"-"`
	PurchaseID string `json:"-"`
	Method     string `json:"paymentMethod"`
	CouponCode string `json:"couponCode,omitempty"`
}

type PaymentResult struct {
	PurchaseID     string          `json:"purchaseId"`
	Status         PurchaseStatus  `json:"status"`
	TransactionRef string          `json:"transactionRef"`
	Amount         decimal.Decimal `json:"amount"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	TicketCodes    []string        `json:"ticketCodes"`
	ProcessedAt    time.Time       `json:"processedAt"`
}

type CheckInRequest struct {
	Code      string `json:"code,omitempty"`
	QRPayload string `json:"qrPayload,omitempty"`
}
