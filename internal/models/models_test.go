package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTicketType_PurchaseLimitsDefaults(t *testing.T) {
	tt := TicketType{}
	lo, hi := tt.PurchaseLimits()
	assert.Equal(t, 1, lo)
	assert.Equal(t, 10, hi)

	tt = TicketType{MinPurchase: 2, MaxPurchase: 4}
	lo, hi = tt.PurchaseLimits()
	assert.Equal(t, 2, lo)
	assert.Equal(t, 4, hi)
}

func TestTicketType_OnSale(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	start := now.Add(-time.Hour)
	end := now.Add(time.Hour)

	assert.True(t, (&TicketType{}).OnSale(now))
	assert.True(t, (&TicketType{SaleStartsAt: &start, SaleEndsAt: &end}).OnSale(now))
	assert.False(t, (&TicketType{SaleStartsAt: &end}).OnSale(now))
	assert.False(t, (&TicketType{SaleEndsAt: &now}).OnSale(now), "end is exclusive")
}

func TestPurchase_GrossAmountUsesSnapshot(t *testing.T) {
	p := Purchase{Lines: []*PurchaseLine{
		{Quantity: 3, UnitPrice: decimal.RequireFromString("12.50")},
		{Quantity: 1, UnitPrice: decimal.RequireFromString("40")},
	}}

	assert.True(t, decimal.RequireFromString("77.50").Equal(p.GrossAmount()))
	assert.Equal(t, 4, p.TicketCount())
}

func TestPurchaseStatus_Terminal(t *testing.T) {
	assert.False(t, PurchaseStatusPending.Terminal())
	assert.True(t, PurchaseStatusApproved.Terminal())
	assert.True(t, PurchaseStatusRejected.Terminal())
}
