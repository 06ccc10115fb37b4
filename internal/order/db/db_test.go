package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-checkout/internal/apperror"
	"ms-checkout/internal/models"
	"ms-checkout/internal/order/db"
	"ms-checkout/internal/testutil"
)

func setupTestDB(t *testing.T) (*db.DB, *models.TicketType) {
	bunDB := testutil.NewDB(t)
	tt := testutil.SeedTicketType(t, bunDB, "event-1", 20)
	return db.NewDB(bunDB), tt
}

func newPurchase(tt *models.TicketType, qty int) *models.Purchase {
	p := &models.Purchase{
		ID:            uuid.NewString(),
		UserID:        "user-1",
		EventID:       tt.EventID,
		PaymentMethod: models.PaymentMethodPending,
		Status:        models.PurchaseStatusPending,
		CreatedAt:     time.Now().UTC(),
	}
	p.Lines = []*models.PurchaseLine{{
		ID:           uuid.NewString(),
		PurchaseID:   p.ID,
		TicketTypeID: tt.ID,
		Quantity:     qty,
		UnitPrice:    tt.UnitPrice,
	}}
	p.TotalAmount = p.GrossAmount()
	return p
}

func TestCreateAndGetPurchase(t *testing.T) {
	purchaseDB, tt := setupTestDB(t)
	ctx := context.Background()

	p := newPurchase(tt, 3)
	require.NoError(t, purchaseDB.CreatePurchase(ctx, p))

	got, err := purchaseDB.GetPurchase(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseStatusPending, got.Status)
	assert.True(t, decimal.RequireFromString("150").Equal(got.TotalAmount))
	require.Len(t, got.Lines, 1)
	assert.Equal(t, 3, got.Lines[0].Quantity)
	assert.Equal(t, p.ID, got.Lines[0].PurchaseID)

	_, err = purchaseDB.GetPurchase(ctx, "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestCreatePurchase_IsAtomic(t *testing.T) {
	purchaseDB, tt := setupTestDB(t)
	ctx := context.Background()

	first := newPurchase(tt, 1)
	require.NoError(t, purchaseDB.CreatePurchase(ctx, first))

	// A line id collision makes the second insert fail after the purchase row.
	second := newPurchase(tt, 1)
	second.Lines[0].ID = first.Lines[0].ID
	require.Error(t, purchaseDB.CreatePurchase(ctx, second))

	_, err := purchaseDB.GetPurchase(ctx, second.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestMarkApproved_OnlyFromPending(t *testing.T) {
	purchaseDB, tt := setupTestDB(t)
	ctx := context.Background()

	p := newPurchase(tt, 2)
	require.NoError(t, purchaseDB.CreatePurchase(ctx, p))

	now := time.Now().UTC()
	p.Status = models.PurchaseStatusApproved
	p.Confirmed = true
	p.TransactionRef = testutil.Ptr("TX-1")
	p.ProcessedAt = &now

	ok, err := purchaseDB.MarkApproved(ctx, nil, p)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = purchaseDB.MarkApproved(ctx, nil, p)
	require.NoError(t, err)
	assert.False(t, ok, "second transition must not apply")

	ok, err = purchaseDB.MarkRejected(ctx, p.ID, "card", "late", now)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := purchaseDB.GetPurchase(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseStatusApproved, got.Status)
	assert.Equal(t, "TX-1", *got.TransactionRef)
	assert.True(t, got.Confirmed)
}

func TestMarkRejected(t *testing.T) {
	purchaseDB, tt := setupTestDB(t)
	ctx := context.Background()

	p := newPurchase(tt, 1)
	require.NoError(t, purchaseDB.CreatePurchase(ctx, p))

	ok, err := purchaseDB.MarkRejected(ctx, p.ID, "card", "declined", time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := purchaseDB.GetPurchase(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseStatusRejected, got.Status)
	assert.Equal(t, "declined", *got.RejectReason)
	assert.Nil(t, got.TransactionRef)
}

func TestDeletePendingPurchase(t *testing.T) {
	purchaseDB, tt := setupTestDB(t)
	ctx := context.Background()

	pending := newPurchase(tt, 1)
	require.NoError(t, purchaseDB.CreatePurchase(ctx, pending))
	rejected := newPurchase(tt, 1)
	require.NoError(t, purchaseDB.CreatePurchase(ctx, rejected))
	_, err := purchaseDB.MarkRejected(ctx, rejected.ID, "card", "declined", time.Now().UTC())
	require.NoError(t, err)

	ok, err := purchaseDB.DeletePendingPurchase(ctx, pending.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = purchaseDB.GetPurchase(ctx, pending.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	count, err := purchaseDB.Bun.NewSelect().Model((*models.PurchaseLine)(nil)).Where("purchase_id = ?", pending.ID).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	ok, err = purchaseDB.DeletePendingPurchase(ctx, rejected.ID)
	require.NoError(t, err)
	assert.False(t, ok, "terminal purchases are never deleted")
}

func TestListPurchasesByUser(t *testing.T) {
	purchaseDB, tt := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, purchaseDB.CreatePurchase(ctx, newPurchase(tt, 1)))
	require.NoError(t, purchaseDB.CreatePurchase(ctx, newPurchase(tt, 2)))

	list, err := purchaseDB.ListPurchasesByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = purchaseDB.ListPurchasesByUser(ctx, "user-2")
	require.NoError(t, err)
	assert.Empty(t, list)
}
