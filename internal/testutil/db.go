// Package testutil builds in-memory databases and fixtures for package tests.
package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-checkout/internal/models"
)

// NewDB opens a private in-memory SQLite database with every checkout table.
// The pool is pinned to one connection so the database lives as long as the
// test and transactions serialise.
func NewDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	sqldb.SetMaxOpenConns(1)
	sqldb.SetConnMaxLifetime(0)
	sqldb.SetConnMaxIdleTime(0)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	ctx := context.Background()

	for _, model := range []interface{}{
		(*models.TicketType)(nil),
		(*models.Purchase)(nil),
		(*models.PurchaseLine)(nil),
		(*models.Ticket)(nil),
		(*models.Coupon)(nil),
	} {
		if _, err := db.NewCreateTable().Model(model).Exec(ctx); err != nil {
			t.Fatalf("Failed to create table for %T: %v", model, err)
		}
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// SeedTicketType inserts an active, unbounded ticket type priced at 50.00.
func SeedTicketType(t *testing.T, db bun.IDB, eventID string, available int, opts ...func(*models.TicketType)) *models.TicketType {
	t.Helper()

	tt := &models.TicketType{
		ID:            uuid.NewString(),
		EventID:       eventID,
		Name:          "General",
		UnitPrice:     decimal.RequireFromString("50.00"),
		TotalCapacity: available,
		Available:     available,
		Active:        true,
	}
	for _, opt := range opts {
		opt(tt)
	}
	if _, err := db.NewInsert().Model(tt).Exec(context.Background()); err != nil {
		t.Fatalf("Failed to seed ticket type: %v", err)
	}
	return tt
}

// SeedCoupon inserts an active coupon valid for a day around now.
func SeedCoupon(t *testing.T, db bun.IDB, code string, now time.Time, opts ...func(*models.Coupon)) *models.Coupon {
	t.Helper()

	c := &models.Coupon{
		ID:         uuid.NewString(),
		Code:       code,
		Kind:       models.DiscountPercentage,
		Value:      decimal.NewFromInt(20),
		ValidFrom:  now.Add(-24 * time.Hour),
		ValidUntil: now.Add(24 * time.Hour),
		Active:     true,
	}
	for _, opt := range opts {
		opt(c)
	}
	if _, err := db.NewInsert().Model(c).Exec(context.Background()); err != nil {
		t.Fatalf("Failed to seed coupon: %v", err)
	}
	return c
}

// SeedPendingPurchase inserts a pending purchase with one line per ticket
// type, quantity qty, at the ticket type's current price.
func SeedPendingPurchase(t *testing.T, db bun.IDB, userID string, qty int, types ...*models.TicketType) *models.Purchase {
	t.Helper()
	ctx := context.Background()

	p := &models.Purchase{
		ID:            uuid.NewString(),
		UserID:        userID,
		PaymentMethod: models.PaymentMethodPending,
		Status:        models.PurchaseStatusPending,
		CreatedAt:     time.Now().UTC(),
	}
	for _, tt := range types {
		p.EventID = tt.EventID
		p.Lines = append(p.Lines, &models.PurchaseLine{
			ID:           uuid.NewString(),
			PurchaseID:   p.ID,
			TicketTypeID: tt.ID,
			Quantity:     qty,
			UnitPrice:    tt.UnitPrice,
		})
	}
	p.TotalAmount = p.GrossAmount()
	p.DiscountAmount = decimal.Zero

	if _, err := db.NewInsert().Model(p).Exec(ctx); err != nil {
		t.Fatalf("Failed to seed purchase: %v", err)
	}
	if len(p.Lines) > 0 {
		if _, err := db.NewInsert().Model(&p.Lines).Exec(ctx); err != nil {
			t.Fatalf("Failed to seed purchase lines: %v", err)
		}
	}
	return p
}

func Ptr[T any](v T) *T {
	return &v
}
