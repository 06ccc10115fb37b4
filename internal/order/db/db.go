package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-checkout/internal/apperror"
	"ms-checkout/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func NewDB(bunDB *bun.DB) *DB {
	return &DB{Bun: bunDB}
}

var errNotPending = errors.New("purchase is not pending")

// RunInTx runs fn in one transaction; a returned error rolls it back.
func (d *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	return d.Bun.RunInTx(ctx, nil, fn)
}

// ---------------- PURCHASES ----------------

// CreatePurchase inserts the purchase and its lines atomically.
func (d *DB) CreatePurchase(ctx context.Context, p *models.Purchase) error {
	return d.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(p).Exec(ctx); err != nil {
			return fmt.Errorf("insert purchase: %w", err)
		}
		if len(p.Lines) == 0 {
			return nil
		}
		if _, err := tx.NewInsert().Model(&p.Lines).Exec(ctx); err != nil {
			return fmt.Errorf("insert purchase lines: %w", err)
		}
		return nil
	})
}

// GetPurchase loads a purchase with its lines.
func (d *DB) GetPurchase(ctx context.Context, id string) (*models.Purchase, error) {
	var p models.Purchase
	err := d.Bun.NewSelect().
		Model(&p).
		Relation("Lines", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("pl.ticket_type_id ASC")
		}).
		Where("p.id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.New(apperror.KindNotFound, fmt.Sprintf("purchase %s not found", id))
	}
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "load purchase", err)
	}
	return &p, nil
}

// DeletePendingPurchase removes a pending purchase and its lines. It reports
// false when the purchase is missing or already terminal.
func (d *DB) DeletePendingPurchase(ctx context.Context, id string) (bool, error) {
	err := d.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().
			Model((*models.Purchase)(nil)).
			Where("id = ?", id).
			Where("status = ?", models.PurchaseStatusPending).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete purchase: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errNotPending
		}
		if _, err := tx.NewDelete().
			Model((*models.PurchaseLine)(nil)).
			Where("purchase_id = ?", id).
			Exec(ctx); err != nil {
			return fmt.Errorf("delete purchase lines: %w", err)
		}
		return nil
	})
	if errors.Is(err, errNotPending) {
		return false, nil
	}
	return err == nil, err
}

// MarkApproved writes the terminal approved state, but only over a pending
// row. It reports false when another writer got there first.
func (d *DB) MarkApproved(ctx context.Context, db bun.IDB, p *models.Purchase) (bool, error) {
	if db == nil {
		db = d.Bun
	}
	res, err := db.NewUpdate().
		Model(p).
		Column("status", "payment_method", "total_amount", "discount_amount", "coupon_code",
			"transaction_ref", "gateway_ref", "confirmed", "processed_at").
		Where("id = ?", p.ID).
		Where("status = ?", models.PurchaseStatusPending).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("approve purchase: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("approve rows affected: %w", err)
	}
	return n == 1, nil
}

// MarkRejected moves a pending purchase to rejected. Inventory, tickets and
// coupon usage are untouched.
func (d *DB) MarkRejected(ctx context.Context, id, method, reason string, at time.Time) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Purchase)(nil)).
		Set("status = ?", models.PurchaseStatusRejected).
		Set("payment_method = ?", method).
		Set("reject_reason = ?", reason).
		Set("processed_at = ?", at).
		Where("id = ?", id).
		Where("status = ?", models.PurchaseStatusPending).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("reject purchase: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reject rows affected: %w", err)
	}
	return n == 1, nil
}

// ListPurchasesByUser returns the user's purchases, newest first, without lines.
func (d *DB) ListPurchasesByUser(ctx context.Context, userID string) ([]models.Purchase, error) {
	purchases := make([]models.Purchase, 0)
	err := d.Bun.NewSelect().
		Model(&purchases).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	return purchases, nil
}
