package discount

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"ms-checkout/internal/models"
)

type DB struct {
	Bun bun.IDB
}

func NewDB(db bun.IDB) *DB {
	return &DB{Bun: db}
}

// FindByCode returns up to two coupons with the code that are either scoped
// to eventID or global. Two rows means the lookup is ambiguous.
func (d *DB) FindByCode(ctx context.Context, code, eventID string) ([]models.Coupon, error) {
	coupons := make([]models.Coupon, 0, 2)
	err := d.Bun.NewSelect().
		Model(&coupons).
		Where("code = ?", code).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("event_id = ?", eventID).WhereOr("event_id IS NULL")
		}).
		Limit(2).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("find coupon %q: %w", code, err)
	}
	return coupons, nil
}

// IncrementUsage bumps current_usage only while the coupon is active and
// under its cap.
func (d *DB) IncrementUsage(ctx context.Context, db bun.IDB, couponID string) (bool, error) {
	if db == nil {
		db = d.Bun
	}
	res, err := db.NewUpdate().
		Model((*models.Coupon)(nil)).
		Set("current_usage = current_usage + 1").
		Where("id = ?", couponID).
		Where("active = ?", true).
		Where("usage_cap IS NULL OR current_usage < usage_cap").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("increment coupon usage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("coupon rows affected: %w", err)
	}
	return n == 1, nil
}
