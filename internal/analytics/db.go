package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"ms-checkout/internal/models"
)

// DB handles analytics database operations
type DB struct {
	bun bun.IDB
}

// NewDB creates a new analytics DB handler
func NewDB(db bun.IDB) *DB {
	return &DB{bun: db}
}

// ApprovedSale is the slice of an approved purchase that reporting needs.
type ApprovedSale struct {
	ID             string          `bun:"id"`
	TotalAmount    decimal.Decimal `bun:"total_amount"`
	DiscountAmount decimal.Decimal `bun:"discount_amount"`
	CouponCode     *string         `bun:"coupon_code"`
	ProcessedAt    time.Time       `bun:"processed_at"`
}

// GetApprovedSales lists the approved purchases of an event, oldest first.
func (db *DB) GetApprovedSales(ctx context.Context, eventID string) ([]ApprovedSale, error) {
	sales := make([]ApprovedSale, 0)
	err := db.bun.NewSelect().
		Model((*models.Purchase)(nil)).
		Column("id", "total_amount", "discount_amount", "coupon_code", "processed_at").
		Where("event_id = ?", eventID).
		Where("status = ?", models.PurchaseStatusApproved).
		Order("processed_at ASC").
		Scan(ctx, &sales)
	if err != nil {
		return nil, fmt.Errorf("list approved sales: %w", err)
	}
	return sales, nil
}

// LineRevenue is the gross revenue of one ticket type before discounts.
type LineRevenue struct {
	TicketTypeID string          `bun:"ticket_type_id"`
	Quantity     int             `bun:"quantity"`
	Gross        decimal.Decimal `bun:"gross"`
}

// GetLineRevenue sums approved purchase lines per ticket type at their
// snapshot prices.
func (db *DB) GetLineRevenue(ctx context.Context, eventID string) (map[string]LineRevenue, error) {
	var rows []LineRevenue
	err := db.bun.NewRaw(`
		SELECT
			pl.ticket_type_id AS ticket_type_id,
			SUM(pl.quantity) AS quantity,
			SUM(pl.quantity * pl.unit_price) AS gross
		FROM
			purchase_lines pl
		JOIN
			purchases p ON p.id = pl.purchase_id
		WHERE
			p.event_id = ? AND p.status = ?
		GROUP BY
			pl.ticket_type_id`, eventID, models.PurchaseStatusApproved).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("sum line revenue: %w", err)
	}

	out := make(map[string]LineRevenue, len(rows))
	for _, r := range rows {
		out[r.TicketTypeID] = r
	}
	return out, nil
}
