package db

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"ms-checkout/internal/models"
)

// TypeCount is the number of non-voided tickets of one ticket type.
type TypeCount struct {
	TicketTypeID string `bun:"ticket_type_id"`
	Count        int    `bun:"count"`
}

// GetTotalTicketsCount counts every ticket ever issued.
func (d *DB) GetTotalTicketsCount(ctx context.Context) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Count(ctx)
}

// CountIssuedByType groups live tickets by ticket type for the given types.
func (d *DB) CountIssuedByType(ctx context.Context, ticketTypeIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(ticketTypeIDs))
	if len(ticketTypeIDs) == 0 {
		return counts, nil
	}

	var rows []TypeCount
	err := d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Column("ticket_type_id").
		ColumnExpr("COUNT(*) AS count").
		Where("ticket_type_id IN (?)", bun.In(ticketTypeIDs)).
		Where("state != ?", models.TicketStateVoided).
		Group("ticket_type_id").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("count tickets by type: %w", err)
	}
	for _, r := range rows {
		counts[r.TicketTypeID] = r.Count
	}
	return counts, nil
}
