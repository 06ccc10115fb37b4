// Package inventory is the only writer of ticket_types.available.
package inventory

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"ms-checkout/internal/apperror"
	"ms-checkout/internal/models"
)

type Ledger struct {
	Bun bun.IDB
}

func NewLedger(db bun.IDB) *Ledger {
	return &Ledger{Bun: db}
}

// TryReserve decrements available by qty in a single conditional UPDATE.
// It reports false, and changes nothing, when fewer than qty remain. Pass
// the commit transaction as db; the row lock taken by the UPDATE is held
// until that transaction ends.
func (l *Ledger) TryReserve(ctx context.Context, db bun.IDB, ticketTypeID string, qty int) (bool, error) {
	if qty <= 0 {
		return false, apperror.New(apperror.KindValidation, "quantity must be positive")
	}
	if db == nil {
		db = l.Bun
	}

	res, err := db.NewUpdate().
		Model((*models.TicketType)(nil)).
		Set("available = available - ?", qty).
		Where("id = ?", ticketTypeID).
		Where("available >= ?", qty).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("reserve %d of ticket type %s: %w", qty, ticketTypeID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reserve rows affected: %w", err)
	}
	return n == 1, nil
}

func (l *Ledger) Available(ctx context.Context, ticketTypeID string) (int, error) {
	var available int
	err := l.Bun.NewSelect().
		Model((*models.TicketType)(nil)).
		Column("available").
		Where("id = ?", ticketTypeID).
		Scan(ctx, &available)
	if err != nil {
		return 0, fmt.Errorf("read available for %s: %w", ticketTypeID, err)
	}
	return available, nil
}
