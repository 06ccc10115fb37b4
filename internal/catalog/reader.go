// Package catalog reads ticket types. Nothing here writes; the inventory
// ledger owns the available counter.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"ms-checkout/internal/apperror"
	"ms-checkout/internal/models"
)

type Reader interface {
	GetTicketType(ctx context.Context, id string) (*models.TicketType, error)
	ListTicketTypes(ctx context.Context, eventID string) ([]models.TicketType, error)
}

type DB struct {
	Bun bun.IDB
}

func NewDB(db bun.IDB) *DB {
	return &DB{Bun: db}
}

func (d *DB) GetTicketType(ctx context.Context, id string) (*models.TicketType, error) {
	var tt models.TicketType
	err := d.Bun.NewSelect().
		Model(&tt).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.New(apperror.KindNotFound, fmt.Sprintf("ticket type %s not found", id))
	}
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "load ticket type", err)
	}
	return &tt, nil
}

func (d *DB) ListTicketTypes(ctx context.Context, eventID string) ([]models.TicketType, error) {
	types := make([]models.TicketType, 0)
	err := d.Bun.NewSelect().
		Model(&types).
		Where("event_id = ?", eventID).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "list ticket types", err)
	}
	return types, nil
}
