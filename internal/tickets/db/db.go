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

func (d *DB) idb(db bun.IDB) bun.IDB {
	if db == nil {
		return d.Bun
	}
	return db
}

// CodesExist returns the subset of codes already stored.
func (d *DB) CodesExist(ctx context.Context, db bun.IDB, codes []string) (map[string]bool, error) {
	taken := make(map[string]bool)
	if len(codes) == 0 {
		return taken, nil
	}

	var found []string
	err := d.idb(db).NewSelect().
		Model((*models.Ticket)(nil)).
		Column("code").
		Where("code IN (?)", bun.In(codes)).
		Scan(ctx, &found)
	if err != nil {
		return nil, fmt.Errorf("check ticket codes: %w", err)
	}
	for _, c := range found {
		taken[c] = true
	}
	return taken, nil
}

// InsertTickets stores a batch of tickets in one statement.
func (d *DB) InsertTickets(ctx context.Context, db bun.IDB, tickets []models.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	if _, err := d.idb(db).NewInsert().Model(&tickets).Exec(ctx); err != nil {
		return fmt.Errorf("insert tickets: %w", err)
	}
	return nil
}

func (d *DB) GetTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	return ticketOrErr(&ticket, err, "ticket "+id)
}

func (d *DB) GetTicketByCode(ctx context.Context, code string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("code = ?", code).
		Limit(1).
		Scan(ctx)
	return ticketOrErr(&ticket, err, "ticket with code "+code)
}

func ticketOrErr(t *models.Ticket, err error, what string) (*models.Ticket, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.New(apperror.KindNotFound, what+" not found")
	}
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "load ticket", err)
	}
	return t, nil
}

func (d *DB) ListByPurchase(ctx context.Context, purchaseID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("purchase_id = ?", purchaseID).
		Order("issued_at ASC", "code ASC").
		Scan(ctx)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "list tickets", err)
	}
	return tickets, nil
}

// MarkUsed flips an active ticket to used. It reports false when the ticket
// was not active, so two scanners cannot both admit the same code.
func (d *DB) MarkUsed(ctx context.Context, code string, at time.Time) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("state = ?", models.TicketStateUsed).
		Set("used_at = ?", at).
		Where("code = ?", code).
		Where("state = ?", models.TicketStateActive).
		Exec(ctx)
	if err != nil {
		return false, apperror.Wrap(apperror.KindInternal, "mark ticket used", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperror.Wrap(apperror.KindInternal, "mark ticket used", err)
	}
	return n == 1, nil
}

// SetAttendee stores attendee data on an active ticket. Empty optional fields
// are stored as NULL. It reports false when the ticket is no longer active.
func (d *DB) SetAttendee(ctx context.Context, ticketID string, a models.Attendee) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("attendee_name = ?", a.Name).
		Set("attendee_email = ?", nullable(a.Email)).
		Set("attendee_document = ?", nullable(a.Document)).
		Where("id = ?", ticketID).
		Where("state = ?", models.TicketStateActive).
		Exec(ctx)
	if err != nil {
		return false, apperror.Wrap(apperror.KindInternal, "set attendee", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperror.Wrap(apperror.KindInternal, "set attendee", err)
	}
	return n == 1, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
