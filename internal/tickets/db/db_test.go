package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-checkout/internal/apperror"
	"ms-checkout/internal/models"
	"ms-checkout/internal/testutil"
	"ms-checkout/internal/tickets/db"
)

func newTicket(purchaseID, ticketTypeID, code string, issued time.Time) models.Ticket {
	return models.Ticket{
		ID:             uuid.NewString(),
		PurchaseID:     purchaseID,
		PurchaseLineID: uuid.NewString(),
		TicketTypeID:   ticketTypeID,
		Code:           code,
		State:          models.TicketStateActive,
		IssuedAt:       issued,
	}
}

func TestInsertAndLookupTickets(t *testing.T) {
	bunDB := testutil.NewDB(t)
	ticketDB := db.NewDB(bunDB)
	ctx := context.Background()
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	batch := []models.Ticket{
		newTicket("purchase-1", "type-a", "QR-1", issued),
		newTicket("purchase-1", "type-a", "QR-2", issued),
		newTicket("purchase-2", "type-a", "QR-3", issued),
	}
	require.NoError(t, ticketDB.InsertTickets(ctx, nil, batch))

	got, err := ticketDB.GetTicketByID(ctx, batch[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "QR-1", got.Code)

	got, err = ticketDB.GetTicketByCode(ctx, "QR-3")
	require.NoError(t, err)
	assert.Equal(t, "purchase-2", got.PurchaseID)

	list, err := ticketDB.ListByPurchase(ctx, "purchase-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "QR-1", list[0].Code)
	assert.Equal(t, "QR-2", list[1].Code)

	_, err = ticketDB.GetTicketByCode(ctx, "QR-missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestInsertTickets_DuplicateCodeFails(t *testing.T) {
	bunDB := testutil.NewDB(t)
	ticketDB := db.NewDB(bunDB)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, ticketDB.InsertTickets(ctx, nil, []models.Ticket{newTicket("p1", "tt", "QR-DUP", now)}))
	err := ticketDB.InsertTickets(ctx, nil, []models.Ticket{newTicket("p2", "tt", "QR-DUP", now)})
	assert.Error(t, err)
}

func TestCodesExist(t *testing.T) {
	bunDB := testutil.NewDB(t)
	ticketDB := db.NewDB(bunDB)
	ctx := context.Background()

	require.NoError(t, ticketDB.InsertTickets(ctx, nil, []models.Ticket{
		newTicket("p1", "tt", "QR-A", time.Now().UTC()),
	}))

	taken, err := ticketDB.CodesExist(ctx, nil, []string{"QR-A", "QR-B"})
	require.NoError(t, err)
	assert.True(t, taken["QR-A"])
	assert.False(t, taken["QR-B"])

	taken, err = ticketDB.CodesExist(ctx, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, taken)
}

func TestMarkUsed_OnlyOnce(t *testing.T) {
	bunDB := testutil.NewDB(t)
	ticketDB := db.NewDB(bunDB)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, ticketDB.InsertTickets(ctx, nil, []models.Ticket{newTicket("p1", "tt", "QR-GATE", now)}))

	ok, err := ticketDB.MarkUsed(ctx, "QR-GATE", now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ticketDB.MarkUsed(ctx, "QR-GATE", now)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := ticketDB.GetTicketByCode(ctx, "QR-GATE")
	require.NoError(t, err)
	assert.Equal(t, models.TicketStateUsed, got.State)
	require.NotNil(t, got.UsedAt)
}

func TestCountIssuedByType(t *testing.T) {
	bunDB := testutil.NewDB(t)
	ticketDB := db.NewDB(bunDB)
	ctx := context.Background()
	now := time.Now().UTC()

	voided := newTicket("p1", "type-a", "QR-V", now)
	voided.State = models.TicketStateVoided
	require.NoError(t, ticketDB.InsertTickets(ctx, nil, []models.Ticket{
		newTicket("p1", "type-a", "QR-1", now),
		newTicket("p1", "type-a", "QR-2", now),
		newTicket("p2", "type-b", "QR-3", now),
		newTicket("p3", "type-c", "QR-4", now),
		voided,
	}))

	counts, err := ticketDB.CountIssuedByType(ctx, []string{"type-a", "type-b", "type-z"})
	require.NoError(t, err)
	assert.Equal(t, 2, counts["type-a"])
	assert.Equal(t, 1, counts["type-b"])
	assert.Equal(t, 0, counts["type-z"])
	_, hasC := counts["type-c"]
	assert.False(t, hasC)

	total, err := ticketDB.GetTotalTicketsCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
}

func TestSetAttendee_OnlyActive(t *testing.T) {
	bunDB := testutil.NewDB(t)
	ticketDB := db.NewDB(bunDB)
	ctx := context.Background()
	now := time.Now().UTC()

	active := newTicket("p1", "type-a", "QR-A", now)
	used := newTicket("p1", "type-a", "QR-U", now)
	used.State = models.TicketStateUsed
	require.NoError(t, ticketDB.InsertTickets(ctx, nil, []models.Ticket{active, used}))

	ok, err := ticketDB.SetAttendee(ctx, active.ID, models.Attendee{Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := ticketDB.GetTicketByID(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", *got.AttendeeName)
	assert.Equal(t, "ana@example.com", *got.AttendeeEmail)
	assert.Nil(t, got.AttendeeDocument)

	ok, err = ticketDB.SetAttendee(ctx, used.ID, models.Attendee{Name: "Ana"})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = ticketDB.SetAttendee(ctx, "missing", models.Attendee{Name: "Ana"})
	require.NoError(t, err)
	assert.False(t, ok)
}
