package tickets

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-checkout/internal/apperror"
	"ms-checkout/internal/models"
	"ms-checkout/internal/utils"
)

const maxCodeAttempts = 5

// IssueStore is the part of the ticket table the issuer writes to.
type IssueStore interface {
	CodesExist(ctx context.Context, db bun.IDB, codes []string) (map[string]bool, error)
	InsertTickets(ctx context.Context, db bun.IDB, tickets []models.Ticket) error
}

// Issuer mints tickets for an approved purchase line. It runs inside the
// caller's transaction so a failure leaves no tickets behind.
type Issuer struct {
	DB  IssueStore
	IDs utils.IDGenerator
}

func NewIssuer(db IssueStore, ids utils.IDGenerator) *Issuer {
	return &Issuer{DB: db, IDs: ids}
}

// Issue creates line.Quantity active tickets with codes unique across the
// batch and the table.
func (i *Issuer) Issue(ctx context.Context, db bun.IDB, purchaseID string, line *models.PurchaseLine, issuedAt time.Time) ([]models.Ticket, error) {
	if line == nil || line.Quantity <= 0 {
		return nil, apperror.New(apperror.KindValidation, "ticket quantity must be positive")
	}

	codes, err := i.uniqueCodes(ctx, db, line.Quantity)
	if err != nil {
		return nil, err
	}

	tickets := make([]models.Ticket, 0, line.Quantity)
	for _, code := range codes {
		tickets = append(tickets, models.Ticket{
			ID:             i.IDs.NewID(),
			PurchaseID:     purchaseID,
			PurchaseLineID: line.ID,
			TicketTypeID:   line.TicketTypeID,
			Code:           code,
			State:          models.TicketStateActive,
			IssuedAt:       issuedAt,
		})
	}

	if err := i.DB.InsertTickets(ctx, db, tickets); err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "store tickets", err)
	}
	return tickets, nil
}

// uniqueCodes regenerates only the slots that collide, up to maxCodeAttempts
// rounds.
func (i *Issuer) uniqueCodes(ctx context.Context, db bun.IDB, n int) ([]string, error) {
	codes := make([]string, n)
	pending := make([]int, n)
	for k := range pending {
		pending[k] = k
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		for _, k := range pending {
			codes[k] = i.IDs.TicketCode()
		}

		taken, err := i.DB.CodesExist(ctx, db, codes)
		if err != nil {
			return nil, apperror.Wrap(apperror.KindInternal, "check ticket codes", err)
		}

		seen := make(map[string]bool, n)
		pending = pending[:0]
		for k, code := range codes {
			if taken[code] || seen[code] {
				pending = append(pending, k)
				continue
			}
			seen[code] = true
		}
		if len(pending) == 0 {
			return codes, nil
		}
	}
	return nil, apperror.New(apperror.KindInternal, fmt.Sprintf("could not generate %d unique ticket codes", n))
}
