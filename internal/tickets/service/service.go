package tickets

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"ms-checkout/internal/apperror"
	"ms-checkout/internal/clock"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/metrics"
	"ms-checkout/internal/models"
	qr "ms-checkout/internal/tickets/qr_genrator"
)

type TicketDBLayer interface {
	GetTicketByID(ctx context.Context, id string) (*models.Ticket, error)
	GetTicketByCode(ctx context.Context, code string) (*models.Ticket, error)
	ListByPurchase(ctx context.Context, purchaseID string) ([]models.Ticket, error)
	MarkUsed(ctx context.Context, code string, at time.Time) (bool, error)
	SetAttendee(ctx context.Context, ticketID string, a models.Attendee) (bool, error)
}

type PurchaseReader interface {
	GetPurchase(ctx context.Context, id string) (*models.Purchase, error)
}

type TicketService struct {
	DB        TicketDBLayer
	Purchases PurchaseReader
	QR        *qr.QRGenerator
	Clock     clock.Clock
	logger    *logger.Logger
}

func NewTicketService(db TicketDBLayer, purchases PurchaseReader, gen *qr.QRGenerator, clk clock.Clock, log *logger.Logger) *TicketService {
	return &TicketService{DB: db, Purchases: purchases, QR: gen, Clock: clk, logger: log}
}

// ownedPurchase hides purchases of other users behind NotFound.
func (s *TicketService) ownedPurchase(ctx context.Context, userID, purchaseID string) (*models.Purchase, error) {
	p, err := s.Purchases.GetPurchase(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, apperror.New(apperror.KindNotFound, fmt.Sprintf("purchase %s not found", purchaseID))
	}
	return p, nil
}

func (s *TicketService) ListByPurchase(ctx context.Context, userID, purchaseID string) ([]models.Ticket, error) {
	if _, err := s.ownedPurchase(ctx, userID, purchaseID); err != nil {
		return nil, err
	}
	return s.DB.ListByPurchase(ctx, purchaseID)
}

func (s *TicketService) ownedTicket(ctx context.Context, userID, ticketID string) (*models.Ticket, error) {
	ticket, err := s.DB.GetTicketByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedPurchase(ctx, userID, ticket.PurchaseID); err != nil {
		if apperror.KindOf(err) == apperror.KindNotFound {
			return nil, apperror.New(apperror.KindNotFound, fmt.Sprintf("ticket %s not found", ticketID))
		}
		return nil, err
	}
	return ticket, nil
}

// TicketQR renders the QR image for a ticket the user owns.
func (s *TicketService) TicketQR(ctx context.Context, userID, ticketID string) ([]byte, error) {
	ticket, err := s.ownedTicket(ctx, userID, ticketID)
	if err != nil {
		return nil, err
	}

	png, err := s.QR.GenerateEncryptedQR(*ticket)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "render qr", err)
	}
	return png, nil
}

// CheckIn admits a ticket once. The code comes from the request or from a
// decrypted QR payload.
func (s *TicketService) CheckIn(ctx context.Context, req models.CheckInRequest) (*models.Ticket, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" && req.QRPayload != "" {
		payload, err := s.QR.Decrypt(strings.TrimSpace(req.QRPayload))
		if err != nil {
			metrics.TicketCheckIns.WithLabelValues("invalid").Inc()
			return nil, apperror.Wrap(apperror.KindValidation, "unreadable qr payload", err)
		}
		code = payload.Code
	}
	if code == "" {
		return nil, apperror.New(apperror.KindValidation, "code or qrPayload is required")
	}

	ticket, err := s.DB.GetTicketByCode(ctx, code)
	if err != nil {
		metrics.TicketCheckIns.WithLabelValues("unknown").Inc()
		return nil, err
	}
	if ticket.State == models.TicketStateVoided {
		metrics.TicketCheckIns.WithLabelValues("voided").Inc()
		return nil, apperror.New(apperror.KindInvalidOrderState, "ticket has been voided")
	}

	now := s.Clock.Now()
	ok, err := s.DB.MarkUsed(ctx, code, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		metrics.TicketCheckIns.WithLabelValues("duplicate").Inc()
		s.logger.LogSecurity("CHECKIN_REPLAY", fmt.Sprintf("Ticket %s presented again", ticket.ID))
		return nil, apperror.New(apperror.KindAlreadyProcessed, "ticket already used")
	}

	ticket.State = models.TicketStateUsed
	ticket.UsedAt = &now
	metrics.TicketCheckIns.WithLabelValues("admitted").Inc()
	s.logger.Info("TICKET", fmt.Sprintf("Ticket %s checked in", ticket.ID))
	return ticket, nil
}

const (
	maxAttendeeName     = 100
	maxAttendeeEmail    = 100
	maxAttendeeDocument = 20
)

func validateAttendee(a models.Attendee) (models.Attendee, error) {
	a.Name = strings.TrimSpace(a.Name)
	a.Email = strings.TrimSpace(a.Email)
	a.Document = strings.TrimSpace(a.Document)

	switch {
	case a.Name == "":
		return a, apperror.New(apperror.KindValidation, "attendee name is required")
	case len(a.Name) > maxAttendeeName:
		return a, apperror.New(apperror.KindValidation, fmt.Sprintf("attendee name is longer than %d characters", maxAttendeeName))
	case len(a.Email) > maxAttendeeEmail:
		return a, apperror.New(apperror.KindValidation, fmt.Sprintf("attendee email is longer than %d characters", maxAttendeeEmail))
	case len(a.Document) > maxAttendeeDocument:
		return a, apperror.New(apperror.KindValidation, fmt.Sprintf("attendee document is longer than %d characters", maxAttendeeDocument))
	}
	if a.Email != "" {
		addr, err := mail.ParseAddress(a.Email)
		if err != nil || addr.Address != a.Email {
			return a, apperror.New(apperror.KindValidation, "attendee email is not a valid address")
		}
	}
	return a, nil
}

// AssignAttendee records who will use a ticket. Only the buyer may do it and
// only while the ticket has not been used or voided.
func (s *TicketService) AssignAttendee(ctx context.Context, userID, ticketID string, attendee models.Attendee) (*models.Ticket, error) {
	attendee, err := validateAttendee(attendee)
	if err != nil {
		return nil, err
	}

	ticket, err := s.ownedTicket(ctx, userID, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.State != models.TicketStateActive {
		return nil, apperror.New(apperror.KindInvalidOrderState, fmt.Sprintf("ticket is %s", ticket.State))
	}

	ok, err := s.DB.SetAttendee(ctx, ticketID, attendee)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.New(apperror.KindInvalidOrderState, "ticket is no longer active")
	}

	ticket.AttendeeName = &attendee.Name
	ticket.AttendeeEmail = optional(attendee.Email)
	ticket.AttendeeDocument = optional(attendee.Document)
	s.logger.Info("TICKET", fmt.Sprintf("Attendee assigned to ticket %s", ticket.ID))
	return ticket, nil
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
