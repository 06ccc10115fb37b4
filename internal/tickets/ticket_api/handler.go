package ticket_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-checkout/internal/apperror"
	"ms-checkout/internal/auth"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
	"ms-checkout/internal/utils"
)

const ScannerRole = "SCANNER"

type TicketService interface {
	ListByPurchase(ctx context.Context, userID, purchaseID string) ([]models.Ticket, error)
	TicketQR(ctx context.Context, userID, ticketID string) ([]byte, error)
	CheckIn(ctx context.Context, req models.CheckInRequest) (*models.Ticket, error)
	AssignAttendee(ctx context.Context, userID, ticketID string, attendee models.Attendee) (*models.Ticket, error)
}

type Handler struct {
	TicketService TicketService
	Logger        *logger.Logger
	ExposeErrors  bool
}

func NewHandler(svc TicketService, log *logger.Logger, exposeErrors bool) *Handler {
	return &Handler{TicketService: svc, Logger: log, ExposeErrors: exposeErrors}
}

// RegisterRoutes mounts /tickets. Check-in is restricted to scanners.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/tickets", func(r chi.Router) {
		r.Get("/{ticketId}/qr", h.GetTicketQR)
		r.Put("/{ticketId}/attendee", h.AssignAttendee)
		r.With(auth.RequireRole(ScannerRole, h.Logger)).Post("/checkin", h.CheckinTicket)
	})
}

// PurchaseRoutes is passed to the order handler so ticket listing lives
// under /purchases/{purchaseId}/tickets.
func (h *Handler) PurchaseRoutes(r chi.Router) {
	r.Get("/{purchaseId}/tickets", h.ListTickets)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if apperror.KindOf(err) == apperror.KindInternal {
		h.Logger.Error("TICKET", fmt.Sprintf("%s: %v", op, err))
	} else {
		h.Logger.Warn("TICKET", fmt.Sprintf("%s: %v", op, err))
	}
	utils.WriteError(w, err, h.ExposeErrors)
}

func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request) {
	purchaseID := chi.URLParam(r, "purchaseId")

	tickets, err := h.TicketService.ListByPurchase(r.Context(), auth.UserID(r.Context()), purchaseID)
	if err != nil {
		h.fail(w, "ListTickets", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("tickets", tickets))
}

func (h *Handler) GetTicketQR(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketId")

	png, err := h.TicketService.TicketQR(r.Context(), auth.UserID(r.Context()), ticketID)
	if err != nil {
		h.fail(w, "GetTicketQR", err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// AssignAttendee sets who will use a ticket. Body: {"name", "email", "document"}.
func (h *Handler) AssignAttendee(w http.ResponseWriter, r *http.Request) {
	var attendee models.Attendee
	if err := json.NewDecoder(r.Body).Decode(&attendee); err != nil {
		h.fail(w, "AssignAttendee", apperror.Wrap(apperror.KindValidation, "invalid request body", err))
		return
	}

	ticket, err := h.TicketService.AssignAttendee(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "ticketId"), attendee)
	if err != nil {
		h.fail(w, "AssignAttendee", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("attendee assigned", ticket))
}

// CheckinTicket admits a ticket once. Body: {"code": "..."} or
// {"qrPayload": "..."}.
func (h *Handler) CheckinTicket(w http.ResponseWriter, r *http.Request) {
	var req models.CheckInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, "CheckinTicket", apperror.Wrap(apperror.KindValidation, "invalid request body", err))
		return
	}

	ticket, err := h.TicketService.CheckIn(r.Context(), req)
	if err != nil {
		h.fail(w, "CheckinTicket", err)
		return
	}

	h.Logger.LogSecurity("CHECKIN", fmt.Sprintf("Ticket %s admitted by %s", ticket.ID, auth.UserID(r.Context())))
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("ticket checked in", ticket))
}
