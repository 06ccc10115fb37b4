package catalog_api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-checkout/internal/apperror"
	"ms-checkout/internal/catalog"
	"ms-checkout/internal/clock"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
	"ms-checkout/internal/utils"
)

// TicketTypeView is what buyers see while browsing.
type TicketTypeView struct {
	models.TicketType
	OnSale  bool `json:"onSale"`
	SoldOut bool `json:"soldOut"`
}

type Handler struct {
	Catalog      catalog.Reader
	Clock        clock.Clock
	Logger       *logger.Logger
	ExposeErrors bool
}

func NewHandler(reader catalog.Reader, clk clock.Clock, log *logger.Logger, exposeErrors bool) *Handler {
	return &Handler{Catalog: reader, Clock: clk, Logger: log, ExposeErrors: exposeErrors}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/events/{eventId}/ticket-types", h.ListTicketTypes)
}

// ListTicketTypes returns the active ticket types of an event. Inactive
// types are hidden.
func (h *Handler) ListTicketTypes(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	types, err := h.Catalog.ListTicketTypes(r.Context(), eventID)
	if err != nil {
		h.Logger.Error("CATALOG", fmt.Sprintf("List ticket types for %s failed: %v", eventID, err))
		utils.WriteError(w, err, h.ExposeErrors)
		return
	}

	now := h.Clock.Now()
	views := make([]TicketTypeView, 0, len(types))
	for _, tt := range types {
		if !tt.Active {
			continue
		}
		views = append(views, TicketTypeView{
			TicketType: tt,
			OnSale:     tt.OnSale(now),
			SoldOut:    tt.Available <= 0,
		})
	}
	if len(views) == 0 {
		utils.WriteError(w, apperror.New(apperror.KindNotFound, fmt.Sprintf("no ticket types for event %s", eventID)), h.ExposeErrors)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("ticket types", views))
}
