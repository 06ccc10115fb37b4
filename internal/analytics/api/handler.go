package analytics_api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-checkout/internal/analytics"
	"ms-checkout/internal/auth"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/utils"
)

type SalesReporter interface {
	SalesSummary(ctx context.Context, eventID string) (*analytics.EventSales, error)
}

// Handler handles analytics HTTP endpoints
type Handler struct {
	Service      SalesReporter
	Logger       *logger.Logger
	ExposeErrors bool
}

// NewHandler creates a new analytics handler
func NewHandler(service SalesReporter, log *logger.Logger, exposeErrors bool) *Handler {
	return &Handler{Service: service, Logger: log, ExposeErrors: exposeErrors}
}

// RegisterRoutes registers the analytics routes on a chi router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/analytics", func(r chi.Router) {
		r.Get("/events/{eventId}/sales", h.GetEventSales)
	})
}

func (h *Handler) GetEventSales(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	h.Logger.Debug("ANALYTICS", fmt.Sprintf("Sales summary for event %s requested by %s", eventID, auth.UserID(r.Context())))

	report, err := h.Service.SalesSummary(r.Context(), eventID)
	if err != nil {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("Sales summary for %s failed: %v", eventID, err))
		utils.WriteError(w, err, h.ExposeErrors)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("sales summary", report))
}
