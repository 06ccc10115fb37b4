package order_api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-checkout/internal/auth"
	"ms-checkout/internal/models"
	"ms-checkout/internal/utils"
)

// ProcessPayment pays for a pending purchase. A second call for the same
// purchase answers 409 ALREADY_PROCESSED.
func (h *Handler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	var req models.PaymentRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, "ProcessPayment", err)
		return
	}
	req.UserID = auth.UserID(r.Context())
	req.PurchaseID = chi.URLParam(r, "purchaseId")

	result, err := h.PaymentService.ProcessPayment(r.Context(), req)
	if err != nil {
		h.fail(w, "ProcessPayment", err)
		return
	}

	h.Logger.LogPurchase("PAID", result.PurchaseID, fmt.Sprintf("%d tickets issued", len(result.TicketCodes)))
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("payment approved", result))
}
