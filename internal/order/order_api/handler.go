package order_api

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

type OrderService interface {
	BuildOrder(ctx context.Context, req models.OrderRequest) (*models.Purchase, error)
	GetOrder(ctx context.Context, userID, purchaseID string) (*models.Purchase, error)
	ListOrders(ctx context.Context, userID string) ([]models.Purchase, error)
	CancelOrder(ctx context.Context, userID, purchaseID string) error
	ApplyCoupon(ctx context.Context, req models.ApplyCouponRequest) (*models.CouponPreview, error)
}

type PaymentService interface {
	ProcessPayment(ctx context.Context, req models.PaymentRequest) (*models.PaymentResult, error)
}

type Handler struct {
	OrderService   OrderService
	PaymentService PaymentService
	Logger         *logger.Logger
	// ExposeErrors adds the internal cause to error bodies. Development only.
	ExposeErrors bool
}

func NewHandler(orders OrderService, payments PaymentService, log *logger.Logger, exposeErrors bool) *Handler {
	return &Handler{OrderService: orders, PaymentService: payments, Logger: log, ExposeErrors: exposeErrors}
}

// RegisterRoutes mounts /purchases and /coupons. Subroutes contributed by
// other packages (ticket listing) are added inside the same /purchases mount.
func (h *Handler) RegisterRoutes(r chi.Router, purchaseSubroutes ...func(chi.Router)) {
	r.Route("/purchases", func(r chi.Router) {
		r.Post("/", h.PlaceOrder)
		r.Get("/", h.ListOrders)
		r.Get("/{purchaseId}", h.GetOrder)
		r.Delete("/{purchaseId}", h.CancelOrder)
		r.Post("/{purchaseId}/payment", h.ProcessPayment)
		for _, sub := range purchaseSubroutes {
			sub(r)
		}
	})
	r.Post("/coupons/apply", h.ApplyCoupon)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	kind := apperror.KindOf(err)
	if kind == apperror.KindInternal {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	} else {
		h.Logger.Warn("API", fmt.Sprintf("%s: %v", op, err))
	}
	utils.WriteError(w, err, h.ExposeErrors)
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperror.Wrap(apperror.KindValidation, "invalid request body", err)
	}
	return nil
}

func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req models.OrderRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, "PlaceOrder", err)
		return
	}
	req.UserID = auth.UserID(r.Context())

	p, err := h.OrderService.BuildOrder(r.Context(), req)
	if err != nil {
		h.fail(w, "PlaceOrder", err)
		return
	}

	h.Logger.Info("API", fmt.Sprintf("PlaceOrder: purchase %s created for %s", p.ID, req.UserID))
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("purchase created", models.OrderResponse{
		PurchaseID:  p.ID,
		TotalAmount: p.TotalAmount,
		Status:      p.Status,
		Lines:       p.Lines,
	}))
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	purchases, err := h.OrderService.ListOrders(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, "ListOrders", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("purchases", purchases))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	purchaseID := chi.URLParam(r, "purchaseId")

	p, err := h.OrderService.GetOrder(r.Context(), auth.UserID(r.Context()), purchaseID)
	if err != nil {
		h.fail(w, "GetOrder", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("purchase", p))
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	purchaseID := chi.URLParam(r, "purchaseId")

	if err := h.OrderService.CancelOrder(r.Context(), auth.UserID(r.Context()), purchaseID); err != nil {
		h.fail(w, "CancelOrder", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var req models.ApplyCouponRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, "ApplyCoupon", err)
		return
	}
	req.UserID = auth.UserID(r.Context())

	preview, err := h.OrderService.ApplyCoupon(r.Context(), req)
	if err != nil {
		h.fail(w, "ApplyCoupon", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("coupon preview", preview))
}
