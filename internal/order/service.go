package order

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ms-checkout/internal/apperror"
	"ms-checkout/internal/catalog"
	"ms-checkout/internal/clock"
	"ms-checkout/internal/discount"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/metrics"
	"ms-checkout/internal/models"
	"ms-checkout/internal/utils"
)

type DBLayer interface {
	CreatePurchase(ctx context.Context, p *models.Purchase) error
	GetPurchase(ctx context.Context, id string) (*models.Purchase, error)
	DeletePendingPurchase(ctx context.Context, id string) (bool, error)
	ListPurchasesByUser(ctx context.Context, userID string) ([]models.Purchase, error)
}

// CouponPricer evaluates and prices codes without recording usage.
type CouponPricer interface {
	Evaluate(ctx context.Context, code, eventID string) (*discount.Evaluation, error)
	Price(ctx context.Context, code, eventID string, lines []*models.PurchaseLine) (*discount.Evaluation, discount.Result, error)
}

// PaymentLockReader tells whether a payment for a purchase is in flight.
type PaymentLockReader interface {
	IsLocked(ctx context.Context, purchaseID string) (bool, error)
}

// OrderService builds and manages pending purchases. PaymentLocks is
// optional; without it PaymentInProgress is never set.
type OrderService struct {
	DB           DBLayer
	Catalog      catalog.Reader
	Discounts    CouponPricer
	PaymentLocks PaymentLockReader
	IDs          utils.IDGenerator
	Clock        clock.Clock
	logger       *logger.Logger
}

func NewOrderService(db DBLayer, reader catalog.Reader, discounts CouponPricer, ids utils.IDGenerator, clk clock.Clock, log *logger.Logger) *OrderService {
	return &OrderService{DB: db, Catalog: reader, Discounts: discounts, IDs: ids, Clock: clk, logger: log}
}

// ---------------- ORDERS ----------------

// BuildOrder validates the requested ticket types against the catalog and
// stores a pending purchase with one price-snapshot line per ticket type.
// Inventory is not touched.
func (s *OrderService) BuildOrder(ctx context.Context, req models.OrderRequest) (*models.Purchase, error) {
	// Step 1: Request shape
	items, err := normalizeItems(req)
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	purchase := &models.Purchase{
		ID:             s.IDs.NewID(),
		UserID:         req.UserID,
		EventID:        req.EventID,
		PaymentMethod:  models.PaymentMethodPending,
		Status:         models.PurchaseStatusPending,
		DiscountAmount: decimal.Zero,
		CreatedAt:      now,
	}

	// Step 2: Catalog checks per ticket type
	for _, item := range items {
		tt, err := s.Catalog.GetTicketType(ctx, item.TicketTypeID)
		if err != nil {
			return nil, err
		}
		if err := checkTicketType(tt, req.EventID, item.Quantity, now); err != nil {
			s.logger.Info("ORDER", fmt.Sprintf("Rejected order for user %s: %v", req.UserID, err))
			return nil, err
		}

		purchase.Lines = append(purchase.Lines, &models.PurchaseLine{
			ID:           s.IDs.NewID(),
			PurchaseID:   purchase.ID,
			TicketTypeID: tt.ID,
			Quantity:     item.Quantity,
			UnitPrice:    tt.UnitPrice,
		})
	}
	purchase.TotalAmount = purchase.GrossAmount()

	// Step 3: Purchase and lines in one transaction
	if err := s.DB.CreatePurchase(ctx, purchase); err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "create purchase", err)
	}

	metrics.OrdersCreated.Inc()
	s.logger.LogPurchase("CREATED", purchase.ID, fmt.Sprintf("user=%s event=%s tickets=%d total=%s",
		purchase.UserID, purchase.EventID, purchase.TicketCount(), purchase.TotalAmount.StringFixed(2)))
	return purchase, nil
}

func normalizeItems(req models.OrderRequest) ([]models.OrderItem, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, apperror.New(apperror.KindValidation, "user id is required")
	}
	if strings.TrimSpace(req.EventID) == "" {
		return nil, apperror.New(apperror.KindValidation, "eventId is required")
	}

	items := req.Items
	if req.TicketTypeID != "" || req.Quantity != 0 {
		items = append([]models.OrderItem{{TicketTypeID: req.TicketTypeID, Quantity: req.Quantity}}, items...)
	}
	if len(items) == 0 {
		return nil, apperror.New(apperror.KindValidation, "at least one ticket type is required")
	}

	// Merge repeats so min/max apply to the total per ticket type.
	merged := make(map[string]int, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.TicketTypeID) == "" {
			return nil, apperror.New(apperror.KindValidation, "ticketTypeId is required")
		}
		if item.Quantity <= 0 {
			return nil, apperror.New(apperror.KindValidation, "quantity must be greater than zero")
		}
		merged[item.TicketTypeID] += item.Quantity
	}

	out := make([]models.OrderItem, 0, len(merged))
	for id, qty := range merged {
		out = append(out, models.OrderItem{TicketTypeID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TicketTypeID < out[j].TicketTypeID })
	return out, nil
}

func checkTicketType(tt *models.TicketType, eventID string, qty int, now time.Time) error {
	if tt.EventID != eventID {
		return apperror.New(apperror.KindNotFound, fmt.Sprintf("ticket type %s not found for event %s", tt.ID, eventID))
	}
	if !tt.Active || !tt.OnSale(now) {
		return apperror.New(apperror.KindOutOfStock, fmt.Sprintf("%s is not on sale", tt.Name))
	}
	if tt.Available < qty {
		return apperror.New(apperror.KindOutOfStock, fmt.Sprintf("only %d %s tickets left", tt.Available, tt.Name))
	}
	lo, hi := tt.PurchaseLimits()
	if qty < lo || qty > hi {
		return apperror.New(apperror.KindQuantityOutOfRange, fmt.Sprintf("quantity for %s must be between %d and %d", tt.Name, lo, hi))
	}
	return nil
}

// GetOrder returns the purchase if it belongs to userID. Other users get
// NotFound so purchase ids cannot be probed.
func (s *OrderService) GetOrder(ctx context.Context, userID, purchaseID string) (*models.Purchase, error) {
	p, err := s.DB.GetPurchase(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		s.logger.LogSecurity("OWNERSHIP", fmt.Sprintf("user %s requested purchase %s", userID, purchaseID))
		return nil, apperror.New(apperror.KindNotFound, fmt.Sprintf("purchase %s not found", purchaseID))
	}
	if p.Status == models.PurchaseStatusPending && s.PaymentLocks != nil {
		locked, err := s.PaymentLocks.IsLocked(ctx, purchaseID)
		if err != nil {
			s.logger.Warn("REDIS", fmt.Sprintf("Payment lock lookup for %s failed: %v", purchaseID, err))
		}
		p.PaymentInProgress = locked
	}
	return p, nil
}

func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]models.Purchase, error) {
	purchases, err := s.DB.ListPurchasesByUser(ctx, userID)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "list purchases", err)
	}
	return purchases, nil
}

// CancelOrder deletes a pending purchase. Terminal purchases are kept.
func (s *OrderService) CancelOrder(ctx context.Context, userID, purchaseID string) error {
	p, err := s.GetOrder(ctx, userID, purchaseID)
	if err != nil {
		return err
	}
	if p.Status.Terminal() {
		return apperror.New(apperror.KindAlreadyProcessed, fmt.Sprintf("purchase is already %s", p.Status))
	}
	if p.PaymentInProgress {
		return apperror.New(apperror.KindInvalidOrderState, "a payment for this purchase is in progress")
	}

	ok, err := s.DB.DeletePendingPurchase(ctx, purchaseID)
	if err != nil {
		return apperror.Wrap(apperror.KindInternal, "cancel purchase", err)
	}
	if !ok {
		return apperror.New(apperror.KindAlreadyProcessed, "purchase was processed before it could be cancelled")
	}
	s.logger.LogPurchase("CANCELLED", purchaseID, "pending purchase deleted")
	return nil
}

// ApplyCoupon previews a code against a purchase (priced) or an event (no
// amount). It never records usage; payment revalidates the code.
func (s *OrderService) ApplyCoupon(ctx context.Context, req models.ApplyCouponRequest) (*models.CouponPreview, error) {
	if strings.TrimSpace(req.Code) == "" {
		return nil, apperror.New(apperror.KindValidation, "code is required")
	}

	eventID := req.EventID
	var lines []*models.PurchaseLine
	if req.PurchaseID != "" {
		p, err := s.GetOrder(ctx, req.UserID, req.PurchaseID)
		if err != nil {
			return nil, err
		}
		eventID, lines = p.EventID, p.Lines
	}
	if eventID == "" {
		return nil, apperror.New(apperror.KindValidation, "purchaseId or eventId is required")
	}

	var (
		ev  *discount.Evaluation
		res discount.Result
		err error
	)
	if lines != nil {
		ev, res, err = s.Discounts.Price(ctx, req.Code, eventID, lines)
	} else {
		ev, err = s.Discounts.Evaluate(ctx, req.Code, eventID)
	}
	if err != nil {
		return nil, err
	}

	preview := &models.CouponPreview{
		Code:           strings.TrimSpace(req.Code),
		Valid:          ev.Valid,
		Reason:         ev.Reason,
		DiscountValue:  decimal.Zero,
		DiscountAmount: decimal.Zero,
	}
	if ev.Coupon != nil {
		preview.DiscountKind = ev.Coupon.Kind
		preview.DiscountValue = ev.Coupon.Value
	}
	if ev.Valid && lines != nil {
		preview.DiscountAmount = res.Amount
	}
	return preview, nil
}
