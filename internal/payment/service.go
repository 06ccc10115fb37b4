package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"ms-checkout/internal/apperror"
	"ms-checkout/internal/clock"
	"ms-checkout/internal/discount"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/metrics"
	"ms-checkout/internal/models"
	"ms-checkout/internal/notification"
	"ms-checkout/internal/utils"
)

const defaultNotifyTimeout = 5 * time.Second

type PurchaseStore interface {
	GetPurchase(ctx context.Context, id string) (*models.Purchase, error)
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error
	MarkApproved(ctx context.Context, db bun.IDB, p *models.Purchase) (bool, error)
	MarkRejected(ctx context.Context, id, method, reason string, at time.Time) (bool, error)
}

type Reserver interface {
	TryReserve(ctx context.Context, db bun.IDB, ticketTypeID string, qty int) (bool, error)
}

type TicketIssuer interface {
	Issue(ctx context.Context, db bun.IDB, purchaseID string, line *models.PurchaseLine, issuedAt time.Time) ([]models.Ticket, error)
}

type CouponChecker interface {
	Price(ctx context.Context, code, eventID string, lines []*models.PurchaseLine) (*discount.Evaluation, discount.Result, error)
	Consume(ctx context.Context, db bun.IDB, c *models.Coupon) error
}

// InFlightLock keeps a second attempt away from the gateway while the first
// is still running.
type InFlightLock interface {
	LockPurchase(ctx context.Context, purchaseID, owner string) (bool, error)
	UnlockPurchase(ctx context.Context, purchaseID, owner string) error
}

// Service drives a purchase from pending to approved or rejected. Lock and
// Notifier are optional.
type Service struct {
	Purchases PurchaseStore
	Inventory Reserver
	Issuer    TicketIssuer
	Coupons   CouponChecker
	Gateway   Gateway
	Lock      InFlightLock
	Notifier  notification.Notifier
	IDs       utils.IDGenerator
	Clock     clock.Clock
	Logger    *logger.Logger

	NotifyTimeout time.Duration
}

func NewService(purchases PurchaseStore, inventory Reserver, issuer TicketIssuer, coupons CouponChecker,
	gateway Gateway, ids utils.IDGenerator, clk clock.Clock, log *logger.Logger) *Service {
	return &Service{
		Purchases:     purchases,
		Inventory:     inventory,
		Issuer:        issuer,
		Coupons:       coupons,
		Gateway:       gateway,
		IDs:           ids,
		Clock:         clk,
		Logger:        log,
		NotifyTimeout: defaultNotifyTimeout,
	}
}

// ProcessPayment obtains one gateway verdict for a pending purchase and, on
// approval, commits stock, tickets, coupon usage and the approved state in a
// single transaction.
func (s *Service) ProcessPayment(ctx context.Context, req models.PaymentRequest) (result *models.PaymentResult, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordPayment(outcomeOf(err), time.Since(start).Seconds())
	}()

	method := strings.TrimSpace(req.Method)
	if req.UserID == "" || req.PurchaseID == "" || method == "" {
		return nil, apperror.New(apperror.KindValidation, "purchaseId, userId and paymentMethod are required")
	}

	if s.Lock != nil {
		owner := s.IDs.NewID()
		locked, lockErr := s.Lock.LockPurchase(ctx, req.PurchaseID, owner)
		switch {
		case lockErr != nil:
			s.Logger.Warn("REDIS", fmt.Sprintf("Payment lock unavailable for %s, continuing: %v", req.PurchaseID, lockErr))
		case !locked:
			return nil, apperror.New(apperror.KindAlreadyProcessed, "a payment for this purchase is already in progress")
		default:
			defer func() {
				if err := s.Lock.UnlockPurchase(context.WithoutCancel(ctx), req.PurchaseID, owner); err != nil {
					s.Logger.Warn("REDIS", fmt.Sprintf("Failed to release payment lock for %s: %v", req.PurchaseID, err))
				}
			}()
		}
	}

	p, err := s.loadPending(ctx, req.UserID, req.PurchaseID)
	if err != nil {
		return nil, err
	}

	coupon, discountAmount, err := s.revalidateCoupon(ctx, p, req.CouponCode)
	if err != nil {
		s.Logger.LogPurchase("COUPON_REJECTED", p.ID, err.Error())
		return nil, err
	}
	charge := p.GrossAmount().Sub(discountAmount)

	auth, err := s.Gateway.Authorize(ctx, AuthorizationRequest{PurchaseID: p.ID, Amount: charge, Method: method})
	if err != nil {
		s.Logger.Error("PAYMENT", fmt.Sprintf("Gateway gave no verdict for %s: %v", p.ID, err))
		return nil, apperror.Wrap(apperror.KindPaymentUnavailable, "payment gateway unavailable", err)
	}

	// The verdict is in; finish the state change even if the caller goes away.
	ctx = context.WithoutCancel(ctx)
	now := s.Clock.Now()

	if !auth.Approved {
		s.reject(ctx, p.ID, method, "declined: "+auth.Reason, now)
		return nil, apperror.New(apperror.KindPaymentDeclined, "payment declined: "+auth.Reason)
	}

	result, err = s.commit(ctx, p, method, coupon, discountAmount, charge, auth, now)
	if err != nil {
		s.abandon(ctx, p.ID, method, auth, err, now)
		return nil, err
	}

	s.Logger.LogPurchase("APPROVED", p.ID, fmt.Sprintf("tx=%s amount=%s tickets=%d",
		result.TransactionRef, result.Amount.StringFixed(2), len(result.TicketCodes)))
	s.notify(ctx, p, result)
	return result, nil
}

func (s *Service) loadPending(ctx context.Context, userID, purchaseID string) (*models.Purchase, error) {
	p, err := s.Purchases.GetPurchase(ctx, purchaseID)
	if err != nil {
		if apperror.KindOf(err) == apperror.KindNotFound {
			return nil, apperror.New(apperror.KindInvalidOrderState, fmt.Sprintf("purchase %s does not exist", purchaseID))
		}
		return nil, err
	}
	if p.UserID != userID {
		s.Logger.LogSecurity("PURCHASE_OWNERSHIP", fmt.Sprintf("User %s tried to pay for purchase %s", userID, purchaseID))
		return nil, apperror.New(apperror.KindInvalidOrderState, fmt.Sprintf("purchase %s does not exist", purchaseID))
	}
	if p.Status.Terminal() {
		return nil, apperror.New(apperror.KindAlreadyProcessed, fmt.Sprintf("purchase %s is already %s", purchaseID, p.Status))
	}
	if len(p.Lines) == 0 {
		return nil, apperror.New(apperror.KindInvalidOrderState, fmt.Sprintf("purchase %s has no lines", purchaseID))
	}
	return p, nil
}

// revalidateCoupon checks the code against the current coupon state, ignoring
// any earlier preview. No code means no discount.
func (s *Service) revalidateCoupon(ctx context.Context, p *models.Purchase, code string) (*models.Coupon, decimal.Decimal, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, decimal.Zero, nil
	}

	ev, res, err := s.Coupons.Price(ctx, code, p.EventID, p.Lines)
	if err != nil {
		if apperror.KindOf(err) == apperror.KindInternal {
			return nil, decimal.Zero, err
		}
		return nil, decimal.Zero, apperror.Wrap(apperror.KindCouponRejected, fmt.Sprintf("coupon %s rejected", code), err)
	}
	if !ev.Valid {
		return nil, decimal.Zero, apperror.New(apperror.KindCouponRejected, fmt.Sprintf("coupon %s rejected: %s", code, ev.Reason))
	}
	return ev.Coupon, res.Amount, nil
}

func (s *Service) commit(ctx context.Context, p *models.Purchase, method string, coupon *models.Coupon,
	discountAmount, charge decimal.Decimal, auth *Authorization, now time.Time) (*models.PaymentResult, error) {

	txRef := s.IDs.TransactionRef()
	approved := *p
	approved.Status = models.PurchaseStatusApproved
	approved.PaymentMethod = method
	approved.TotalAmount = charge
	approved.DiscountAmount = discountAmount
	approved.TransactionRef = &txRef
	approved.Confirmed = true
	approved.ProcessedAt = &now
	if coupon != nil {
		approved.CouponCode = &coupon.Code
	}
	if auth.Reference != "" {
		approved.GatewayRef = &auth.Reference
	}

	var codes []string
	err := s.Purchases.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		// Claim the purchase first so a concurrent commit stops before
		// touching stock.
		ok, err := s.Purchases.MarkApproved(ctx, tx, &approved)
		if err != nil {
			return apperror.Wrap(apperror.KindInternal, "approve purchase", err)
		}
		if !ok {
			return apperror.New(apperror.KindAlreadyProcessed, fmt.Sprintf("purchase %s was finalized concurrently", p.ID))
		}

		for _, line := range p.Lines {
			ok, err := s.Inventory.TryReserve(ctx, tx, line.TicketTypeID, line.Quantity)
			if err != nil {
				return asInternal("reserve inventory", err)
			}
			if !ok {
				return apperror.New(apperror.KindOversoldConflict,
					fmt.Sprintf("not enough tickets left for ticket type %s", line.TicketTypeID))
			}
		}

		for _, line := range p.Lines {
			issued, err := s.Issuer.Issue(ctx, tx, p.ID, line, now)
			if err != nil {
				return asInternal("issue tickets", err)
			}
			for _, t := range issued {
				codes = append(codes, t.Code)
			}
		}

		if coupon != nil {
			if err := s.Coupons.Consume(ctx, tx, coupon); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, asInternal("commit purchase", err)
	}

	metrics.TicketsIssued.Add(float64(len(codes)))
	if coupon != nil {
		metrics.CouponRedemptions.Inc()
	}

	return &models.PaymentResult{
		PurchaseID:     p.ID,
		Status:         models.PurchaseStatusApproved,
		TransactionRef: txRef,
		Amount:         charge,
		DiscountAmount: discountAmount,
		TicketCodes:    codes,
		ProcessedAt:    now,
	}, nil
}

// abandon cleans up after a failed commit: the authorization is released and
// the purchase rejected, unless another attempt already finalized it.
func (s *Service) abandon(ctx context.Context, purchaseID, method string, auth *Authorization, cause error, now time.Time) {
	if v, ok := s.Gateway.(Voider); ok && auth.Reference != "" {
		if err := v.Void(ctx, auth.Reference); err != nil {
			s.Logger.Error("PAYMENT", fmt.Sprintf("Failed to void %s for %s: %v", auth.Reference, purchaseID, err))
		}
	}
	if apperror.KindOf(cause) == apperror.KindAlreadyProcessed {
		s.Logger.Warn("PAYMENT", fmt.Sprintf("Purchase %s finalized by a concurrent attempt", purchaseID))
		return
	}
	s.reject(ctx, purchaseID, method, strings.ToLower(string(apperror.KindOf(cause))), now)
}

func (s *Service) reject(ctx context.Context, purchaseID, method, reason string, now time.Time) {
	ok, err := s.Purchases.MarkRejected(ctx, purchaseID, method, reason, now)
	if err != nil {
		s.Logger.Error("DATABASE", fmt.Sprintf("Failed to reject purchase %s: %v", purchaseID, err))
		return
	}
	if !ok {
		s.Logger.Warn("PAYMENT", fmt.Sprintf("Purchase %s was no longer pending when rejecting", purchaseID))
		return
	}
	s.Logger.LogPurchase("REJECTED", purchaseID, reason)
}

// notify publishes in the background; the purchase is already committed.
func (s *Service) notify(ctx context.Context, p *models.Purchase, result *models.PaymentResult) {
	if s.Notifier == nil {
		return
	}

	event := notification.PurchaseApproved{
		PurchaseID:     p.ID,
		UserID:         p.UserID,
		EventID:        p.EventID,
		TransactionRef: result.TransactionRef,
		Amount:         result.Amount,
		DiscountAmount: result.DiscountAmount,
		TicketCodes:    result.TicketCodes,
		ApprovedAt:     result.ProcessedAt,
	}
	timeout := s.NotifyTimeout
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}

	go func() {
		nctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := s.Notifier.PurchaseApproved(nctx, event); err != nil {
			s.Logger.Warn("PAYMENT", fmt.Sprintf("Approval notification for %s failed: %v", p.ID, err))
		}
	}()
}

func asInternal(msg string, err error) error {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.Wrap(apperror.KindInternal, msg, err)
}

func outcomeOf(err error) string {
	if err == nil {
		return metrics.OutcomeApproved
	}
	switch apperror.KindOf(err) {
	case apperror.KindPaymentDeclined:
		return metrics.OutcomeDeclined
	case apperror.KindOversoldConflict:
		return metrics.OutcomeOversold
	case apperror.KindCouponRejected:
		return metrics.OutcomeCoupon
	case apperror.KindPaymentUnavailable:
		return metrics.OutcomeUnavailable
	case apperror.KindAlreadyProcessed:
		return metrics.OutcomeReplay
	default:
		return metrics.OutcomeFailed
	}
}
