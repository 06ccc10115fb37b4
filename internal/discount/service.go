package discount

import (
	"context"
	"fmt"
	"strings"

	"github.com/uptrace/bun"

	"ms-checkout/internal/apperror"
	"ms-checkout/internal/clock"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
)

type Repository interface {
	FindByCode(ctx context.Context, code, eventID string) ([]models.Coupon, error)
	IncrementUsage(ctx context.Context, db bun.IDB, couponID string) (bool, error)
}

// Evaluation is the read-only verdict on a code for an event.
type Evaluation struct {
	Valid  bool
	Reason string
	Coupon *models.Coupon
}

type Service struct {
	Repo   Repository
	Clock  clock.Clock
	Logger *logger.Logger
}

func NewService(repo Repository, clk clock.Clock, log *logger.Logger) *Service {
	return &Service{Repo: repo, Clock: clk, Logger: log}
}

// Evaluate never writes. Usage is only counted by Consume during the
// payment commit.
func (s *Service) Evaluate(ctx context.Context, code, eventID string) (*Evaluation, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperror.New(apperror.KindValidation, "coupon code is required")
	}

	coupons, err := s.Repo.FindByCode(ctx, code, eventID)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "look up coupon", err)
	}

	switch len(coupons) {
	case 0:
		return &Evaluation{Reason: "coupon not found for this event"}, nil
	case 1:
	default:
		s.Logger.Warn("DISCOUNT", fmt.Sprintf("Ambiguous coupon code %q for event %s, refusing", code, eventID))
		return &Evaluation{Reason: "coupon code is ambiguous"}, nil
	}

	c := &coupons[0]
	if reason := Check(c, s.Clock.Now()); reason != "" {
		return &Evaluation{Reason: reason, Coupon: c}, nil
	}
	return &Evaluation{Valid: true, Coupon: c}, nil
}

// Price evaluates the code and, when valid, calculates the discount for lines.
func (s *Service) Price(ctx context.Context, code, eventID string, lines []*models.PurchaseLine) (*Evaluation, Result, error) {
	ev, err := s.Evaluate(ctx, code, eventID)
	if err != nil {
		return nil, Result{}, err
	}
	if !ev.Valid {
		return ev, Result{Reason: ev.Reason}, nil
	}
	res := Calculate(ev.Coupon, lines)
	if !res.Valid {
		return &Evaluation{Reason: res.Reason, Coupon: ev.Coupon}, res, nil
	}
	return ev, res, nil
}

// Consume records one use of c inside db, which should be the commit
// transaction. It fails with CouponRejected when a concurrent commit used
// the last slot or the coupon was deactivated.
func (s *Service) Consume(ctx context.Context, db bun.IDB, c *models.Coupon) error {
	ok, err := s.Repo.IncrementUsage(ctx, db, c.ID)
	if err != nil {
		return apperror.Wrap(apperror.KindInternal, "consume coupon", err)
	}
	if !ok {
		return apperror.New(apperror.KindCouponRejected, "coupon usage limit has been reached")
	}
	return nil
}
