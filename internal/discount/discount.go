package discount

import (
	"time"

	"github.com/shopspring/decimal"

	"ms-checkout/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Result is the outcome of pricing a coupon against purchase lines.
type Result struct {
	Valid              bool
	Reason             string
	Amount             decimal.Decimal
	ApplicableSubtotal decimal.Decimal
}

// Check applies the usage and time preconditions shared by previews and
// payment-time revalidation. The empty reason means the coupon is usable.
func Check(c *models.Coupon, now time.Time) string {
	switch {
	case !c.Active:
		return "coupon is not active"
	case now.Before(c.ValidFrom):
		return "coupon is not yet valid"
	case !now.Before(c.ValidUntil):
		return "coupon has expired"
	case c.UsageCap != nil && c.CurrentUsage >= *c.UsageCap:
		return "coupon usage limit has been reached"
	}
	return ""
}

// Calculate prices the coupon against the lines it applies to. A fixed
// discount is capped at the applicable subtotal; a percentage discount is
// optionally capped by MaxDiscount. Amounts are rounded to cents.
func Calculate(c *models.Coupon, lines []*models.PurchaseLine) Result {
	applicable := decimal.Zero
	matched := false
	for _, line := range lines {
		if c.TicketTypeID != nil && *c.TicketTypeID != line.TicketTypeID {
			continue
		}
		matched = true
		applicable = applicable.Add(line.Subtotal())
	}

	if c.TicketTypeID != nil && !matched {
		return Result{Reason: "coupon does not apply to any ticket type in this purchase"}
	}

	var amount decimal.Decimal
	switch c.Kind {
	case models.DiscountFixed:
		amount = decimal.Min(c.Value, applicable)
	case models.DiscountPercentage:
		if c.Value.IsNegative() || c.Value.GreaterThan(hundred) {
			return Result{Reason: "coupon percentage is out of range"}
		}
		amount = applicable.Mul(c.Value).Div(hundred)
		if c.MaxDiscount.Valid && amount.GreaterThan(c.MaxDiscount.Decimal) {
			amount = c.MaxDiscount.Decimal
		}
	default:
		return Result{Reason: "unsupported discount kind " + string(c.Kind)}
	}

	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return Result{
		Valid:              true,
		Amount:             amount.Round(2),
		ApplicableSubtotal: applicable,
	}
}
