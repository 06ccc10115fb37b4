package discount_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-checkout/internal/apperror"
	"ms-checkout/internal/clock"
	"ms-checkout/internal/discount"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
	"ms-checkout/internal/testutil"
)

var now = time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*discount.Service, *discount.DB) {
	bunDB := testutil.NewDB(t)
	repo := discount.NewDB(bunDB)
	return discount.NewService(repo, clock.NewFixed(now), logger.Nop()), repo
}

func TestEvaluate_EventAndGlobalCoupons(t *testing.T) {
	svc, repo := newService(t)
	testutil.SeedCoupon(t, repo.Bun, "SUMMER", now, func(c *models.Coupon) { c.EventID = testutil.Ptr("event-1") })
	testutil.SeedCoupon(t, repo.Bun, "EVERYONE", now)
	ctx := context.Background()

	ev, err := svc.Evaluate(ctx, "SUMMER", "event-1")
	require.NoError(t, err)
	assert.True(t, ev.Valid)
	assert.Equal(t, models.DiscountPercentage, ev.Coupon.Kind)

	ev, err = svc.Evaluate(ctx, "SUMMER", "event-2")
	require.NoError(t, err)
	assert.False(t, ev.Valid)
	assert.Equal(t, "coupon not found for this event", ev.Reason)

	ev, err = svc.Evaluate(ctx, " EVERYONE ", "event-2")
	require.NoError(t, err)
	assert.True(t, ev.Valid)
}

func TestEvaluate_AmbiguousFailsClosed(t *testing.T) {
	svc, repo := newService(t)
	testutil.SeedCoupon(t, repo.Bun, "DUP", now, func(c *models.Coupon) { c.EventID = testutil.Ptr("event-1") })
	testutil.SeedCoupon(t, repo.Bun, "DUP", now)

	ev, err := svc.Evaluate(context.Background(), "DUP", "event-1")
	require.NoError(t, err)
	assert.False(t, ev.Valid)
	assert.Equal(t, "coupon code is ambiguous", ev.Reason)
}

func TestEvaluate_IsReadOnly(t *testing.T) {
	svc, repo := newService(t)
	c := testutil.SeedCoupon(t, repo.Bun, "ONCE", now, func(c *models.Coupon) { c.UsageCap = testutil.Ptr(1) })
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ev, err := svc.Evaluate(ctx, "ONCE", "event-1")
		require.NoError(t, err)
		assert.True(t, ev.Valid)
	}

	var stored models.Coupon
	require.NoError(t, repo.Bun.NewSelect().Model(&stored).Where("id = ?", c.ID).Scan(ctx))
	assert.Equal(t, 0, stored.CurrentUsage)
}

func TestEvaluate_EmptyCode(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Evaluate(context.Background(), "  ", "event-1")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestConsume_RespectsCap(t *testing.T) {
	svc, repo := newService(t)
	c := testutil.SeedCoupon(t, repo.Bun, "ONCE", now, func(c *models.Coupon) { c.UsageCap = testutil.Ptr(1) })
	ctx := context.Background()

	require.NoError(t, svc.Consume(ctx, nil, c))
	err := svc.Consume(ctx, nil, c)
	assert.ErrorIs(t, err, apperror.ErrCouponRejected)

	ev, err := svc.Evaluate(ctx, "ONCE", "event-1")
	require.NoError(t, err)
	assert.False(t, ev.Valid)
	assert.Equal(t, "coupon usage limit has been reached", ev.Reason)
}

func TestPrice_ScopedCouponWithoutMatchingLine(t *testing.T) {
	svc, repo := newService(t)
	testutil.SeedCoupon(t, repo.Bun, "VIPONLY", now, func(c *models.Coupon) { c.TicketTypeID = testutil.Ptr("vip") })

	ev, res, err := svc.Price(context.Background(), "VIPONLY", "event-1", []*models.PurchaseLine{
		{TicketTypeID: "general", Quantity: 1},
	})
	require.NoError(t, err)
	assert.False(t, ev.Valid)
	assert.False(t, res.Valid)
}
