package apperror

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKindThroughWrapping(t *testing.T) {
	err := fmt.Errorf("build order: %w", New(KindOutOfStock, "only 2 tickets left"))

	assert.ErrorIs(t, err, ErrOutOfStock)
	assert.NotErrorIs(t, err, ErrOversoldConflict)
	assert.Equal(t, KindOutOfStock, KindOf(err))
}

func TestError_UnwrapKeepsCause(t *testing.T) {
	err := Wrap(KindInternal, "load purchase", sql.ErrConnDone)

	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.Equal(t, "load purchase: "+sql.ErrConnDone.Error(), err.Error())
}

func TestKindOf_DefaultsToInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestPublicMessage_HidesInternalDetail(t *testing.T) {
	assert.Equal(t, "internal error", PublicMessage(Wrap(KindInternal, "insert tickets", errors.New("pq: deadlock"))))
	assert.Equal(t, "internal error", PublicMessage(errors.New("raw")))
	assert.Equal(t, "coupon expired", PublicMessage(New(KindCouponRejected, "coupon expired")))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:         http.StatusBadRequest,
		KindNotFound:           http.StatusNotFound,
		KindOversoldConflict:   http.StatusConflict,
		KindAlreadyProcessed:   http.StatusConflict,
		KindCouponRejected:     http.StatusUnprocessableEntity,
		KindPaymentDeclined:    http.StatusPaymentRequired,
		KindPaymentUnavailable: http.StatusBadGateway,
		KindInternal:           http.StatusInternalServerError,
	}
	for kind, status := range cases {
		assert.Equal(t, status, HTTPStatus(kind), kind)
	}
}
