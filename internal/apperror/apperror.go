// Package apperror holds the checkout error taxonomy. Every error that leaves
// a service carries a Kind with a stable code and an HTTP status.
package apperror

import (
	"errors"
	"net/http"
)

type Kind string

const (
	KindValidation         Kind = "VALIDATION_ERROR"
	KindNotFound           Kind = "NOT_FOUND"
	KindOutOfStock         Kind = "OUT_OF_STOCK"
	KindQuantityOutOfRange Kind = "QUANTITY_OUT_OF_RANGE"
	KindOversoldConflict   Kind = "OVERSOLD_CONFLICT"
	KindCouponRejected     Kind = "COUPON_REJECTED"
	KindAlreadyProcessed   Kind = "ALREADY_PROCESSED"
	KindInvalidOrderState  Kind = "INVALID_ORDER_STATE"
	KindPaymentDeclined    Kind = "PAYMENT_DECLINED"
	KindPaymentUnavailable Kind = "PAYMENT_UNAVAILABLE"
	KindInternal           Kind = "INTERNAL_FAILURE"
)

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrValidation         = &Error{Kind: KindValidation}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrOutOfStock         = &Error{Kind: KindOutOfStock}
	ErrQuantityOutOfRange = &Error{Kind: KindQuantityOutOfRange}
	ErrOversoldConflict   = &Error{Kind: KindOversoldConflict}
	ErrCouponRejected     = &Error{Kind: KindCouponRejected}
	ErrAlreadyProcessed   = &Error{Kind: KindAlreadyProcessed}
	ErrInvalidOrderState  = &Error{Kind: KindInvalidOrderState}
	ErrPaymentDeclined    = &Error{Kind: KindPaymentDeclined}
	ErrPaymentUnavailable = &Error{Kind: KindPaymentUnavailable}
	ErrInternal           = &Error{Kind: KindInternal}
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// PublicMessage is the message safe to show outside development.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal && e.Message != "" {
		return e.Message
	}
	return "internal error"
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindQuantityOutOfRange:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindOutOfStock, KindOversoldConflict, KindAlreadyProcessed, KindInvalidOrderState:
		return http.StatusConflict
	case KindCouponRejected:
		return http.StatusUnprocessableEntity
	case KindPaymentDeclined:
		return http.StatusPaymentRequired
	case KindPaymentUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
