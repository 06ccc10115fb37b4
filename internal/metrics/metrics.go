package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Payment outcomes used as the "outcome" label.
const (
	OutcomeApproved    = "approved"
	OutcomeDeclined    = "declined"
	OutcomeOversold    = "oversold"
	OutcomeCoupon      = "coupon_rejected"
	OutcomeUnavailable = "gateway_unavailable"
	OutcomeReplay      = "already_processed"
	OutcomeFailed      = "failed"
)

var (
	OrdersCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkout_orders_created_total",
			Help: "Pending purchases created",
		},
	)

	PaymentsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_payments_total",
			Help: "Payment attempts by outcome",
		},
		[]string{"outcome"},
	)

	PaymentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "checkout_payment_duration_seconds",
			Help: "Duration of ProcessPayment calls in seconds",
			Buckets: []float64{
				0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0,
			},
		},
		[]string{"outcome"},
	)

	TicketsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkout_tickets_issued_total",
			Help: "Tickets minted by approved purchases",
		},
	)

	CouponRedemptions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkout_coupon_redemptions_total",
			Help: "Coupon uses committed with an approved purchase",
		},
	)

	TicketCheckIns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_ticket_checkins_total",
			Help: "Ticket check-in attempts by result",
		},
		[]string{"result"},
	)
)

// RecordPayment records one ProcessPayment call.
func RecordPayment(outcome string, seconds float64) {
	PaymentsProcessed.WithLabelValues(outcome).Inc()
	PaymentDuration.WithLabelValues(outcome).Observe(seconds)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
