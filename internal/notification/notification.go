// Package notification tells the rest of the platform that a purchase was
// approved. Delivery is best effort; the purchase is already committed.
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ms-checkout/internal/logger"
)

// PurchaseApproved is published once per approved purchase.
type PurchaseApproved struct {
	PurchaseID     string          `json:"purchaseId"`
	UserID         string          `json:"userId"`
	EventID        string          `json:"eventId"`
	TransactionRef string          `json:"transactionRef"`
	Amount         decimal.Decimal `json:"amount"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	CouponCode     string          `json:"couponCode,omitempty"`
	TicketCodes    []string        `json:"ticketCodes"`
	ApprovedAt     time.Time       `json:"approvedAt"`
}

type Notifier interface {
	PurchaseApproved(ctx context.Context, event PurchaseApproved) error
}

// Publisher is satisfied by kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type KafkaNotifier struct {
	Publisher Publisher
	Topic     string
	Logger    *logger.Logger
}

func NewKafkaNotifier(p Publisher, topic string, log *logger.Logger) *KafkaNotifier {
	return &KafkaNotifier{Publisher: p, Topic: topic, Logger: log}
}

func (n *KafkaNotifier) PurchaseApproved(ctx context.Context, event PurchaseApproved) error {
	if err := n.Publisher.Publish(ctx, n.Topic, event.PurchaseID, event); err != nil {
		n.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish approval of %s: %v", event.PurchaseID, err))
		return err
	}
	n.Logger.LogKafka("PUBLISH", n.Topic, fmt.Sprintf("Purchase %s approved with %d tickets", event.PurchaseID, len(event.TicketCodes)))
	return nil
}

// LogNotifier only logs. Used when Kafka is disabled.
type LogNotifier struct {
	Logger *logger.Logger
}

func (n LogNotifier) PurchaseApproved(_ context.Context, event PurchaseApproved) error {
	n.Logger.LogPurchase("APPROVED", event.PurchaseID,
		fmt.Sprintf("tx=%s amount=%s tickets=%d", event.TransactionRef, event.Amount.StringFixed(2), len(event.TicketCodes)))
	return nil
}
