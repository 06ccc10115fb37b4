package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ms-checkout/internal/config"
	"ms-checkout/internal/logger"
)

// AuthorizationRequest asks for one verdict. PurchaseID doubles as the
// gateway idempotency key.
type AuthorizationRequest struct {
	PurchaseID string
	Amount     decimal.Decimal
	Method     string
}

// Authorization is the gateway verdict. Reference identifies the
// authorization at the gateway and is kept as the purchase's gateway_ref.
type Authorization struct {
	Approved  bool
	Reference string
	Reason    string
}

// Gateway returns an error only when no verdict was obtained.
//
// A caller that got an error may retry with the same PurchaseID. An
// implementation must treat PurchaseID as an idempotency key: a repeated
// request with the same PurchaseID, Amount and Method returns the verdict
// already given instead of charging again. That is what keeps a retry after
// PAYMENT_UNAVAILABLE at most one charge per purchase.
type Gateway interface {
	Authorize(ctx context.Context, req AuthorizationRequest) (*Authorization, error)
}

// Voider is implemented by gateways that can release an authorization whose
// commit failed.
type Voider interface {
	Void(ctx context.Context, reference string) error
}

const defaultDedupeWindow = 24 * time.Hour

// SimulatedGateway approves everything except configured decline methods and
// amounts above MaxAmount. Verdicts are remembered per PurchaseID for
// DedupeWindow.
type SimulatedGateway struct {
	Latency        time.Duration
	DeclineMethods map[string]bool
	MaxAmount      decimal.Decimal
	DedupeWindow   time.Duration
	Logger         *logger.Logger

	mu       sync.Mutex
	verdicts map[string]pastVerdict
	now      func() time.Time
}

type pastVerdict struct {
	amount decimal.Decimal
	method string
	auth   Authorization
	at     time.Time
}

func NewSimulatedGateway(cfg config.PaymentConfig, log *logger.Logger) (*SimulatedGateway, error) {
	g := &SimulatedGateway{
		Latency:        cfg.GatewayLatency,
		DeclineMethods: make(map[string]bool, len(cfg.DeclineMethods)),
		DedupeWindow:   defaultDedupeWindow,
		Logger:         log,
		verdicts:       make(map[string]pastVerdict),
		now:            time.Now,
	}
	for _, m := range cfg.DeclineMethods {
		g.DeclineMethods[strings.ToLower(strings.TrimSpace(m))] = true
	}
	if cfg.MaxAmount != "" {
		limit, err := decimal.NewFromString(cfg.MaxAmount)
		if err != nil {
			return nil, fmt.Errorf("invalid PAYMENT_MAX_AMOUNT %q: %w", cfg.MaxAmount, err)
		}
		g.MaxAmount = limit
	}
	return g, nil
}

func (g *SimulatedGateway) Authorize(ctx context.Context, req AuthorizationRequest) (*Authorization, error) {
	if g.Latency > 0 {
		timer := time.NewTimer(g.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("gateway: %w", ctx.Err())
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("gateway: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.prune(now)
	if past, ok := g.verdicts[req.PurchaseID]; ok && past.amount.Equal(req.Amount) && past.method == req.Method {
		g.Logger.Info("PAYMENT", fmt.Sprintf("Replaying verdict for %s", req.PurchaseID))
		auth := past.auth
		return &auth, nil
	}

	auth := g.decide(req)
	g.verdicts[req.PurchaseID] = pastVerdict{amount: req.Amount, method: req.Method, auth: auth, at: now}
	return &auth, nil
}

func (g *SimulatedGateway) decide(req AuthorizationRequest) Authorization {
	switch {
	case g.DeclineMethods[strings.ToLower(req.Method)]:
		return Authorization{Reason: "card declined"}
	case g.MaxAmount.IsPositive() && req.Amount.GreaterThan(g.MaxAmount):
		return Authorization{Reason: "amount exceeds limit"}
	case req.Amount.IsNegative():
		return Authorization{Reason: "invalid amount"}
	}
	return Authorization{Approved: true, Reference: "SIM-" + uuid.NewString()}
}

// prune drops verdicts older than the dedupe window. Callers hold mu.
func (g *SimulatedGateway) prune(now time.Time) {
	window := g.DedupeWindow
	if window <= 0 {
		window = defaultDedupeWindow
	}
	for id, v := range g.verdicts {
		if now.Sub(v.at) > window {
			delete(g.verdicts, id)
		}
	}
}

func (g *SimulatedGateway) Void(_ context.Context, reference string) error {
	g.mu.Lock()
	for id, v := range g.verdicts {
		if v.auth.Reference == reference {
			delete(g.verdicts, id)
		}
	}
	g.mu.Unlock()

	g.Logger.Warn("PAYMENT", fmt.Sprintf("Voided authorization %s", reference))
	return nil
}
