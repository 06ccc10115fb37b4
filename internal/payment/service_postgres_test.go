package payment_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-checkout/internal/apperror"
	"ms-checkout/internal/models"
	"ms-checkout/internal/testutil"
)

func TestProcessPayment_PostgresNoOversellUnderConcurrency(t *testing.T) {
	gw := new(MockGateway)
	approve(&gw.Mock)
	e := newEnv(testutil.NewPostgresDB(t), gw)
	tt := testutil.SeedTicketType(t, e.db, "event-1", 5)

	const buyers = 12
	ids := make([]string, buyers)
	for i := range ids {
		ids[i] = testutil.SeedPendingPurchase(t, e.db, fmt.Sprintf("user-%d", i), 1, tt).ID
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		start    = make(chan struct{})
		approved int
		oversold int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := e.svc.ProcessPayment(context.Background(), pay(fmt.Sprintf("user-%d", i), ids[i], ""))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				approved++
			case errors.Is(err, apperror.ErrOversoldConflict):
				oversold++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 5, approved)
	assert.Equal(t, buyers-5, oversold)
	assert.Equal(t, 0, e.available(t, tt.ID))
	assert.Equal(t, 5, e.ticketCount(t))

	statuses := map[models.PurchaseStatus]int{}
	for _, id := range ids {
		statuses[e.purchase(t, id).Status]++
	}
	assert.Equal(t, 5, statuses[models.PurchaseStatusApproved])
	assert.Equal(t, buyers-5, statuses[models.PurchaseStatusRejected])
}

func TestProcessPayment_PostgresMultiLineAllOrNothing(t *testing.T) {
	gw := new(MockGateway)
	approve(&gw.Mock)
	e := newEnv(testutil.NewPostgresDB(t), gw)
	plenty := testutil.SeedTicketType(t, e.db, "event-1", 10)
	scarce := testutil.SeedTicketType(t, e.db, "event-1", 1)
	p := testutil.SeedPendingPurchase(t, e.db, "user-1", 2, plenty, scarce)

	_, err := e.svc.ProcessPayment(context.Background(), pay("user-1", p.ID, ""))
	require.ErrorIs(t, err, apperror.ErrOversoldConflict)

	assert.Equal(t, 10, e.available(t, plenty.ID))
	assert.Equal(t, 1, e.available(t, scarce.ID))
	assert.Equal(t, 0, e.ticketCount(t))
	assert.Equal(t, models.PurchaseStatusRejected, e.purchase(t, p.ID).Status)
}
