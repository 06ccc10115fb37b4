package analytics_api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-checkout/internal/analytics"
	"ms-checkout/internal/apperror"
	"ms-checkout/internal/logger"
)

type MockReporter struct {
	mock.Mock
}

func (m *MockReporter) SalesSummary(ctx context.Context, eventID string) (*analytics.EventSales, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*analytics.EventSales), args.Error(1)
}

func newRouter(svc SalesReporter) http.Handler {
	r := chi.NewRouter()
	NewHandler(svc, logger.Nop(), false).RegisterRoutes(r)
	return r
}

func TestGetEventSales(t *testing.T) {
	svc := new(MockReporter)
	svc.On("SalesSummary", mock.Anything, "event-1").Return(&analytics.EventSales{EventID: "event-1", TicketsIssued: 4}, nil)

	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analytics/events/event-1/sales", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Success bool                 `json:"success"`
		Data    analytics.EventSales `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 4, body.Data.TicketsIssued)
	svc.AssertExpectations(t)
}

func TestGetEventSales_Error(t *testing.T) {
	svc := new(MockReporter)
	svc.On("SalesSummary", mock.Anything, "event-1").Return(nil, apperror.New(apperror.KindInternal, "db down"))

	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analytics/events/event-1/sales", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}
