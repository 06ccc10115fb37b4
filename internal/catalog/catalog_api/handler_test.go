package catalog_api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-checkout/internal/catalog"
	"ms-checkout/internal/clock"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
	"ms-checkout/internal/testutil"
)

func TestListTicketTypes(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	later := now.Add(48 * time.Hour)

	db := testutil.NewDB(t)
	testutil.SeedTicketType(t, db, "event-1", 0, func(tt *models.TicketType) { tt.Name = "A General" })
	testutil.SeedTicketType(t, db, "event-1", 5, func(tt *models.TicketType) {
		tt.Name = "B Late"
		tt.SaleStartsAt = &later
	})
	testutil.SeedTicketType(t, db, "event-1", 5, func(tt *models.TicketType) {
		tt.Name = "C Hidden"
		tt.Active = false
	})

	r := chi.NewRouter()
	NewHandler(catalog.NewDB(db), clock.NewFixed(now), logger.Nop(), false).RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events/event-1/ticket-types", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []TicketTypeView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)

	assert.Equal(t, "A General", body.Data[0].Name)
	assert.True(t, body.Data[0].OnSale)
	assert.True(t, body.Data[0].SoldOut)

	assert.Equal(t, "B Late", body.Data[1].Name)
	assert.False(t, body.Data[1].OnSale)
	assert.False(t, body.Data[1].SoldOut)
}

func TestListTicketTypes_UnknownEvent(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(catalog.NewDB(testutil.NewDB(t)), clock.NewSystem(), logger.Nop(), false).RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events/nope/ticket-types", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
