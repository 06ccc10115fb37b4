package catalog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-checkout/internal/apperror"
	"ms-checkout/internal/catalog"
	"ms-checkout/internal/models"
	"ms-checkout/internal/testutil"
)

func TestGetTicketType(t *testing.T) {
	bunDB := testutil.NewDB(t)
	seeded := testutil.SeedTicketType(t, bunDB, "event-1", 100)
	reader := catalog.NewDB(bunDB)

	tt, err := reader.GetTicketType(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, "event-1", tt.EventID)
	assert.Equal(t, 100, tt.Available)
	assert.True(t, seeded.UnitPrice.Equal(tt.UnitPrice))

	_, err = reader.GetTicketType(context.Background(), "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestListTicketTypes(t *testing.T) {
	bunDB := testutil.NewDB(t)
	testutil.SeedTicketType(t, bunDB, "event-1", 10, func(tt *models.TicketType) { tt.Name = "VIP" })
	testutil.SeedTicketType(t, bunDB, "event-1", 10, func(tt *models.TicketType) { tt.Name = "General" })
	testutil.SeedTicketType(t, bunDB, "event-2", 10)
	reader := catalog.NewDB(bunDB)

	types, err := reader.ListTicketTypes(context.Background(), "event-1")
	require.NoError(t, err)
	require.Len(t, types, 2)
	assert.Equal(t, "General", types[0].Name)
	assert.Equal(t, "VIP", types[1].Name)

	types, err = reader.ListTicketTypes(context.Background(), "event-3")
	require.NoError(t, err)
	assert.Empty(t, types)
}
