package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-checkout/internal/apperror"
)

func TestUUIDGenerator_Formats(t *testing.T) {
	g := NewUUIDGenerator()

	ref := g.TransactionRef()
	assert.True(t, strings.HasPrefix(ref, "TX-"))
	assert.Len(t, ref, 35)

	code := g.TicketCode()
	assert.True(t, strings.HasPrefix(code, "QR-"))
	assert.NotEqual(t, code, g.TicketCode())
	assert.Len(t, g.NewID(), 36)
}

func TestWriteError_HidesDetailOutsideDevelopment(t *testing.T) {
	err := apperror.Wrap(apperror.KindInternal, "commit purchase", errors.New("pq: connection reset"))

	rec := httptest.NewRecorder()
	WriteError(rec, err, false)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "INTERNAL_FAILURE", resp.Code)
	assert.Equal(t, "internal error", resp.Message)
	assert.Empty(t, resp.Error)

	rec = httptest.NewRecorder()
	WriteError(rec, err, true)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "connection reset")
}

func TestWriteError_DomainKind(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, apperror.New(apperror.KindOutOfStock, "only 2 tickets left"), false)

	assert.Equal(t, http.StatusConflict, rec.Code)
	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "OUT_OF_STOCK", resp.Code)
	assert.Equal(t, "only 2 tickets left", resp.Message)
}
