package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-checkout/internal/logger"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte("any-key"))
	require.NoError(t, err)
	return s
}

func TestExtractTokenFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
		err    error
	}{
		{"missing", "", "", ErrMissingToken},
		{"wrong scheme", "Basic abc", "", ErrBadHeader},
		{"too many parts", "Bearer a b", "", ErrBadHeader},
		{"ok", "Bearer abc.def.ghi", "abc.def.ghi", nil},
		{"lower case scheme", "bearer abc", "abc", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}
			got, err := ExtractTokenFromRequest(r)
			assert.Equal(t, tc.want, got)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestUnverifiedVerifier(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	v := UnverifiedVerifier{Now: func() time.Time { return now }}
	ctx := context.Background()

	claims, err := v.Verify(ctx, signedToken(t, jwt.MapClaims{
		"sub":          "user-42",
		"realm_access": map[string]interface{}{"roles": []string{"scanner", "user"}},
	}))
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.Subject)
	assert.True(t, claims.HasRole("SCANNER"))
	assert.False(t, claims.HasRole("admin"))

	_, err = v.Verify(ctx, signedToken(t, jwt.MapClaims{"name": "no subject"}))
	assert.ErrorIs(t, err, ErrNoSubject)

	_, err = v.Verify(ctx, signedToken(t, jwt.MapClaims{"sub": "u", "exp": now.Add(-time.Minute).Unix()}))
	assert.Error(t, err)

	_, err = v.Verify(ctx, "not-a-jwt")
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	var seen string
	h := Middleware(UnverifiedVerifier{}, logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/purchases", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "UNAUTHORIZED", body["code"])

	req := httptest.NewRequest(http.MethodGet, "/api/purchases", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, jwt.MapClaims{"sub": "user-7"}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "user-7", seen)
}

func TestRequireRole(t *testing.T) {
	h := RequireRole("SCANNER", logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/tickets/checkin", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(WithUserID(req.Context(), "user-1")))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(WithClaims(req.Context(), &Claims{Subject: "gate-1", Roles: []string{"SCANNER"}})))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUserID_Empty(t *testing.T) {
	assert.Equal(t, "", UserID(context.Background()))
}
