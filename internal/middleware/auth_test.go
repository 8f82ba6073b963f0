package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whatsdrip/dashboard/internal/model"
)

type mockIdentitySource struct {
	currentIdentityFunc func() *model.Identity
}

func (m *mockIdentitySource) CurrentIdentity() *model.Identity {
	if m.currentIdentityFunc != nil {
		return m.currentIdentityFunc()
	}
	return nil
}

func TestAuthMiddleware(t *testing.T) {
	t.Run("rejects when signed out", func(t *testing.T) {
		mw := NewAuthMiddleware(&mockIdentitySource{})
		called := false
		handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/dashboard", nil))

		assert.False(t, called)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "NOT_SIGNED_IN", body["code"])
	})

	t.Run("passes identity through context", func(t *testing.T) {
		mw := NewAuthMiddleware(&mockIdentitySource{
			currentIdentityFunc: func() *model.Identity {
				return &model.Identity{UID: "uid-1", Email: "ops@example.com"}
			},
		})

		var seen *model.Identity
		handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetIdentity(r.Context())
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/dashboard", nil))

		require.NotNil(t, seen)
		assert.Equal(t, "uid-1", seen.UID)
	})
}

func TestRequireBearer(t *testing.T) {
	var seen string
	handler := RequireBearer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetBearerToken(r.Context())
	}))

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/x", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())
	})

	t.Run("wrong scheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/x", nil)
		req.Header.Set("Authorization", "Basic abc")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("bearer token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/x", nil)
		req.Header.Set("Authorization", "Bearer id-token")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "id-token", seen)
	})
}

func TestGetIdentity_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Nil(t, GetIdentity(req.Context()))
	assert.Empty(t, GetBearerToken(req.Context()))
}
