package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/whatsdrip/dashboard/internal/errors"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   apperrors.ErrorCode
	}{
		{"auth required", apperrors.AuthRequired(), http.StatusUnauthorized, apperrors.ErrCodeAuthRequired},
		{"session expired", apperrors.SessionExpired(nil), http.StatusUnauthorized, apperrors.ErrCodeSessionExpired},
		{"missing field", apperrors.MissingRequired("name"), http.StatusBadRequest, apperrors.ErrCodeMissingRequired},
		{"not found", apperrors.Remote(404, "Campaign not found", nil), http.StatusNotFound, apperrors.ErrCodeNotFound},
		{"backend 500", apperrors.Remote(500, "boom", nil), http.StatusBadGateway, apperrors.ErrCodeRemoteCall},
		{"backend 409", apperrors.Remote(409, "conflict", nil), http.StatusConflict, apperrors.ErrCodeRemoteCall},
		{"transport", apperrors.Remote(0, "dial tcp", nil), http.StatusBadGateway, apperrors.ErrCodeRemoteCall},
		{"plain error", errors.New("secret detail"), http.StatusInternalServerError, apperrors.ErrCodeInternal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tc.err)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.code, body.Code)
			assert.NotContains(t, body.Error, "secret detail")
		})
	}
}
