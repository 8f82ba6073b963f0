package httputil

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/whatsdrip/dashboard/internal/errors"
)

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string              `json:"error"`
	Code    apperrors.ErrorCode `json:"code"`
	Details any                 `json:"details,omitempty"`
}

// WriteError writes an AppError as an HTTP response with appropriate status code
func WriteError(w http.ResponseWriter, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = apperrors.Internal("An unexpected error occurred")
	}

	WriteJSON(w, StatusFromError(appErr), ErrorResponse{
		Error:   appErr.Message,
		Code:    appErr.Code,
		Details: appErr.Details,
	})
}

// StatusFromError prefers the backend status carried by remote errors and
// falls back to the code mapping.
func StatusFromError(appErr *apperrors.AppError) int {
	if appErr.Code == apperrors.ErrCodeRemoteCall {
		if appErr.Status >= 500 || appErr.Status == 0 {
			return http.StatusBadGateway
		}
		return appErr.Status
	}
	return statusFromCode(appErr.Code)
}

func statusFromCode(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeValidation,
		apperrors.ErrCodeInvalidInput,
		apperrors.ErrCodeMissingRequired,
		apperrors.ErrCodeConfirmationRequired:
		return http.StatusBadRequest

	case apperrors.ErrCodeAuthRequired,
		apperrors.ErrCodeSessionExpired,
		apperrors.ErrCodeUnauthorized,
		apperrors.ErrCodeNotSignedIn:
		return http.StatusUnauthorized

	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound

	case apperrors.ErrCodeInvalidFormat:
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}
