package middleware

import (
	"context"
	"net/http"

	"github.com/whatsdrip/dashboard/internal/auth"
	apperrors "github.com/whatsdrip/dashboard/internal/errors"
	"github.com/whatsdrip/dashboard/internal/httputil"
	"github.com/whatsdrip/dashboard/internal/model"
)

type contextKey string

const (
	IdentityContextKey    contextKey = "identity"
	BearerTokenContextKey contextKey = "bearer_token"
)

func GetIdentity(ctx context.Context) *model.Identity {
	if user, ok := ctx.Value(IdentityContextKey).(*model.Identity); ok {
		return user
	}
	return nil
}

func GetBearerToken(ctx context.Context) string {
	token, _ := ctx.Value(BearerTokenContextKey).(string)
	return token
}

// IdentitySource reports the operator currently signed in, if any.
type IdentitySource interface {
	CurrentIdentity() *model.Identity
}

// AuthMiddleware lets a request through only while an operator session is
// signed in.
type AuthMiddleware struct {
	source IdentitySource
}

func NewAuthMiddleware(source IdentitySource) *AuthMiddleware {
	return &AuthMiddleware{source: source}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := m.source.CurrentIdentity()
		if user == nil {
			httputil.WriteError(w, apperrors.NotSignedIn())
			return
		}

		ctx := context.WithValue(r.Context(), IdentityContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireBearer requires the caller's own Authorization: Bearer header and
// passes the token on in the request context.
func RequireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.BearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}

		ctx := context.WithValue(r.Context(), BearerTokenContextKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
