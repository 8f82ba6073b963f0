// Package identity talks to the external identity provider that issues the
// operator's bearer tokens.
package identity

import (
	"context"

	"github.com/whatsdrip/dashboard/internal/model"
)

// AuthStateListener receives the signed-in identity, or nil on sign-out.
type AuthStateListener func(user *model.Identity)

type Provider interface {
	// OnAuthStateChanged registers fn and, once the provider has finished
	// restoring any persisted session, calls it with the current state.
	OnAuthStateChanged(fn AuthStateListener) (unsubscribe func())
	// IDToken returns the current user's token. forceRefresh skips the cache.
	IDToken(ctx context.Context, forceRefresh bool) (string, error)
	SignIn(ctx context.Context, email, password string) (*model.Identity, error)
	SignOut(ctx context.Context) error
	CurrentUser() *model.Identity
}
