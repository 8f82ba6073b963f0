package auth

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	apperrors "github.com/whatsdrip/dashboard/internal/errors"
	"github.com/whatsdrip/dashboard/internal/repository"
	"github.com/whatsdrip/dashboard/internal/util"
)

// TokenStorageKey is the local storage key holding the current identity token.
const TokenStorageKey = "authToken"

type TokenStore struct {
	storage repository.LocalStorageRepository
	reqCtx  *RequestContext
	mu      sync.Mutex
}

func NewTokenStore(storage repository.LocalStorageRepository, reqCtx *RequestContext) *TokenStore {
	return &TokenStore{
		storage: storage,
		reqCtx:  reqCtx,
	}
}

// SetToken makes token current. An empty token clears it. The in-memory
// header is updated before persistence so a storage failure never leaves
// requests using a stale token.
func (s *TokenStore) SetToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reqCtx.setToken(token)

	var err error
	if token == "" {
		err = s.storage.Remove(ctx, TokenStorageKey)
	} else {
		err = s.storage.Set(ctx, TokenStorageKey, token)
	}
	if err != nil {
		log.Error().Err(err).Bool("clear", token == "").Msg("failed to persist auth token")
		return apperrors.Storage(err)
	}

	if token != "" {
		log.Debug().Str("fingerprint", util.TokenFingerprint(token)).Msg("auth token updated")
	}
	return nil
}

func (s *TokenStore) Clear(ctx context.Context) error {
	return s.SetToken(ctx, "")
}

func (s *TokenStore) Token() string {
	return s.reqCtx.Token()
}

// Restore loads a persisted token so a restart does not need a fresh sign-in.
func (s *TokenStore) Restore(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok, err := s.storage.Get(ctx, TokenStorageKey)
	if err != nil {
		return "", apperrors.Storage(err)
	}
	if !ok {
		return "", nil
	}

	s.reqCtx.setToken(token)
	log.Info().Str("fingerprint", util.TokenFingerprint(token)).Msg("restored persisted auth token")
	return token, nil
}
