package repository

import (
	"context"

	"github.com/whatsdrip/dashboard/internal/util"
)

type encryptedStorage struct {
	LocalStorageRepository
	cipher *util.Cipher
}

// NewEncryptedStorage seals values before they reach the underlying store.
// Keys stay in clear text.
func NewEncryptedStorage(inner LocalStorageRepository, cipher *util.Cipher) LocalStorageRepository {
	return &encryptedStorage{LocalStorageRepository: inner, cipher: cipher}
}

func (s *encryptedStorage) Get(ctx context.Context, key string) (string, bool, error) {
	sealed, ok, err := s.LocalStorageRepository.Get(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}
	value, err := s.cipher.Open(sealed)
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *encryptedStorage) Set(ctx context.Context, key, value string) error {
	sealed, err := s.cipher.Seal(value)
	if err != nil {
		return err
	}
	return s.LocalStorageRepository.Set(ctx, key, sealed)
}
