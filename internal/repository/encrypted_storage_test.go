package repository

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whatsdrip/dashboard/internal/util"
)

func TestEncryptedStorage(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	cipher, err := util.NewCipher(strings.Repeat("0f", 32))
	require.NoError(t, err)

	plain := NewLocalStorageRepository(db.DB)
	repo := NewEncryptedStorage(plain, cipher)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "authToken", "tok-secret"))

	value, ok, err := repo.Get(ctx, "authToken")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok-secret", value)

	raw, ok, err := plain.Get(ctx, "authToken")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEqual(t, "tok-secret", raw)

	require.NoError(t, repo.Remove(ctx, "authToken"))
	_, ok, err = repo.Get(ctx, "authToken")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEncryptedStorage_UnreadableValue(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	cipher, err := util.NewCipher(strings.Repeat("0f", 32))
	require.NoError(t, err)

	plain := NewLocalStorageRepository(db.DB)
	require.NoError(t, plain.Set(context.Background(), "authToken", "written-before-encryption"))

	_, ok, err := NewEncryptedStorage(plain, cipher).Get(context.Background(), "authToken")
	assert.Error(t, err)
	assert.False(t, ok)
}
