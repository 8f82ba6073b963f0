package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashToken(t *testing.T) {
	t.Run("returns 64 character hex string", func(t *testing.T) {
		assert.Len(t, HashToken("test-token"), 64)
	})

	t.Run("same input produces same hash", func(t *testing.T) {
		assert.Equal(t, HashToken("test-token"), HashToken("test-token"))
	})

	t.Run("different input produces different hash", func(t *testing.T) {
		assert.NotEqual(t, HashToken("token-1"), HashToken("token-2"))
	})
}

func TestTokenFingerprint(t *testing.T) {
	t.Run("is a prefix of the hash", func(t *testing.T) {
		fp := TokenFingerprint("eyJhbGciOi.payload.sig")
		assert.Len(t, fp, 12)
		assert.True(t, strings.HasPrefix(HashToken("eyJhbGciOi.payload.sig"), fp))
	})

	t.Run("empty token has empty fingerprint", func(t *testing.T) {
		assert.Equal(t, "", TokenFingerprint(""))
	})
}

func TestCipher(t *testing.T) {
	key := strings.Repeat("ab", 32)

	t.Run("round trips a value", func(t *testing.T) {
		c, err := NewCipher(key)
		require.NoError(t, err)

		sealed, err := c.Seal("refresh-token")
		require.NoError(t, err)
		assert.NotContains(t, sealed, "refresh-token")

		opened, err := c.Open(sealed)
		require.NoError(t, err)
		assert.Equal(t, "refresh-token", opened)
	})

	t.Run("uses a fresh nonce per seal", func(t *testing.T) {
		c, err := NewCipher(key)
		require.NoError(t, err)

		a, _ := c.Seal("same")
		b, _ := c.Seal("same")
		assert.NotEqual(t, a, b)
	})

	t.Run("rejects short key", func(t *testing.T) {
		_, err := NewCipher("abcd")
		assert.Error(t, err)
	})

	t.Run("rejects non hex key", func(t *testing.T) {
		_, err := NewCipher(strings.Repeat("zz", 32))
		assert.Error(t, err)
	})

	t.Run("rejects tampered ciphertext", func(t *testing.T) {
		c, err := NewCipher(key)
		require.NoError(t, err)

		_, err = c.Open("bm90LXNlYWxlZA==")
		assert.Error(t, err)
	})

	t.Run("rejects value sealed with another key", func(t *testing.T) {
		c1, _ := NewCipher(key)
		c2, _ := NewCipher(strings.Repeat("cd", 32))

		sealed, err := c1.Seal("secret")
		require.NoError(t, err)
		_, err = c2.Open(sealed)
		assert.Error(t, err)
	})
}

func TestNewID(t *testing.T) {
	id := NewID("template")
	assert.True(t, strings.HasPrefix(id, "template_"))
	assert.Len(t, id, len("template_")+36)
	assert.NotEqual(t, id, NewID("template"))
	assert.Len(t, NewID(""), 36)
}

func TestIsValidEnum(t *testing.T) {
	statuses := []string{"active", "paused", "draft", "completed"}
	assert.True(t, IsValidEnum("", statuses))
	assert.True(t, IsValidEnum("paused", statuses))
	assert.False(t, IsValidEnum("archived", statuses))
	assert.False(t, IsOneOf("", statuses))
	assert.True(t, IsBlank("  \t"))
	assert.False(t, IsBlank(" x "))
}

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken()
	require.NoError(t, err)
	b, err := GenerateToken()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestConstantTimeEqual(t *testing.T) {
	assert.True(t, ConstantTimeEqual("abc", "abc"))
	assert.False(t, ConstantTimeEqual("abc", "abd"))
	assert.False(t, ConstantTimeEqual("abc", ""))
}
