package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasherRoundTrip(t *testing.T) {
	hasher := NewHasher()

	hash, err := hasher.Hash("Abcdef1!")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotContains(t, hash, "Abcdef1!")

	assert.True(t, hasher.Verify("Abcdef1!", hash))
	assert.False(t, hasher.Verify("abcdef1!", hash))
	assert.False(t, hasher.Verify("", hash))
}

func TestHasherSaltsPerCall(t *testing.T) {
	hasher := NewHasher()

	first, err := hasher.Hash("samepassword")
	require.NoError(t, err)
	second, err := hasher.Hash("samepassword")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, hasher.Verify("samepassword", first))
	assert.True(t, hasher.Verify("samepassword", second))
}

func TestHasherMalformedHash(t *testing.T) {
	hasher := NewHasher()
	assert.False(t, hasher.Verify("password", "not-a-bcrypt-hash"))
}

func TestHasherOverlongPassword(t *testing.T) {
	hasher := NewHasher()
	long := make([]byte, 100)
	for i := range long {
		long[i] = 'a'
	}
	// bcrypt rejects inputs beyond 72 bytes instead of silently truncating.
	_, err := hasher.Hash(string(long))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInternal)
}
