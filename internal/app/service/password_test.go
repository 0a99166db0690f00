package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher_RoundTrip(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	digest, err := h.Hash("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", digest)

	assert.True(t, h.Verify("hunter22", digest))
	assert.False(t, h.Verify("hunter23", digest))
	assert.False(t, h.Verify("", digest))
}

func TestBcryptHasher_RejectsEmptySecret(t *testing.T) {
	_, err := NewBcryptHasher(bcrypt.MinCost).Hash("")
	assert.Error(t, err)
}

func TestBcryptHasher_LongSecrets(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	long := strings.Repeat("a", 100)

	digest, err := h.Hash(long)
	require.NoError(t, err)

	assert.True(t, h.Verify(long, digest))
	// Bytes past 72 still matter.
	assert.False(t, h.Verify(strings.Repeat("a", 99)+"b", digest))
	assert.False(t, h.Verify(strings.Repeat("a", 72), digest))
}

func TestBcryptHasher_MultibyteSecret(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	secret := strings.Repeat("ключ", 20) // 160 bytes

	digest, err := h.Hash(secret)
	require.NoError(t, err)
	assert.True(t, h.Verify(secret, digest))
}
