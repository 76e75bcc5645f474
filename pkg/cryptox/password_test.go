package cryptox_test

import (
	"testing"

	"github.com/castellan/castellan/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	// Low cost keeps the test fast; the production default is 12.
	h := cryptox.Hasher{Cost: 4}

	hash, err := h.Hash("password123")
	require.NoError(t, err)
	require.NotEqual(t, "password123", hash)

	require.True(t, h.Verify("password123", hash))
	require.False(t, h.Verify("password124", hash))
	require.False(t, h.Verify("", hash))
}

func TestHashesAreSalted(t *testing.T) {
	h := cryptox.Hasher{Cost: 4}

	a, err := h.Hash("same-secret")
	require.NoError(t, err)
	b, err := h.Hash("same-secret")
	require.NoError(t, err)

	require.NotEqual(t, a, b)
	require.True(t, h.Verify("same-secret", a))
	require.True(t, h.Verify("same-secret", b))
}

func TestVerifyMalformedHashReturnsFalse(t *testing.T) {
	h := cryptox.Hasher{}

	require.False(t, h.Verify("anything", ""))
	require.False(t, h.Verify("anything", "not-a-bcrypt-hash"))
	require.False(t, h.Verify("anything", "$2a$xx$garbage"))
}
