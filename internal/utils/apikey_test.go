package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAPIKey_FormatAndUniqueness(t *testing.T) {
	k1, err := NewAPIKey()
	require.NoError(t, err)
	k2, err := NewAPIKey()
	require.NoError(t, err)

	assert.True(t, IsAPIKey(k1))
	assert.Len(t, k1, len(APIKeyPrefix)+96) // 48 bytes hex-encoded
	assert.NotEqual(t, k1, k2)
}

func TestHashAPIKey_DeterministicHex(t *testing.T) {
	h1 := HashAPIKey("tl_abc")
	h2 := HashAPIKey("tl_abc")

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64) // sha256 hex
	assert.NotEqual(t, h1, HashAPIKey("tl_abd"))
}

func TestIsAPIKey(t *testing.T) {
	assert.True(t, IsAPIKey("tl_anything"))
	assert.False(t, IsAPIKey("eyJhbGciOi")) // a JWT is not a key
	assert.False(t, IsAPIKey(""))
}
