package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// APIKeyPrefix marks programmatic keys so the authenticator can tell them
// apart from JWTs in the same Authorization header.
const APIKeyPrefix = "tl_"

// NewAPIKey returns a fresh API key: the "tl_" prefix followed by 48 random
// bytes hex-encoded. The raw key is shown to the user exactly once; only
// its hash is stored.
func NewAPIKey() (string, error) {
	buf := make([]byte, 48)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return APIKeyPrefix + hex.EncodeToString(buf), nil
}

// HashAPIKey returns the SHA-256 hex digest of a raw API key. Storing only
// the hash keeps a leaked database from yielding usable keys.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// IsAPIKey reports whether raw carries the API key prefix.
func IsAPIKey(raw string) bool {
	return strings.HasPrefix(raw, APIKeyPrefix)
}
