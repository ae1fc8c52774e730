package utils // package utils provides helper functions for token creation and hashing

import (
	"errors" // sentinel errors for token verification failures
	"time"   // time utilities for generating expirations

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// ErrInvalidToken is returned when a token fails signature verification,
// has expired, or does not decode to a well-formed subject id. Callers get
// one error for all three cases so responses cannot be used as an oracle
// for which sub-check failed.
var ErrInvalidToken = errors.New("invalid or expired token")

// GenerateToken builds and signs an HS256 JWT binding the given user id.
// The claim name is "userId" rather than the registered "sub" claim because
// that is the wire format existing clients and stored sessions carry.
// Claims: userId, exp (now+ttl) and iat.
func GenerateToken(secret, userID string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"userId": userID,
		"exp":    now.Add(ttl).Unix(),
		"iat":    now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(secret))
}

// VerifyToken parses and validates a signed token and returns its subject
// user id. Verification requires all of: an HMAC signature that checks out
// under secret, an unexpired exp claim, and a non-empty string userId claim.
// Any failure collapses to ErrInvalidToken.
func VerifyToken(secret, raw string) (string, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		// Reject tokens signed with anything but HMAC; otherwise an
		// attacker could present an unsigned ("none") token.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	userID, ok := claims["userId"].(string)
	if !ok || userID == "" {
		return "", ErrInvalidToken
	}
	return userID, nil
}
