// Package crypto implements the credential cipher used to store third-party
// login secrets at rest. Secrets are sealed with AES-256-GCM under a key
// derived once per process from a configured secret via scrypt. The at-rest
// format is base64(iv ‖ authTag ‖ ciphertext) with a 16-byte IV and a
// 16-byte tag, so the database never holds plaintext credentials.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"
)

const (
	ivLength      = 16 // GCM nonce size used by this format
	authTagLength = 16 // GCM tag size
	keyLength     = 32 // AES-256
)

// kdfSalt is fixed across all secrets. A per-record salt would be stronger,
// but the stored blobs carry no salt field, so changing this breaks every
// existing ciphertext.
const kdfSalt = "salt-affiliate"

// ErrIntegrity is returned by Decrypt when the authentication tag does not
// verify. It means the ciphertext was tampered with or the key is wrong,
// and must never be masked as "no secret".
var ErrIntegrity = errors.New("credential cipher: integrity check failed")

// Cipher seals and opens short secrets. The zero value is unusable; build
// one with New so the key is derived exactly once.
type Cipher struct {
	key []byte
}

// New derives the 256-bit encryption key from secret using scrypt
// (N=16384, r=8, p=1) and returns a ready Cipher. The derived key lives
// only in process memory and is never persisted.
func New(secret string) (*Cipher, error) {
	key, err := scrypt.Key([]byte(secret), []byte(kdfSalt), 16384, 8, 1, keyLength)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return &Cipher{key: key}, nil
}

// Encrypt seals plaintext and returns base64(iv ‖ tag ‖ ciphertext). An
// empty input returns the empty string without touching the cipher; callers
// store "" to mean "no secret".
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	gcm, err := c.gcm()
	if err != nil {
		return "", err
	}
	iv := make([]byte, ivLength)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	// gcm.Seal appends ciphertext ‖ tag; the stored layout wants the tag
	// between the iv and the ciphertext, so split and reorder.
	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	ct, tag := sealed[:len(sealed)-authTagLength], sealed[len(sealed)-authTagLength:]

	blob := make([]byte, 0, ivLength+authTagLength+len(ct))
	blob = append(blob, iv...)
	blob = append(blob, tag...)
	blob = append(blob, ct...)
	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt opens a blob produced by Encrypt. Empty input and malformed or
// truncated input return "" with no error (there is nothing to reveal);
// a tag mismatch returns ErrIntegrity because silent corruption must not
// look like an absent secret.
func (c *Cipher) Decrypt(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", nil
	}
	if len(blob) < ivLength+authTagLength {
		return "", nil
	}
	gcm, err := c.gcm()
	if err != nil {
		return "", err
	}
	iv := blob[:ivLength]
	tag := blob[ivLength : ivLength+authTagLength]
	ct := blob[ivLength+authTagLength:]

	// Rebuild the ciphertext ‖ tag layout gcm.Open expects.
	sealed := make([]byte, 0, len(ct)+authTagLength)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", ErrIntegrity
	}
	return string(plaintext), nil
}

func (c *Cipher) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, ivLength)
}
