package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

// MinSecretBytes is the smallest allowed entropy for a raw refresh secret.
// 32 bytes = 256 bits before hashing.
const MinSecretBytes = 32

// ErrSecretTooShort is returned when a refresh secret is requested with
// less entropy than MinSecretBytes.
var ErrSecretTooShort = errors.New("refresh secret entropy below minimum")

// Hasher produces storable fingerprints of raw refresh secrets.
//
// With a key it computes HMAC-SHA256; without one it falls back to plain
// SHA-256, which is acceptable for development only. Fingerprints are
// compared by re-hashing an incoming raw secret, never by decrypting
// stored data.
type Hasher struct {
	key []byte
}

// NewHasher builds a Hasher. key may be nil for the SHA-256 fallback.
func NewHasher(key []byte) *Hasher {
	if len(key) == 0 {
		return &Hasher{}
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Hasher{key: k}
}

// Keyed reports whether the hasher runs in HMAC mode.
func (h *Hasher) Keyed() bool { return len(h.key) > 0 }

// Hash returns the hex fingerprint of a raw refresh secret.
func (h *Hasher) Hash(secret string) string {
	if len(h.key) == 0 {
		sum := sha256.Sum256([]byte(secret))
		return hex.EncodeToString(sum[:])
	}
	m := hmac.New(sha256.New, h.key)
	_, _ = m.Write([]byte(secret))
	return hex.EncodeToString(m.Sum(nil))
}

// NewSecret generates a raw refresh secret with nBytes of entropy,
// encoded URL-safe without padding.
func NewSecret(nBytes int) (string, error) {
	if nBytes < MinSecretBytes {
		return "", ErrSecretTooShort
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
