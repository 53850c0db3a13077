package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// MinHashKeyBytes is the minimum accepted HMAC key length.
const MinHashKeyBytes = 32

// HashSHA256Hex returns a SHA-256 hex digest of s.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashHMACSHA256Hex returns an HMAC-SHA256 hex digest of s using key.
func HashHMACSHA256Hex(s string, key []byte) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(s))
	return hex.EncodeToString(m.Sum(nil))
}

// Hasher hashes refresh tokens for server-side storage. With a key it uses
// HMAC-SHA256; without one it falls back to plain SHA-256 for dev setups.
type Hasher struct {
	key []byte
}

// NewHasher builds a Hasher from an optional key. An empty key selects the
// unkeyed SHA-256 mode. A non-empty key shorter than MinHashKeyBytes is
// rejected so a truncated secret cannot silently weaken stored hashes.
func NewHasher(key []byte) (*Hasher, error) {
	if len(key) > 0 && len(key) < MinHashKeyBytes {
		return nil, ErrHashKeyTooShort
	}
	h := &Hasher{}
	if len(key) > 0 {
		h.key = append([]byte(nil), key...)
	}
	return h, nil
}

// Hash returns the storage digest for a raw token: 64 hex chars in both modes.
func (h *Hasher) Hash(raw string) string {
	if h == nil || len(h.key) == 0 {
		return HashSHA256Hex(raw)
	}
	return HashHMACSHA256Hex(raw, h.key)
}

// Keyed reports whether HMAC mode is active.
func (h *Hasher) Keyed() bool {
	return h != nil && len(h.key) > 0
}
