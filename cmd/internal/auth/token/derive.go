package token

import (
	"crypto/hmac"
	"crypto/sha256"
)

// Class selects the signing key and lifetime for a token.
type Class string

const (
	ClassAccess  Class = "access"
	ClassRefresh Class = "refresh"
)

// DeriveKey derives the signing key for a token class from the master
// secret: HMAC-SHA256 keyed by the secret over the class label. Distinct
// classes never share a key, and the secret is not recoverable from the
// derived key.
func DeriveKey(masterSecret []byte, class Class) []byte {
	m := hmac.New(sha256.New, masterSecret)
	_, _ = m.Write([]byte(class))
	return m.Sum(nil)
}
