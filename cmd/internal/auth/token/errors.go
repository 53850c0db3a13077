package token

import "errors"

// Public, stable errors for callers. Verify keeps the three failure kinds
// distinguishable; the gate maps each to a different user-visible code.
var (
	ErrExpired        = errors.New("token expired")
	ErrMalformed      = errors.New("token malformed")
	ErrWrongClass     = errors.New("token class mismatch")
	ErrSecretTooShort = errors.New("master secret too short")
)
