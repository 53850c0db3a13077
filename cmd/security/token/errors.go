package token

import "errors"

// Public, stable errors for callers.
var (
	ErrHashKeyTooShort = errors.New("token hash key too short")
)
