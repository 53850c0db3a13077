// Package token mints and verifies the signed claims tokens used by the
// auth surface: short-lived access tokens and long-lived refresh tokens.
//
// Signing keys are derived per token class from a single injected master
// secret, so a token issued for one class can never verify as the other.
// Verification reports expiry, malformation, and class mismatch as
// distinct errors because callers behave differently for each.
package token
