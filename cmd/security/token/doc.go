// Package token provides token hashing primitives.
//
// It is the single source of truth for refresh-token hashing behavior.
//
// Design goals:
// - Default dev mode: SHA-256(token) when no HMAC key is configured.
// - Keyed mode: HMAC-SHA256(token, key) when a key is injected.
// - Stable 64-char hex output for storage and constant-time comparison.
//
// The key is injected by the caller at construction; this package never
// reads the environment.
package token
