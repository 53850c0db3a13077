// Package session implements the server-side session lifecycle: creating
// sessions at login, rotating refresh tokens, per-account caps, revocation,
// and expiry sweeping.
//
// The package never sees raw credentials and never reads the environment;
// policy arrives through Config and collaborators are injected. Stores work
// on token hashes only. The raw refresh token exists in memory just long
// enough to hash it.
package session
