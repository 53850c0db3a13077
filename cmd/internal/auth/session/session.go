package session

import (
	"net"
	"time"
)

// Session is one logged-in device for an account.
//
// ID is the storage key and never leaves the server. PublicID is the
// opaque handle clients see in listings and in token claims; revocation is
// addressed by it. RefreshTokenHash holds only the digest of the current
// refresh token, never the token itself.
type Session struct {
	ID               string
	PublicID         string
	AccountID        string
	RefreshTokenHash string
	Device           Device
	UserAgent        *string
	IP               *net.IP
	CreatedAt        time.Time
	LastActiveAt     time.Time
	ExpiresAt        time.Time
}

// CreateParams carries everything needed to insert a session row. The
// store assigns the storage id itself.
type CreateParams struct {
	PublicID         string
	AccountID        string
	RefreshTokenHash string
	Device           Device
	UserAgent        *string
	IP               *net.IP
	Now              time.Time
	ExpiresAt        time.Time
}
