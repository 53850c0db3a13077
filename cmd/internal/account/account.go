package account

import (
	"context"
	"strings"
	"time"
)

// Roles understood by the auth surface. Anything else is treated as a
// plain user by the admin gate.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Account is the canonical security principal as seen by the auth surface.
// It is a read model: liveness policy belongs to callers, so inactive
// accounts are returned with IsActive=false rather than filtered out.
type Account struct {
	ID        string
	Email     string
	Name      *string
	Role      string
	IsActive  bool
	CreatedAt time.Time
}

// Auth couples an account with its password hash for credential checks.
// The hash never leaves the login path.
type Auth struct {
	Account
	PasswordHash string
}

// Store is the account persistence boundary the auth surface consumes.
type Store interface {
	GetByID(ctx context.Context, id string) (*Account, error)
	// GetAuthByEmail looks up login credentials by normalized email.
	GetAuthByEmail(ctx context.Context, email string) (*Auth, error)
}

// NormalizeEmail performs case-insensitive canonicalization.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
