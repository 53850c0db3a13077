package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/prroha/fullstack-starter-sub003/cmd/internal/auth/token"
	sectoken "github.com/prroha/fullstack-starter-sub003/cmd/security/token"
)

// ValidateSecurityConfig enforces the startup security policy. Fail-fast:
// a process must never come up signing tokens with a weak or missing
// secret. Lengths are measured in bytes, the keys are used as raw bytes.
func ValidateSecurityConfig(cfg Config) error {
	secret := strings.TrimSpace(cfg.AuthMasterSecret)
	if secret == "" {
		return errors.New("security policy: AUTH_MASTER_SECRET is required")
	}
	if len(secret) < token.MinMasterSecretBytes {
		return fmt.Errorf("security policy: AUTH_MASTER_SECRET must be at least %d bytes, got %d",
			token.MinMasterSecretBytes, len(secret))
	}

	if key := strings.TrimSpace(cfg.SessionTokenHashKey); key != "" && len(key) < sectoken.MinHashKeyBytes {
		return fmt.Errorf("security policy: SESSION_TOKEN_HASH_KEY must be at least %d bytes when set, got %d",
			sectoken.MinHashKeyBytes, len(key))
	}

	return nil
}
