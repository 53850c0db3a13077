package account

import (
	"github.com/prroha/fullstack-starter-sub003/cmd/security/password"
)

// Baseline minimum password length for this surface. The injected config
// may be stricter; it can never weaken the baseline.
const minPasswordLength = 8

// HashPassword returns a PHC-style Argon2id hash string using the injected
// configuration, with the package baseline applied to the policy.
func HashPassword(cfg password.Config, plain string) (string, error) {
	if cfg.Policy.MinLength < minPasswordLength {
		cfg.Policy.MinLength = minPasswordLength
	}
	if cfg.Policy.MaxLength <= 0 {
		cfg.Policy.MaxLength = 256
	}
	return cfg.Hash(plain)
}

// VerifyPassword checks plain against a stored PHC hash. cfg supplies the
// anti-DoS verification bounds; strict PHC parsing happens underneath.
func VerifyPassword(cfg password.Config, encodedHash, plain string) (bool, error) {
	return cfg.Verify(encodedHash, plain)
}
