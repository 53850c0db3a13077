package session

const (
	// DefaultMaxSessionsPerAccount bounds how many live sessions one
	// account may hold before the least recently active ones are evicted.
	DefaultMaxSessionsPerAccount = 10

	// DefaultSweepBatchSize is the per-batch delete limit used by the
	// expiry sweeper when the caller passes no limit of its own.
	DefaultSweepBatchSize = 500
)

// Config carries session policy. The app layer populates it from its own
// configuration; this package never reads the environment.
type Config struct {
	// MaxSessionsPerAccount caps live sessions per account. Logging in
	// past the cap evicts the least recently active sessions so that at
	// most this many remain.
	MaxSessionsPerAccount int
}

// DefaultConfig returns the policy used when the app layer supplies
// nothing of its own.
func DefaultConfig() Config {
	return Config{MaxSessionsPerAccount: DefaultMaxSessionsPerAccount}
}

func (c Config) validate() error {
	if c.MaxSessionsPerAccount < 1 {
		return ErrConfig
	}
	return nil
}
