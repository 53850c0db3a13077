package account

import (
	"context"
	"sync"
)

// InMemoryStore is a dev/test fallback when no DB is configured. Rows are
// keyed by ID with an email index maintained on Put.
type InMemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]Auth
	byEmail map[string]string // normalized email -> id
}

// NewInMemoryStore constructs an empty in-memory account store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:    make(map[string]Auth),
		byEmail: make(map[string]string),
	}
}

// Put inserts or replaces an account with its credentials.
func (s *InMemoryStore) Put(a Auth) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[a.ID] = a
	s.byEmail[NormalizeEmail(a.Email)] = a.ID
}

// SetActive flips the active flag of an existing account.
func (s *InMemoryStore) SetActive(id string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return
	}
	a.IsActive = active
	s.byID[id] = a
}

// GetByID returns the account or ErrNotFound.
func (s *InMemoryStore) GetByID(ctx context.Context, id string) (*Account, error) {
	const op = "account.GetByID"

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, OpError{Op: op, Kind: ErrNotFound}
	}
	out := a.Account
	return &out, nil
}

// GetAuthByEmail looks up login credentials by normalized email.
func (s *InMemoryStore) GetAuthByEmail(ctx context.Context, email string) (*Auth, error) {
	const op = "account.GetAuthByEmail"

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, OpError{Op: op, Kind: ErrNotFound}
	}
	a := s.byID[id]
	out := a
	return &out, nil
}
