package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// InMemoryStore implements Store without a database, for tests and DB-less
// development. One mutex serializes every operation including whole
// transactions, which stands in for the advisory-lock discipline of the
// Postgres store, so LockAccount is a no-op here.
type InMemoryStore struct {
	mu     sync.Mutex
	byHash map[string]*Session
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byHash: make(map[string]*Session)}
}

func (s *InMemoryStore) Create(ctx context.Context, p CreateParams) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.create(p)
}

func (s *InMemoryStore) FindByTokenHash(ctx context.Context, hash string, now time.Time) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(hash, now)
}

func (s *InMemoryStore) Touch(ctx context.Context, hash string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touch(hash, now)
}

func (s *InMemoryStore) Rotate(ctx context.Context, oldHash, newHash string, expiresAt time.Time) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rotate(oldHash, newHash, expiresAt)
}

func (s *InMemoryStore) ListByAccount(ctx context.Context, accountID string) ([]Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listByAccount(accountID), nil
}

func (s *InMemoryStore) DeleteByPublicID(ctx context.Context, accountID, publicID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteByPublicID(accountID, publicID)
}

func (s *InMemoryStore) DeleteByTokenHash(ctx context.Context, hash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteByTokenHash(hash)
}

func (s *InMemoryStore) DeleteOthers(ctx context.Context, accountID, keepHash string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteOthers(accountID, keepHash), nil
}

func (s *InMemoryStore) DeleteAllForAccount(ctx context.Context, accountID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteAllForAccount(accountID), nil
}

func (s *InMemoryStore) EvictOverCap(ctx context.Context, accountID string, keep int) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictOverCap(accountID, keep), nil
}

func (s *InMemoryStore) SweepExpired(ctx context.Context, now time.Time, limit int) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepExpired(now, limit), nil
}

func (s *InMemoryStore) LockAccount(ctx context.Context, accountID string) error {
	return ctx.Err()
}

// InTx holds the store mutex for the whole of fn and restores a snapshot
// of the data when fn fails, so a failed transaction leaves nothing
// behind.
func (s *InMemoryStore) InTx(ctx context.Context, fn func(q Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[string]*Session, len(s.byHash))
	for k, v := range s.byHash {
		copied := *v
		snapshot[k] = &copied
	}
	if err := fn(memTx{s}); err != nil {
		s.byHash = snapshot
		return err
	}
	return nil
}

// memTx exposes the unlocked operations to an InTx body while the store
// mutex is already held.
type memTx struct{ s *InMemoryStore }

func (t memTx) Create(_ context.Context, p CreateParams) (*Session, error) {
	return t.s.create(p)
}

func (t memTx) FindByTokenHash(_ context.Context, hash string, now time.Time) (*Session, error) {
	return t.s.find(hash, now)
}

func (t memTx) Touch(_ context.Context, hash string, now time.Time) error {
	return t.s.touch(hash, now)
}

func (t memTx) Rotate(_ context.Context, oldHash, newHash string, expiresAt time.Time) (*Session, error) {
	return t.s.rotate(oldHash, newHash, expiresAt)
}

func (t memTx) ListByAccount(_ context.Context, accountID string) ([]Session, error) {
	return t.s.listByAccount(accountID), nil
}

func (t memTx) DeleteByPublicID(_ context.Context, accountID, publicID string) error {
	return t.s.deleteByPublicID(accountID, publicID)
}

func (t memTx) DeleteByTokenHash(_ context.Context, hash string) error {
	return t.s.deleteByTokenHash(hash)
}

func (t memTx) DeleteOthers(_ context.Context, accountID, keepHash string) (int64, error) {
	return t.s.deleteOthers(accountID, keepHash), nil
}

func (t memTx) DeleteAllForAccount(_ context.Context, accountID string) (int64, error) {
	return t.s.deleteAllForAccount(accountID), nil
}

func (t memTx) EvictOverCap(_ context.Context, accountID string, keep int) (int64, error) {
	return t.s.evictOverCap(accountID, keep), nil
}

func (t memTx) SweepExpired(_ context.Context, now time.Time, limit int) (int64, error) {
	return t.s.sweepExpired(now, limit), nil
}

func (t memTx) LockAccount(_ context.Context, _ string) error {
	return nil
}

func (s *InMemoryStore) create(p CreateParams) (*Session, error) {
	if _, ok := s.byHash[p.RefreshTokenHash]; ok {
		return nil, ErrConflict
	}
	sess := &Session{
		ID:               ulid.Make().String(),
		PublicID:         p.PublicID,
		AccountID:        p.AccountID,
		RefreshTokenHash: p.RefreshTokenHash,
		Device:           p.Device,
		UserAgent:        p.UserAgent,
		IP:               p.IP,
		CreatedAt:        p.Now,
		LastActiveAt:     p.Now,
		ExpiresAt:        p.ExpiresAt,
	}
	s.byHash[p.RefreshTokenHash] = sess
	return cloneSession(sess), nil
}

func (s *InMemoryStore) find(hash string, now time.Time) (*Session, error) {
	v, ok := s.byHash[hash]
	if !ok || !v.ExpiresAt.After(now) {
		return nil, ErrNotFound
	}
	return cloneSession(v), nil
}

func (s *InMemoryStore) touch(hash string, now time.Time) error {
	v, ok := s.byHash[hash]
	if !ok {
		return ErrNotFound
	}
	v.LastActiveAt = now
	return nil
}

func (s *InMemoryStore) rotate(oldHash, newHash string, expiresAt time.Time) (*Session, error) {
	v, ok := s.byHash[oldHash]
	if !ok {
		return nil, ErrNotFound
	}
	if _, exists := s.byHash[newHash]; exists && newHash != oldHash {
		return nil, ErrConflict
	}
	delete(s.byHash, oldHash)
	v.RefreshTokenHash = newHash
	v.ExpiresAt = expiresAt
	s.byHash[newHash] = v
	return cloneSession(v), nil
}

func (s *InMemoryStore) listByAccount(accountID string) []Session {
	var out []Session
	for _, v := range s.byHash {
		if v.AccountID == accountID {
			out = append(out, *cloneSession(v))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastActiveAt.Equal(out[j].LastActiveAt) {
			return out[i].LastActiveAt.After(out[j].LastActiveAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (s *InMemoryStore) deleteByPublicID(accountID, publicID string) error {
	for hash, v := range s.byHash {
		if v.PublicID != publicID {
			continue
		}
		if v.AccountID != accountID {
			return ErrForbidden
		}
		delete(s.byHash, hash)
		return nil
	}
	return ErrNotFound
}

func (s *InMemoryStore) deleteByTokenHash(hash string) error {
	if _, ok := s.byHash[hash]; !ok {
		return ErrNotFound
	}
	delete(s.byHash, hash)
	return nil
}

func (s *InMemoryStore) deleteOthers(accountID, keepHash string) int64 {
	var n int64
	for hash, v := range s.byHash {
		if v.AccountID == accountID && hash != keepHash {
			delete(s.byHash, hash)
			n++
		}
	}
	return n
}

func (s *InMemoryStore) deleteAllForAccount(accountID string) int64 {
	var n int64
	for hash, v := range s.byHash {
		if v.AccountID == accountID {
			delete(s.byHash, hash)
			n++
		}
	}
	return n
}

func (s *InMemoryStore) evictOverCap(accountID string, keep int) int64 {
	if keep < 0 {
		keep = 0
	}
	ranked := s.listByAccount(accountID)
	var n int64
	for i := keep; i < len(ranked); i++ {
		delete(s.byHash, ranked[i].RefreshTokenHash)
		n++
	}
	return n
}

func (s *InMemoryStore) sweepExpired(now time.Time, limit int) int64 {
	if limit < 1 {
		limit = DefaultSweepBatchSize
	}
	var expired []Session
	for _, v := range s.byHash {
		if !v.ExpiresAt.After(now) {
			expired = append(expired, *v)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].ExpiresAt.Before(expired[j].ExpiresAt)
	})
	if len(expired) > limit {
		expired = expired[:limit]
	}
	for _, v := range expired {
		delete(s.byHash, v.RefreshTokenHash)
	}
	return int64(len(expired))
}

func cloneSession(v *Session) *Session {
	c := *v
	return &c
}
