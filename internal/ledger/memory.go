package ledger

import (
	"context"
	"fmt"
	"sync"

	"stakeScope/internal/model"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	pools map[string]model.PoolRecord
	users map[userKey]model.UserRecord
}

type userKey struct {
	pool string
	user string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pools: make(map[string]model.PoolRecord),
		users: make(map[userKey]model.UserRecord),
	}
}

func (s *MemoryStore) GetPool(_ context.Context, poolID string) (model.PoolRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pool, ok := s.pools[poolID]
	return pool, ok, nil
}

func (s *MemoryStore) GetUser(_ context.Context, poolID, user string) (model.UserRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[userKey{pool: poolID, user: user}]
	return rec, ok, nil
}

func (s *MemoryStore) CreatePool(_ context.Context, pool model.PoolRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pools[pool.ID]; ok {
		return fmt.Errorf("%w: %s", ErrPoolExists, pool.ID)
	}
	s.pools[pool.ID] = pool
	return nil
}

func (s *MemoryStore) Commit(_ context.Context, pool model.PoolRecord, user model.UserRecord) error {
	if user.PoolID != pool.ID {
		return fmt.Errorf("commit user of pool %s into pool %s", user.PoolID, pool.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pools[pool.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrPoolNotFound, pool.ID)
	}
	s.pools[pool.ID] = pool
	s.users[userKey{pool: user.PoolID, user: user.User}] = user
	return nil
}

// Pools returns all pool records.
func (s *MemoryStore) Pools() []model.PoolRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.PoolRecord, 0, len(s.pools))
	for _, pool := range s.pools {
		out = append(out, pool)
	}
	return out
}
