// Package redis stores ledger records in Redis as deterministic CBOR.
//
// Keys under the configured prefix:
//
//	pool:<pool_id>          pool record
//	user:<pool_id>:<user>   user record
//	pools                   set of pool ids
//	state:<name>            replay checkpoint block
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"stakeScope/internal/ledger"
	"stakeScope/internal/model"
)

// Options configures the connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type Store struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

func NewStore(ctx context.Context, opts Options, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,

		PoolSize:     10,
		MinIdleConns: 2,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}

	logger.Info("connected to redis",
		zap.String("addr", opts.Addr),
		zap.Int("db", opts.DB),
		zap.String("prefix", opts.Prefix))

	return newStore(rdb, opts.Prefix, logger), nil
}

func newStore(client *redis.Client, prefix string, logger *zap.Logger) *Store {
	return &Store{client: client, prefix: prefix, logger: logger}
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) poolKey(poolID string) string {
	return s.prefix + "pool:" + poolID
}

func (s *Store) userKey(poolID, user string) string {
	return s.prefix + "user:" + poolID + ":" + user
}

func (s *Store) poolsKey() string {
	return s.prefix + "pools"
}

func (s *Store) stateKey(name string) string {
	return s.prefix + "state:" + name
}

func (s *Store) GetPool(ctx context.Context, poolID string) (model.PoolRecord, bool, error) {
	var rec model.PoolRecord
	ok, err := s.get(ctx, s.poolKey(poolID), &rec)
	return rec, ok, err
}

func (s *Store) GetUser(ctx context.Context, poolID, user string) (model.UserRecord, bool, error) {
	var rec model.UserRecord
	ok, err := s.get(ctx, s.userKey(poolID, user), &rec)
	return rec, ok, err
}

func (s *Store) get(ctx context.Context, key string, v any) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := decode(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// CreatePool writes the pool record and its pools-set entry in one
// MULTI/EXEC, so a pool is never stored without being listed.
func (s *Store) CreatePool(ctx context.Context, rec model.PoolRecord) error {
	data, err := encode(rec)
	if err != nil {
		return fmt.Errorf("encode pool: %w", err)
	}

	poolKey := s.poolKey(rec.ID)
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, poolKey).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %s", ledger.ErrPoolExists, rec.ID)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, poolKey, data, 0)
			pipe.SAdd(ctx, s.poolsKey(), rec.ID)
			return nil
		})
		return err
	}, poolKey)
	// The watched key only changes when another writer created the pool.
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: %s", ledger.ErrPoolExists, rec.ID)
	}
	return err
}

// Commit writes the pool and user in one MULTI/EXEC. The pool key is watched
// so a pool deleted in between aborts the write.
func (s *Store) Commit(ctx context.Context, pool model.PoolRecord, user model.UserRecord) error {
	poolData, err := encode(pool)
	if err != nil {
		return fmt.Errorf("encode pool: %w", err)
	}
	userData, err := encode(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	poolKey := s.poolKey(pool.ID)
	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, poolKey).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ledger.ErrPoolNotFound, pool.ID)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, poolKey, poolData, 0)
			pipe.Set(ctx, s.userKey(user.PoolID, user.User), userData, 0)
			return nil
		})
		return err
	}, poolKey)
}

// ListPools returns every pool ordered by id.
func (s *Store) ListPools(ctx context.Context) ([]model.PoolRecord, error) {
	ids, err := s.client.SMembers(ctx, s.poolsKey()).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)

	out := make([]model.PoolRecord, 0, len(ids))
	for _, id := range ids {
		rec, ok, err := s.GetPool(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			s.logger.Warn("pool listed but missing", zap.String("pool_id", id))
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// LoadState returns the last replayed block for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	raw, err := s.client.Get(ctx, s.stateKey(name)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, err
	}
	block, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse state %s: %w", name, err)
	}
	return block, true, nil
}

// SaveState stores the last replayed block for a name.
func (s *Store) SaveState(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	return s.client.Set(ctx, s.stateKey(name), strconv.FormatUint(block, 10), 0).Err()
}
