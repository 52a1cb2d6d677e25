package ledger

import (
	"context"
	"errors"

	"stakeScope/internal/model"
)

var (
	ErrPoolNotFound = errors.New("pool not found")
	ErrPoolExists   = errors.New("pool already exists")
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidEvent = errors.New("invalid stake event")
)

// Store persists pool and user records.
//
// Commit must write the pool and the user together or not at all.
type Store interface {
	GetPool(ctx context.Context, poolID string) (model.PoolRecord, bool, error)
	GetUser(ctx context.Context, poolID, user string) (model.UserRecord, bool, error)
	// CreatePool returns ErrPoolExists when the id is taken.
	CreatePool(ctx context.Context, pool model.PoolRecord) error
	Commit(ctx context.Context, pool model.PoolRecord, user model.UserRecord) error
}
