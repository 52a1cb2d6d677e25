package accrual

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownPoolType   = errors.New("unknown pool type")
	ErrBlockRegression   = errors.New("block height regression")
	ErrInsufficientStake = errors.New("insufficient stake")
	ErrPoolMismatch      = errors.New("user does not belong to pool")
	ErrUnknownChange     = errors.New("unknown stake change")
)

// NoStakedError reports a reward withdrawal for a user without stake. It is
// an expected branch, not a sign of corrupted state.
type NoStakedError struct {
	PoolID string
}

func (e *NoStakedError) Error() string {
	return fmt.Sprintf("no staked in pool %s", e.PoolID)
}

// IsNoStaked reports whether err carries a NoStakedError.
func IsNoStaked(err error) bool {
	var target *NoStakedError
	return errors.As(err, &target)
}
