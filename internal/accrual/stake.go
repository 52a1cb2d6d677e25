package accrual

import (
	"fmt"

	"github.com/holiman/uint256"

	"stakeScope/internal/num"
)

// ChangeKind is the direction of a stake change.
type ChangeKind uint8

const (
	Deposit ChangeKind = iota + 1
	Withdraw
)

func (k ChangeKind) String() string {
	switch k {
	case Deposit:
		return "deposit"
	case Withdraw:
		return "withdraw"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// StakeChange is a deposit or withdrawal of Amount stake units.
type StakeChange struct {
	Kind   ChangeKind
	Amount uint256.Int
}

// StakeChangeResult holds the snapshots to persist after a stake change.
type StakeChangeResult struct {
	Pool     Pool
	User     User
	Credited uint256.Int
	// NoStaked is set when the user had no stake before the change, so no
	// reward was withdrawn.
	NoStaked bool
}

// ApplyStakeChange rolls the pool to block, credits the user's pending
// reward, applies the change to both the user and the pool, and rebases the
// user's reward debt.
func ApplyStakeChange(pool Pool, user User, change StakeChange, block uint64, stakeDecimals uint8) (StakeChangeResult, error) {
	if err := checkMembership(user, pool); err != nil {
		return StakeChangeResult{}, err
	}

	pool, err := UpdatePool(pool, block, stakeDecimals)
	if err != nil {
		return StakeChangeResult{}, err
	}

	var res StakeChangeResult
	withdrawn, credited, err := WithdrawUserReward(user, pool, stakeDecimals)
	switch {
	case err == nil:
		user = withdrawn
		res.Credited = credited
	case IsNoStaked(err):
		res.NoStaked = true
	default:
		return StakeChangeResult{}, err
	}

	if user, pool, err = applyChange(user, pool, change); err != nil {
		return StakeChangeResult{}, err
	}
	if user, err = UpdateUserStake(user, pool, stakeDecimals); err != nil {
		return StakeChangeResult{}, err
	}

	res.Pool = pool
	res.User = user
	return res, nil
}

func applyChange(user User, pool Pool, change StakeChange) (User, Pool, error) {
	switch change.Kind {
	case Deposit:
		staked, err := addUint128(user.Staked, change.Amount)
		if err != nil {
			return User{}, Pool{}, fmt.Errorf("user stake: %w", err)
		}
		total, err := addUint128(pool.TotalStaked, change.Amount)
		if err != nil {
			return User{}, Pool{}, fmt.Errorf("pool stake: %w", err)
		}
		user.Staked, pool.TotalStaked = staked, total
	case Withdraw:
		if user.Staked.Lt(&change.Amount) {
			return User{}, Pool{}, fmt.Errorf("%w: user %s has %s, withdraw %s", ErrInsufficientStake, user.ID, user.Staked.Dec(), change.Amount.Dec())
		}
		if pool.TotalStaked.Lt(&change.Amount) {
			return User{}, Pool{}, fmt.Errorf("%w: pool %s has %s, withdraw %s", ErrInsufficientStake, pool.ID, pool.TotalStaked.Dec(), change.Amount.Dec())
		}
		user.Staked.Sub(&user.Staked, &change.Amount)
		pool.TotalStaked.Sub(&pool.TotalStaked, &change.Amount)
	default:
		return User{}, Pool{}, fmt.Errorf("%w: %s", ErrUnknownChange, change.Kind)
	}
	return user, pool, nil
}

func addUint128(a, b uint256.Int) (uint256.Int, error) {
	var sum uint256.Int
	if _, overflow := sum.AddOverflow(&a, &b); overflow || sum.BitLen() > 128 {
		return uint256.Int{}, num.ErrOverflow
	}
	return sum, nil
}
