// Package accrual implements the reward-per-share accounting of staking pools.
//
// Every operation takes pool and user snapshots by value and returns new
// snapshots. On error the returned snapshots are zero values and the
// caller's copies are untouched, so a failed call can never be persisted by
// accident.
//
// The committing order is UpdatePool, WithdrawUserReward, the stake change,
// then UpdateUserStake. ApplyStakeChange runs that sequence as one call.
package accrual

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"stakeScope/internal/num"
)

// UpdatePool rolls the pool's accrual state forward to block.
//
// Nothing is minted when block equals the last update block, when nothing
// is staked or when the cap has been reached; only LastUpdateBlock moves.
// A block below LastUpdateBlock is rejected with ErrBlockRegression.
func UpdatePool(pool Pool, block uint64, stakeDecimals uint8) (Pool, error) {
	strategy, err := StrategyFor(pool.Type)
	if err != nil {
		return Pool{}, err
	}
	if block < pool.LastUpdateBlock {
		return Pool{}, fmt.Errorf("%w: pool %s at block %d, got %d", ErrBlockRegression, pool.ID, pool.LastUpdateBlock, block)
	}
	if block == pool.LastUpdateBlock || pool.TotalStaked.IsZero() || !pool.MintedTotal.Lt(&pool.MaxMintable) {
		pool.LastUpdateBlock = block
		return pool, nil
	}

	raw, err := beginUint(pool.EmissionRate).mul(num.FromUint64(block - pool.LastUpdateBlock)).result()
	if err != nil {
		return Pool{}, err
	}
	mintedDelta, perShareDelta, err := strategy.EffectiveReward(raw, pool, stakeDecimals)
	if err != nil {
		return Pool{}, err
	}

	minted, err := beginUint(pool.MintedTotal).add(mintedDelta).toUint128()
	if err != nil {
		return Pool{}, err
	}
	acc, err := pool.AccRewardPerShare.add(perShareDelta)
	if err != nil {
		return Pool{}, err
	}

	pool.MintedTotal = minted
	pool.AccRewardPerShare = acc
	pool.LastUpdateBlock = block
	return pool, nil
}

// WithdrawUserReward credits the reward accrued since the user's last
// rebase and returns the credited amount. The pool must already be updated
// to the current block.
func WithdrawUserReward(user User, pool Pool, stakeDecimals uint8) (User, uint256.Int, error) {
	strategy, err := StrategyFor(pool.Type)
	if err != nil {
		return User{}, uint256.Int{}, err
	}
	if err := checkMembership(user, pool); err != nil {
		return User{}, uint256.Int{}, err
	}
	if user.Staked.IsZero() {
		return User{}, uint256.Int{}, &NoStakedError{PoolID: strings.ToLower(pool.ID)}
	}

	entitled, err := strategy.Entitlement(num.FromUint256(user.Staked), pool.AccRewardPerShare.value(), stakeDecimals)
	if err != nil {
		return User{}, uint256.Int{}, err
	}
	pending, err := begin(entitled).sub(num.FromUint256(user.RewardDebt)).result()
	if err != nil {
		return User{}, uint256.Int{}, err
	}

	if pending.Sign() > 0 {
		reward, err := beginUint(user.Reward).add(pending).toUint128()
		if err != nil {
			return User{}, uint256.Int{}, err
		}
		user.Reward = reward
	}

	credited, err := pending.ToUint128(0)
	if err != nil {
		return User{}, uint256.Int{}, fmt.Errorf("pending reward of %s in pool %s: %w", user.ID, pool.ID, err)
	}
	return user, credited, nil
}

// UpdateUserStake rebases the user's reward debt on the current stake. It
// must follow the stake change, never precede it.
func UpdateUserStake(user User, pool Pool, stakeDecimals uint8) (User, error) {
	strategy, err := StrategyFor(pool.Type)
	if err != nil {
		return User{}, err
	}
	if err := checkMembership(user, pool); err != nil {
		return User{}, err
	}

	entitled, err := strategy.Entitlement(num.FromUint256(user.Staked), pool.AccRewardPerShare.value(), stakeDecimals)
	if err != nil {
		return User{}, err
	}
	debt, err := begin(entitled).toUint128()
	if err != nil {
		return User{}, err
	}

	user.RewardDebt = debt
	user.LatestUpdatedBlock = pool.LastUpdateBlock
	return user, nil
}

// QueryReward previews the reward a user would be credited at block without
// committing anything.
func QueryReward(user User, pool Pool, block uint64, stakeDecimals uint8) (uint256.Int, error) {
	updated, err := UpdatePool(pool, block, stakeDecimals)
	if err != nil {
		return uint256.Int{}, err
	}
	_, pending, err := WithdrawUserReward(user, updated, stakeDecimals)
	if err != nil {
		return uint256.Int{}, err
	}
	return pending, nil
}

func checkMembership(user User, pool Pool) error {
	if user.PoolID == "" || strings.EqualFold(user.PoolID, pool.ID) {
		return nil
	}
	return fmt.Errorf("%w: user %s is in pool %s, not %s", ErrPoolMismatch, user.ID, user.PoolID, pool.ID)
}
