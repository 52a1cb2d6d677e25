package ledger

import (
	"fmt"

	"github.com/holiman/uint256"

	"stakeScope/internal/accrual"
	"stakeScope/internal/model"
	"stakeScope/internal/num"
)

// parseAmount reads a base-10 integer that must fit in 128 bits. An empty
// string is zero.
func parseAmount(field, s string) (uint256.Int, error) {
	if s == "" {
		return uint256.Int{}, nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return uint256.Int{}, fmt.Errorf("parse %s %q: %w", field, s, num.ErrInvalidNumber)
	}
	if v.BitLen() > 128 {
		return uint256.Int{}, fmt.Errorf("parse %s %q: %w", field, s, num.ErrOverflow)
	}
	return *v, nil
}

func poolFromRecord(rec model.PoolRecord) (accrual.Pool, error) {
	typ, err := accrual.ParsePoolType(rec.Type)
	if err != nil {
		return accrual.Pool{}, fmt.Errorf("pool %s: %w", rec.ID, err)
	}
	pool := accrual.Pool{
		ID:              rec.ID,
		Type:            typ,
		LastUpdateBlock: rec.LastUpdateBlock,
	}
	if pool.EmissionRate, err = parseAmount("emission_rate", rec.EmissionRate); err != nil {
		return accrual.Pool{}, fmt.Errorf("pool %s: %w", rec.ID, err)
	}
	if pool.TotalStaked, err = parseAmount("total_staked", rec.TotalStaked); err != nil {
		return accrual.Pool{}, fmt.Errorf("pool %s: %w", rec.ID, err)
	}
	if pool.MintedTotal, err = parseAmount("minted_total", rec.MintedTotal); err != nil {
		return accrual.Pool{}, fmt.Errorf("pool %s: %w", rec.ID, err)
	}
	if pool.MaxMintable, err = parseAmount("max_mintable", rec.MaxMintable); err != nil {
		return accrual.Pool{}, fmt.Errorf("pool %s: %w", rec.ID, err)
	}
	if pool.AccRewardPerShare, err = accrual.ParsePerShare(rec.AccRewardPerShare); err != nil {
		return accrual.Pool{}, fmt.Errorf("pool %s: %w", rec.ID, err)
	}
	return pool, nil
}

// poolRecord copies the mutable state of pool onto rec. Creation parameters
// are kept from rec.
func poolRecord(rec model.PoolRecord, pool accrual.Pool) model.PoolRecord {
	rec.TotalStaked = pool.TotalStaked.Dec()
	rec.MintedTotal = pool.MintedTotal.Dec()
	rec.AccRewardPerShare = pool.AccRewardPerShare.String()
	rec.LastUpdateBlock = pool.LastUpdateBlock
	return rec
}

func userFromRecord(rec model.UserRecord) (accrual.User, error) {
	user := accrual.User{
		PoolID:             rec.PoolID,
		ID:                 rec.User,
		LatestUpdatedBlock: rec.LatestUpdatedBlock,
	}
	var err error
	if user.Staked, err = parseAmount("staked", rec.Staked); err != nil {
		return accrual.User{}, fmt.Errorf("user %s: %w", rec.User, err)
	}
	if user.Reward, err = parseAmount("reward", rec.Reward); err != nil {
		return accrual.User{}, fmt.Errorf("user %s: %w", rec.User, err)
	}
	if user.RewardDebt, err = parseAmount("reward_debt", rec.RewardDebt); err != nil {
		return accrual.User{}, fmt.Errorf("user %s: %w", rec.User, err)
	}
	return user, nil
}

func userRecord(user accrual.User) model.UserRecord {
	return model.UserRecord{
		PoolID:             user.PoolID,
		User:               user.ID,
		Staked:             user.Staked.Dec(),
		Reward:             user.Reward.Dec(),
		RewardDebt:         user.RewardDebt.Dec(),
		LatestUpdatedBlock: user.LatestUpdatedBlock,
	}
}
