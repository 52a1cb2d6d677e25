package accrual

import (
	"fmt"

	"stakeScope/internal/num"
)

// AccrualStrategy is the per pool type part of the reward-per-share algorithm.
type AccrualStrategy interface {
	// EffectiveReward turns the raw emission since the last update into the
	// amount to mint and the scaled increase of the accumulated reward per
	// share, honouring the pool's mint cap.
	EffectiveReward(raw num.Num, pool Pool, stakeDecimals uint8) (minted num.Num, perShare num.Num, err error)
	// Entitlement is the total reward earned by staked units at the scaled
	// per-share value acc.
	Entitlement(staked num.Num, acc num.Num, stakeDecimals uint8) (num.Num, error)
}

// StrategyFor returns the strategy of a pool type.
func StrategyFor(t PoolType) (AccrualStrategy, error) {
	switch t {
	case RateCapped:
		return rateCapped{}, nil
	case FixedRate:
		return fixedRate{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownPoolType, uint8(t))
	}
}

// rateCapped mints min(raw, cap - minted) per update and spreads it over the
// total stake.
type rateCapped struct{}

func (rateCapped) EffectiveReward(raw num.Num, pool Pool, _ uint8) (num.Num, num.Num, error) {
	remaining, err := beginUint(pool.MaxMintable).sub(num.FromUint256(pool.MintedTotal)).result()
	if err != nil {
		return num.Num{}, num.Num{}, err
	}
	effective := num.Min(raw, remaining)

	perShare, err := begin(effective).
		mul(perShareMultiplier).
		div(num.FromUint256(pool.TotalStaked)).
		result()
	if err != nil {
		return num.Num{}, num.Num{}, err
	}
	return effective, perShare, nil
}

func (rateCapped) Entitlement(staked num.Num, acc num.Num, _ uint8) (num.Num, error) {
	return begin(staked).mul(acc).div(perShareMultiplier).result()
}

// fixedRate treats raw as the reward of one whole staked unit. The minted
// amount is projected over the total stake; when the projection crosses the
// cap, both are scaled down so the cap is reached exactly.
type fixedRate struct{}

func (fixedRate) EffectiveReward(raw num.Num, pool Pool, stakeDecimals uint8) (num.Num, num.Num, error) {
	unit, err := num.TenPow(stakeDecimals)
	if err != nil {
		return num.Num{}, num.Num{}, err
	}
	total := num.FromUint256(pool.TotalStaked)
	minted := num.FromUint256(pool.MintedTotal)
	maxMintable := num.FromUint256(pool.MaxMintable)

	estimate, err := begin(total).
		mul(raw).
		mul(perShareMultiplier).
		div(unit).
		div(perShareMultiplier).
		result()
	if err != nil {
		return num.Num{}, num.Num{}, err
	}

	projected, err := begin(minted).add(estimate).result()
	if err != nil {
		return num.Num{}, num.Num{}, err
	}
	if projected.Cmp(maxMintable) > 0 {
		if estimate, err = begin(maxMintable).sub(minted).result(); err != nil {
			return num.Num{}, num.Num{}, err
		}
		raw, err = begin(estimate).
			mul(perShareMultiplier).
			mul(unit).
			div(total).
			div(perShareMultiplier).
			result()
		if err != nil {
			return num.Num{}, num.Num{}, err
		}
	}

	perShare, err := begin(raw).mul(perShareMultiplier).result()
	if err != nil {
		return num.Num{}, num.Num{}, err
	}
	return estimate, perShare, nil
}

func (fixedRate) Entitlement(staked num.Num, acc num.Num, stakeDecimals uint8) (num.Num, error) {
	unit, err := num.TenPow(stakeDecimals)
	if err != nil {
		return num.Num{}, err
	}
	return begin(staked).mul(acc).div(unit).div(perShareMultiplier).result()
}
