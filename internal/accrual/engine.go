package accrual

import (
	"github.com/holiman/uint256"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Engine runs the accrual operations and traces the snapshots before and
// after each step at debug level. Results never depend on the logger.
type Engine struct {
	logger *zap.Logger
}

func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

func (e *Engine) UpdatePool(pool Pool, block uint64, stakeDecimals uint8) (Pool, error) {
	e.logger.Debug("update pool in", zap.Object("pool", pool), zap.Uint64("block", block))
	next, err := UpdatePool(pool, block, stakeDecimals)
	if err != nil {
		e.logger.Debug("update pool failed", zap.String("pool_id", pool.ID), zap.Error(err))
		return Pool{}, err
	}
	e.logger.Debug("update pool out", zap.Object("pool", next))
	return next, nil
}

func (e *Engine) WithdrawUserReward(user User, pool Pool, stakeDecimals uint8) (User, uint256.Int, error) {
	e.logger.Debug("withdraw user reward in", zap.Object("pool", pool), zap.Object("user", user))
	next, pending, err := WithdrawUserReward(user, pool, stakeDecimals)
	if err != nil {
		e.logger.Debug("withdraw user reward failed", zap.String("pool_id", pool.ID), zap.String("user", user.ID), zap.Error(err))
		return User{}, uint256.Int{}, err
	}
	e.logger.Debug("withdraw user reward out", zap.Object("user", next), zap.String("pending", pending.Dec()))
	return next, pending, nil
}

func (e *Engine) UpdateUserStake(user User, pool Pool, stakeDecimals uint8) (User, error) {
	e.logger.Debug("update user stake in", zap.Object("pool", pool), zap.Object("user", user))
	next, err := UpdateUserStake(user, pool, stakeDecimals)
	if err != nil {
		e.logger.Debug("update user stake failed", zap.String("pool_id", pool.ID), zap.String("user", user.ID), zap.Error(err))
		return User{}, err
	}
	e.logger.Debug("update user stake out", zap.Object("user", next))
	return next, nil
}

func (e *Engine) QueryReward(user User, pool Pool, block uint64, stakeDecimals uint8) (uint256.Int, error) {
	pending, err := QueryReward(user, pool, block, stakeDecimals)
	if err != nil {
		e.logger.Debug("query reward failed", zap.String("pool_id", pool.ID), zap.String("user", user.ID), zap.Uint64("block", block), zap.Error(err))
		return uint256.Int{}, err
	}
	e.logger.Debug("query reward", zap.String("pool_id", pool.ID), zap.String("user", user.ID), zap.Uint64("block", block), zap.String("pending", pending.Dec()))
	return pending, nil
}

// ApplyStakeChange runs the same sequence as the package-level
// ApplyStakeChange through the traced steps.
func (e *Engine) ApplyStakeChange(pool Pool, user User, change StakeChange, block uint64, stakeDecimals uint8) (StakeChangeResult, error) {
	e.logger.Debug("stake change in",
		zap.Object("pool", pool),
		zap.Object("user", user),
		zap.Stringer("kind", change.Kind),
		zap.String("amount", change.Amount.Dec()),
		zap.Uint64("block", block),
	)
	res, err := e.applyStakeChange(pool, user, change, block, stakeDecimals)
	if err != nil {
		e.logger.Debug("stake change failed", zap.String("pool_id", pool.ID), zap.String("user", user.ID), zap.Error(err))
		return StakeChangeResult{}, err
	}
	e.logger.Debug("stake change out",
		zap.Object("pool", res.Pool),
		zap.Object("user", res.User),
		zap.String("credited", res.Credited.Dec()),
		zap.Bool("no_staked", res.NoStaked),
	)
	return res, nil
}

func (e *Engine) applyStakeChange(pool Pool, user User, change StakeChange, block uint64, stakeDecimals uint8) (StakeChangeResult, error) {
	if err := checkMembership(user, pool); err != nil {
		return StakeChangeResult{}, err
	}

	pool, err := e.UpdatePool(pool, block, stakeDecimals)
	if err != nil {
		return StakeChangeResult{}, err
	}

	var res StakeChangeResult
	withdrawn, credited, err := e.WithdrawUserReward(user, pool, stakeDecimals)
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
	e.logger.Debug("stake applied", zap.Object("pool", pool), zap.Object("user", user))

	if user, err = e.UpdateUserStake(user, pool, stakeDecimals); err != nil {
		return StakeChangeResult{}, err
	}

	res.Pool = pool
	res.User = user
	return res, nil
}

func (p Pool) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("id", p.ID)
	enc.AddString("type", p.Type.String())
	enc.AddString("emission_rate", p.EmissionRate.Dec())
	enc.AddString("total_staked", p.TotalStaked.Dec())
	enc.AddString("minted_total", p.MintedTotal.Dec())
	enc.AddString("max_mintable", p.MaxMintable.Dec())
	enc.AddString("acc_reward_per_share", p.AccRewardPerShare.String())
	enc.AddUint64("last_update_block", p.LastUpdateBlock)
	return nil
}

func (u User) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("pool_id", u.PoolID)
	enc.AddString("id", u.ID)
	enc.AddString("staked", u.Staked.Dec())
	enc.AddString("reward", u.Reward.Dec())
	enc.AddString("reward_debt", u.RewardDebt.Dec())
	enc.AddUint64("latest_updated_block", u.LatestUpdatedBlock)
	return nil
}
