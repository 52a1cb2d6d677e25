package accrual

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"stakeScope/internal/num"
)

func stakedPool(t PoolType, rate, maxMintable, staked uint64) (Pool, User) {
	pool := newPool(t, rate, maxMintable)
	pool.TotalStaked = u(staked)
	user := newUser("a")
	user.Staked = u(staked)
	return pool, user
}

func TestUpdatePoolSameBlockIsNoop(t *testing.T) {
	for _, typ := range []PoolType{RateCapped, FixedRate} {
		pool, _ := stakedPool(typ, 10, 1_000_000, 50)
		once, err := UpdatePool(pool, 7, stakeDecimals)
		require.NoError(t, err)
		twice, err := UpdatePool(once, 7, stakeDecimals)
		require.NoError(t, err)
		require.Equal(t, once, twice, typ.String())
	}
}

func TestUpdatePoolRegression(t *testing.T) {
	pool, _ := stakedPool(RateCapped, 10, 1000, 5)
	pool.LastUpdateBlock = 10
	_, err := UpdatePool(pool, 9, stakeDecimals)
	require.ErrorIs(t, err, ErrBlockRegression)
	require.Equal(t, uint64(10), pool.LastUpdateBlock)
}

func TestUpdatePoolNothingStaked(t *testing.T) {
	pool := newPool(RateCapped, 10, 1000)
	pool.LastUpdateBlock = 3
	next, err := UpdatePool(pool, 30, stakeDecimals)
	require.NoError(t, err)
	require.Equal(t, uint64(30), next.LastUpdateBlock)
	require.True(t, next.MintedTotal.IsZero())
	require.Equal(t, "0", next.AccRewardPerShare.String())
}

func TestWithdrawTwiceCreditsOnce(t *testing.T) {
	for _, typ := range []PoolType{RateCapped, FixedRate} {
		pool, user := stakedPool(typ, 10, 1_000_000, 2000)
		user, err := UpdateUserStake(user, pool, stakeDecimals)
		require.NoError(t, err)

		pool, err = UpdatePool(pool, 5, stakeDecimals)
		require.NoError(t, err)
		user, first, err := WithdrawUserReward(user, pool, stakeDecimals)
		require.NoError(t, err)
		require.False(t, first.IsZero(), typ.String())
		user, err = UpdateUserStake(user, pool, stakeDecimals)
		require.NoError(t, err)

		user, second, err := WithdrawUserReward(user, pool, stakeDecimals)
		require.NoError(t, err)
		require.True(t, second.IsZero(), typ.String())
		require.Equal(t, first, user.Reward, typ.String())
	}
}

func TestRateCappedClampsToCap(t *testing.T) {
	pool, user := stakedPool(RateCapped, 100, 250, 3)
	user, err := UpdateUserStake(user, pool, stakeDecimals)
	require.NoError(t, err)

	pool, err = UpdatePool(pool, 10, stakeDecimals)
	require.NoError(t, err)
	require.Equal(t, uint64(250), pool.MintedTotal.Uint64())

	user, credited, err := WithdrawUserReward(user, pool, stakeDecimals)
	require.NoError(t, err)
	require.LessOrEqual(t, credited.Uint64(), uint64(250))

	// Capped pools stop accruing.
	capped, err := UpdatePool(pool, 20, stakeDecimals)
	require.NoError(t, err)
	require.Equal(t, pool.AccRewardPerShare, capped.AccRewardPerShare)
	require.Equal(t, pool.MintedTotal, capped.MintedTotal)

	_, again, err := WithdrawUserReward(user, capped, stakeDecimals)
	require.NoError(t, err)
	require.Equal(t, credited, again)
}

func TestFixedRateScalesDownAtCap(t *testing.T) {
	pool, user := stakedPool(FixedRate, 10, 75, 1000)
	user, err := UpdateUserStake(user, pool, stakeDecimals)
	require.NoError(t, err)

	pool, err = UpdatePool(pool, 100, stakeDecimals)
	require.NoError(t, err)
	require.Equal(t, uint64(75), pool.MintedTotal.Uint64())

	_, credited, err := WithdrawUserReward(user, pool, stakeDecimals)
	require.NoError(t, err)
	require.Equal(t, uint64(75), credited.Uint64())
}

func TestNoStakedUsesLowercasePoolID(t *testing.T) {
	pool := newPool(FixedRate, 10, 100)
	pool.ID = "0xABCDEF#7"
	user := User{ID: "a"}

	_, _, err := WithdrawUserReward(user, pool, stakeDecimals)
	require.True(t, IsNoStaked(err))
	require.EqualError(t, err, "no staked in pool 0xabcdef#7")

	_, err = QueryReward(user, pool, 5, stakeDecimals)
	require.True(t, IsNoStaked(err))
}

func TestPoolMismatch(t *testing.T) {
	pool, user := stakedPool(FixedRate, 10, 100, 1)
	user.PoolID = "other#1"

	_, _, err := WithdrawUserReward(user, pool, stakeDecimals)
	require.ErrorIs(t, err, ErrPoolMismatch)
	_, err = UpdateUserStake(user, pool, stakeDecimals)
	require.ErrorIs(t, err, ErrPoolMismatch)
	_, err = ApplyStakeChange(pool, user, StakeChange{Kind: Deposit, Amount: u(1)}, 2, stakeDecimals)
	require.ErrorIs(t, err, ErrPoolMismatch)

	user.PoolID = testPoolIDLower
	_, _, err = WithdrawUserReward(user, pool, stakeDecimals)
	require.NoError(t, err)
}

func TestApplyStakeChangeInsufficientStake(t *testing.T) {
	pool, user := stakedPool(FixedRate, 10, 1000, 5)
	_, err := ApplyStakeChange(pool, user, StakeChange{Kind: Withdraw, Amount: u(6)}, 3, stakeDecimals)
	require.ErrorIs(t, err, ErrInsufficientStake)

	// The pool total is checked as well as the user's stake.
	pool.TotalStaked = u(2)
	_, err = ApplyStakeChange(pool, user, StakeChange{Kind: Withdraw, Amount: u(3)}, 3, stakeDecimals)
	require.ErrorIs(t, err, ErrInsufficientStake)
}

func TestApplyStakeChangeUnknownKind(t *testing.T) {
	pool, user := stakedPool(FixedRate, 10, 1000, 5)
	_, err := ApplyStakeChange(pool, user, StakeChange{Kind: ChangeKind(7)}, 3, stakeDecimals)
	require.ErrorIs(t, err, ErrUnknownChange)
	require.Contains(t, err.Error(), "unknown(7)")
}

func TestApplyStakeChangeDepositOverflow(t *testing.T) {
	pool, user := stakedPool(RateCapped, 10, 1000, 5)
	maxU128 := new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))
	_, err := ApplyStakeChange(pool, user, StakeChange{Kind: Deposit, Amount: *maxU128}, 3, stakeDecimals)
	require.ErrorIs(t, err, num.ErrOverflow)
	require.ErrorIs(t, err, num.ErrArithmetic)
}

func TestApplyStakeChangeLeavesInputsUntouched(t *testing.T) {
	pool, user := stakedPool(FixedRate, 10, 1_000_000, 500)
	pool.LastUpdateBlock = 2
	poolCopy, userCopy := pool, user

	res, err := ApplyStakeChange(pool, user, StakeChange{Kind: Deposit, Amount: u(100)}, 9, stakeDecimals)
	require.NoError(t, err)
	require.Equal(t, poolCopy, pool)
	require.Equal(t, userCopy, user)
	require.Equal(t, uint64(600), res.Pool.TotalStaked.Uint64())
	require.Equal(t, uint64(600), res.User.Staked.Uint64())
	require.Equal(t, uint64(9), res.User.LatestUpdatedBlock)

	_, err = ApplyStakeChange(res.Pool, res.User, StakeChange{Kind: Deposit, Amount: u(1)}, 8, stakeDecimals)
	require.ErrorIs(t, err, ErrBlockRegression)
}

func TestQueryRewardMatchesCommit(t *testing.T) {
	pool, user := stakedPool(RateCapped, 7, 1_000_000, 3)
	user, err := UpdateUserStake(user, pool, stakeDecimals)
	require.NoError(t, err)

	preview, err := QueryReward(user, pool, 40, stakeDecimals)
	require.NoError(t, err)

	res, err := ApplyStakeChange(pool, user, StakeChange{Kind: Deposit}, 40, stakeDecimals)
	require.NoError(t, err)
	require.Equal(t, preview, res.Credited)
}

func TestEngineTracesSnapshots(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	engine := NewEngine(zap.New(core))

	pool, user := stakedPool(FixedRate, 10, 1000, 5)
	res, err := engine.ApplyStakeChange(pool, user, StakeChange{Kind: Deposit, Amount: u(1)}, 4, stakeDecimals)
	require.NoError(t, err)
	require.Equal(t, uint64(6), res.User.Staked.Uint64())

	for _, msg := range []string{
		"stake change in",
		"update pool in",
		"update pool out",
		"withdraw user reward in",
		"withdraw user reward out",
		"stake applied",
		"update user stake in",
		"update user stake out",
	} {
		require.Equal(t, 1, logs.FilterMessage(msg).Len(), msg)
	}
	out := logs.FilterMessage("stake change out").All()
	require.Len(t, out, 1)
	require.Equal(t, false, out[0].ContextMap()["no_staked"])

	// Step traces come out in protocol order.
	var order []string
	for _, entry := range logs.All() {
		order = append(order, entry.Message)
	}
	require.Equal(t, []string{
		"stake change in",
		"update pool in",
		"update pool out",
		"withdraw user reward in",
		"withdraw user reward out",
		"stake applied",
		"update user stake in",
		"update user stake out",
		"stake change out",
	}, order)

	_, err = engine.UpdatePool(res.Pool, 1, stakeDecimals)
	require.ErrorIs(t, err, ErrBlockRegression)
	require.Equal(t, 1, logs.FilterMessage("update pool failed").Len())
}

func TestEngineFirstDepositTracesNoStaked(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	engine := NewEngine(zap.New(core))

	pool := newPool(RateCapped, 10, 1000)
	user := newUser("a")
	res, err := engine.ApplyStakeChange(pool, user, StakeChange{Kind: Deposit, Amount: u(5)}, 2, stakeDecimals)
	require.NoError(t, err)
	require.True(t, res.NoStaked)
	require.True(t, res.Credited.IsZero())

	require.Equal(t, 1, logs.FilterMessage("withdraw user reward failed").Len())
	require.Equal(t, 1, logs.FilterMessage("update user stake in").Len())

	plain, err := ApplyStakeChange(pool, user, StakeChange{Kind: Deposit, Amount: u(5)}, 2, stakeDecimals)
	require.NoError(t, err)
	require.Equal(t, plain, res)
}

func TestEngineNilLogger(t *testing.T) {
	engine := NewEngine(nil)
	pool, user := stakedPool(RateCapped, 10, 1000, 5)
	_, err := engine.QueryReward(user, pool, 3, stakeDecimals)
	require.NoError(t, err)
}
