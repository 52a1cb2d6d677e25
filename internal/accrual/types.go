package accrual

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"stakeScope/internal/num"
)

// PoolType selects how a pool distributes its emission.
type PoolType uint8

const (
	// RateCapped splits a per-block emission across all staked units.
	RateCapped PoolType = iota + 1
	// FixedRate pays every staked unit a fixed per-block rate.
	FixedRate
)

func (t PoolType) String() string {
	switch t {
	case RateCapped:
		return "rate_capped"
	case FixedRate:
		return "fixed_rate"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// ParsePoolType accepts the canonical names and the short aliases "pool" and "fixed".
func ParsePoolType(s string) (PoolType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rate_capped", "pool":
		return RateCapped, nil
	case "fixed_rate", "fixed":
		return FixedRate, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownPoolType, s)
	}
}

// PerShareDecimals is the fixed scale of the accumulated reward per share.
const PerShareDecimals = 18

var perShareMultiplier = mustTenPow(PerShareDecimals)

func mustTenPow(exp uint8) num.Num {
	n, err := num.TenPow(exp)
	if err != nil {
		panic(err)
	}
	return n
}

// PerShare is the accumulated reward per unit of stake, held as an integer
// mantissa scaled by 10^PerShareDecimals.
type PerShare struct {
	scaled uint256.Int
}

func NewPerShare(scaled uint256.Int) PerShare {
	return PerShare{scaled: scaled}
}

// ParsePerShare reads a persisted mantissa. An empty string is zero.
func ParsePerShare(s string) (PerShare, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return PerShare{}, nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return PerShare{}, fmt.Errorf("%w: per share %q", num.ErrInvalidNumber, s)
	}
	return PerShare{scaled: *v}, nil
}

func (p PerShare) Scaled() uint256.Int {
	return p.scaled
}

func (p PerShare) Cmp(o PerShare) int {
	return p.scaled.Cmp(&o.scaled)
}

func (p PerShare) String() string {
	return p.scaled.Dec()
}

func (p PerShare) value() num.Num {
	return num.FromUint256(p.scaled)
}

// add truncates the sum back to an integer mantissa.
func (p PerShare) add(delta num.Num) (PerShare, error) {
	v, err := begin(p.value()).add(delta).toUint256()
	if err != nil {
		return PerShare{}, err
	}
	return PerShare{scaled: v}, nil
}

// Pool is a snapshot of a pool's accrual state. Amounts stay within the
// uint128 range.
type Pool struct {
	ID                string
	Type              PoolType
	EmissionRate      uint256.Int
	TotalStaked       uint256.Int
	MintedTotal       uint256.Int
	MaxMintable       uint256.Int
	AccRewardPerShare PerShare
	LastUpdateBlock   uint64
}

// User is a snapshot of one user's position in a pool.
type User struct {
	PoolID             string
	ID                 string
	Staked             uint256.Int
	Reward             uint256.Int
	RewardDebt         uint256.Int
	LatestUpdatedBlock uint64
}
