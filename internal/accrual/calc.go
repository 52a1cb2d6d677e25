package accrual

import (
	"github.com/holiman/uint256"

	"stakeScope/internal/num"
)

// calc chains checked operations and keeps the first error.
type calc struct {
	v   num.Num
	err error
}

func begin(v num.Num) calc {
	return calc{v: v}
}

func beginUint(v uint256.Int) calc {
	return calc{v: num.FromUint256(v)}
}

func (c calc) add(o num.Num) calc {
	if c.err != nil {
		return c
	}
	c.v, c.err = c.v.Add(o)
	return c
}

func (c calc) sub(o num.Num) calc {
	if c.err != nil {
		return c
	}
	c.v, c.err = c.v.Sub(o)
	return c
}

func (c calc) mul(o num.Num) calc {
	if c.err != nil {
		return c
	}
	c.v, c.err = c.v.Mul(o)
	return c
}

func (c calc) div(o num.Num) calc {
	if c.err != nil {
		return c
	}
	c.v, c.err = c.v.Div(o)
	return c
}

func (c calc) result() (num.Num, error) {
	if c.err != nil {
		return num.Num{}, c.err
	}
	return c.v, nil
}

func (c calc) toUint128() (uint256.Int, error) {
	if c.err != nil {
		return uint256.Int{}, c.err
	}
	return c.v.ToUint128(0)
}

func (c calc) toUint256() (uint256.Int, error) {
	if c.err != nil {
		return uint256.Int{}, c.err
	}
	return c.v.ToUint256(0)
}
