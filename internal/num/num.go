// Package num provides the checked decimal used for all reward math.
//
// A Num never wraps, saturates or rounds up: every operation either returns
// an exact result (division is truncated toward zero at DivisionScale
// fractional digits) or an error wrapping ErrArithmetic.
package num

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

const (
	// DivisionScale is the number of fractional digits kept by Div.
	DivisionScale = 36
	// MaxBits bounds the integer part of every intermediate value.
	MaxBits = 512
	// MaxParseScale bounds the fractional digits accepted by Parse.
	MaxParseScale = 96
)

// Num is an immutable checked decimal. The zero value is 0.
type Num struct {
	d decimal.Decimal
}

func Zero() Num {
	return Num{d: decimal.Zero}
}

func FromUint64(v uint64) Num {
	return Num{d: decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)}
}

func FromUint256(v uint256.Int) Num {
	return Num{d: decimal.NewFromBigInt(v.ToBig(), 0)}
}

// Parse reads a decimal string such as "12", "0.5" or "1e18".
func Parse(s string) (Num, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Num{}, fmt.Errorf("%w: empty string", ErrInvalidNumber)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Num{}, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}
	if d.IsZero() {
		return Zero(), nil
	}
	if d.Exponent() > MaxBits {
		return Num{}, ErrOverflow
	}
	if d.Exponent() < -MaxParseScale {
		return Num{}, fmt.Errorf("%w: too many fractional digits in %q", ErrInvalidNumber, s)
	}
	return checked(d)
}

// TenPow returns 10^exp.
func TenPow(exp uint8) (Num, error) {
	return FromUint64(10).PowUint(uint64(exp))
}

func (n Num) Add(o Num) (Num, error) {
	return checked(n.d.Add(o.d))
}

func (n Num) Sub(o Num) (Num, error) {
	return checked(n.d.Sub(o.d))
}

func (n Num) Mul(o Num) (Num, error) {
	return checked(n.d.Mul(o.d))
}

// Div truncates the quotient toward zero at DivisionScale fractional digits.
func (n Num) Div(o Num) (Num, error) {
	if o.d.IsZero() {
		return Num{}, ErrDivisionByZero
	}
	q, _ := n.d.QuoRem(o.d, DivisionScale)
	return checked(q)
}

// PowUint raises n to an integer power by repeated squaring.
func (n Num) PowUint(exp uint64) (Num, error) {
	result := Num{d: decimal.NewFromInt(1)}
	base := n
	var err error
	for exp > 0 {
		if exp&1 == 1 {
			if result, err = result.Mul(base); err != nil {
				return Num{}, err
			}
		}
		exp >>= 1
		if exp > 0 {
			if base, err = base.Mul(base); err != nil {
				return Num{}, err
			}
		}
	}
	return result, nil
}

func (n Num) Cmp(o Num) int {
	return n.d.Cmp(o.d)
}

func (n Num) Sign() int {
	return n.d.Sign()
}

func (n Num) IsZero() bool {
	return n.d.IsZero()
}

func (n Num) String() string {
	return n.d.String()
}

// Min returns the smaller of a and b.
func Min(a, b Num) Num {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// ToUint128 truncates n toward zero at scale fractional digits and returns
// the scaled integer. It fails for negative values and values above 2^128-1.
func (n Num) ToUint128(scale int32) (uint256.Int, error) {
	return n.toUint(scale, 128)
}

// ToUint256 is ToUint128 with a 256-bit range.
func (n Num) ToUint256(scale int32) (uint256.Int, error) {
	return n.toUint(scale, 256)
}

func (n Num) toUint(scale int32, bits int) (uint256.Int, error) {
	if n.d.Sign() < 0 {
		return uint256.Int{}, fmt.Errorf("%w: %s", ErrNegative, n.d.String())
	}
	i := n.d.Shift(scale).BigInt()
	if i.BitLen() > bits {
		return uint256.Int{}, fmt.Errorf("%w: %s exceeds %d bits", ErrOverflow, i.String(), bits)
	}
	v, _ := uint256.FromBig(i)
	return *v, nil
}

func checked(d decimal.Decimal) (Num, error) {
	if d.Abs().BigInt().BitLen() > MaxBits {
		return Num{}, ErrOverflow
	}
	return Num{d: d}, nil
}
