package num

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
)

func mustParse(t *testing.T, s string) Num {
	t.Helper()
	n, err := Parse(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return n
}

func TestParseInvalid(t *testing.T) {
	for _, input := range []string{"", "abc", "1.2.3", "0x10", "--1"} {
		_, err := Parse(input)
		if !errors.Is(err, ErrInvalidNumber) {
			t.Fatalf("parse %q: expected ErrInvalidNumber, got %v", input, err)
		}
		if !errors.Is(err, ErrArithmetic) {
			t.Fatalf("parse %q: error should wrap ErrArithmetic", input)
		}
	}
}

func TestDivTruncatesTowardZero(t *testing.T) {
	q, err := mustParse(t, "10").Div(mustParse(t, "3"))
	if err != nil {
		t.Fatalf("div: %v", err)
	}
	want := "3.333333333333333333333333333333333333"
	if q.String() != want {
		t.Fatalf("quotient mismatch: %s != %s", q.String(), want)
	}

	q, err = mustParse(t, "2").Div(mustParse(t, "3"))
	if err != nil {
		t.Fatalf("div: %v", err)
	}
	v, err := q.ToUint128(DivisionScale)
	if err != nil {
		t.Fatalf("to uint: %v", err)
	}
	if v.Dec() != "666666666666666666666666666666666666" {
		t.Fatalf("scaled quotient mismatch: %s", v.Dec())
	}
}

func TestDivByZero(t *testing.T) {
	if _, err := FromUint64(1).Div(Zero()); !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("expected ErrDivisionByZero, got %v", err)
	}
}

func TestTenPow(t *testing.T) {
	p, err := TenPow(18)
	if err != nil {
		t.Fatalf("pow: %v", err)
	}
	if p.String() != "1000000000000000000" {
		t.Fatalf("10^18 mismatch: %s", p.String())
	}

	p, err = TenPow(0)
	if err != nil {
		t.Fatalf("pow: %v", err)
	}
	if p.String() != "1" {
		t.Fatalf("10^0 mismatch: %s", p.String())
	}
}

func TestPowOverflow(t *testing.T) {
	if _, err := FromUint64(2).PowUint(MaxBits); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow for 2^%d, got %v", MaxBits, err)
	}
	if _, err := FromUint64(2).PowUint(MaxBits - 1); err != nil {
		t.Fatalf("2^%d should fit: %v", MaxBits-1, err)
	}
}

func TestMulOverflow(t *testing.T) {
	big, err := FromUint64(2).PowUint(300)
	if err != nil {
		t.Fatalf("pow: %v", err)
	}
	if _, err := big.Mul(big); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
}

func TestToUint128(t *testing.T) {
	v, err := mustParse(t, "123.999").ToUint128(0)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if !v.Eq(uint256.NewInt(123)) {
		t.Fatalf("truncate mismatch: %s", v.Dec())
	}

	v, err = mustParse(t, "1.23456").ToUint128(2)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if !v.Eq(uint256.NewInt(123)) {
		t.Fatalf("scaled truncate mismatch: %s", v.Dec())
	}

	if _, err := mustParse(t, "-1").ToUint128(0); !errors.Is(err, ErrNegative) {
		t.Fatalf("expected ErrNegative, got %v", err)
	}

	max := mustParse(t, "340282366920938463463374607431768211455")
	if _, err := max.ToUint128(0); err != nil {
		t.Fatalf("max uint128 should fit: %v", err)
	}
	over, err := max.Add(FromUint64(1))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := over.ToUint128(0); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
	if _, err := over.ToUint256(0); err != nil {
		t.Fatalf("2^128 should fit in 256 bits: %v", err)
	}
}

func TestSubBelowZeroIsCheckedOnConversion(t *testing.T) {
	d, err := FromUint64(3).Sub(FromUint64(5))
	if err != nil {
		t.Fatalf("sub: %v", err)
	}
	if d.Sign() >= 0 {
		t.Fatalf("expected negative difference, got %s", d.String())
	}
	if _, err := d.ToUint128(0); !errors.Is(err, ErrNegative) {
		t.Fatalf("expected ErrNegative, got %v", err)
	}
}

func TestFromUint256RoundTrip(t *testing.T) {
	src := uint256.MustFromDecimal("98765432109876543210987654321")
	got, err := FromUint256(*src).ToUint256(0)
	if err != nil {
		t.Fatalf("to uint: %v", err)
	}
	if !got.Eq(src) {
		t.Fatalf("round-trip mismatch: %s != %s", got.Dec(), src.Dec())
	}
}

func TestMin(t *testing.T) {
	a, b := FromUint64(7), FromUint64(4)
	if Min(a, b).Cmp(b) != 0 || Min(b, a).Cmp(b) != 0 {
		t.Fatalf("min mismatch")
	}
}
