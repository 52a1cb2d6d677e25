package num

import (
	"errors"
	"fmt"
)

// ErrArithmetic is wrapped by every arithmetic failure of this package.
var ErrArithmetic = errors.New("arithmetic failure")

var (
	ErrOverflow       = fmt.Errorf("%w: overflow", ErrArithmetic)
	ErrNegative       = fmt.Errorf("%w: negative value", ErrArithmetic)
	ErrDivisionByZero = fmt.Errorf("%w: division by zero", ErrArithmetic)
	ErrInvalidNumber  = fmt.Errorf("%w: invalid number", ErrArithmetic)
)
