// Package safemath provides overflow-checked arithmetic on uint64 amounts.
// Every balance mutation in the engine goes through these helpers so that
// overflow fails the operation instead of wrapping.
package safemath

import (
	"math/bits"

	"github.com/Dexploarer/ghostspeak-go/internal/domain"
)

// Add returns a+b or ErrArithmetic on overflow.
func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, domain.ErrArithmetic
	}
	return sum, nil
}

// Sub returns a-b or ErrArithmetic on underflow.
func Sub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, domain.ErrArithmetic
	}
	return diff, nil
}

// Mul returns a*b or ErrArithmetic on overflow.
func Mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, domain.ErrArithmetic
	}
	return lo, nil
}

// MulDiv returns a*num/den with a 128-bit intermediate, so a*num may exceed
// 64 bits as long as the quotient fits. den must be non-zero and the result
// must fit in uint64.
func MulDiv(a, num, den uint64) (uint64, error) {
	if den == 0 {
		return 0, domain.ErrArithmetic
	}
	hi, lo := bits.Mul64(a, num)
	if hi >= den {
		// Quotient would not fit in 64 bits.
		return 0, domain.ErrArithmetic
	}
	quo, _ := bits.Div64(hi, lo, den)
	return quo, nil
}
