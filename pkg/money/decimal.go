package money

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// ParseDecimal converts a human-entered token amount ("12.5") to minor units at
// the given precision. Inputs finer than the precision are rejected rather than
// rounded so a listed price never silently changes.
func ParseDecimal(s string, decimals uint8) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid decimal amount %q", s)
	}
	if d.Sign() < 0 {
		return Amount{}, fmt.Errorf("amount %q must not be negative", s)
	}
	shifted := d.Shift(int32(decimals))
	if !shifted.Equal(shifted.Truncate(0)) {
		return Amount{}, fmt.Errorf("amount %q has more than %d fractional digits", s, decimals)
	}
	return NewAmount(shifted.BigInt()), nil
}

// FormatDecimal renders minor units as a decimal string at the given precision.
func FormatDecimal(a Amount, decimals uint8) string {
	return decimal.NewFromBigInt(a.big(), -int32(decimals)).String()
}

// Rescale moves an amount between minor-unit precisions. Scaling down truncates
// toward zero: this is the quantization applied to a quote before signing.
func Rescale(a Amount, from, to uint8) Amount {
	switch {
	case from == to:
		return NewAmount(a.big())
	case to > from:
		factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(to-from)), nil)
		return Amount{i: new(big.Int).Mul(a.big(), factor)}
	default:
		factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(from-to)), nil)
		return Amount{i: new(big.Int).Quo(a.big(), factor)}
	}
}
