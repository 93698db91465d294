package types

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

// Value quantities are unsigned 64-bit counts of the smallest unit.
// All arithmetic is checked: callers get ok=false instead of a wrapped result.

// DefaultDecimals is the number of fractional digits used when displaying
// value in major units.
const DefaultDecimals = 9

// CheckedAdd returns a+b and whether the sum fits in 64 bits.
func CheckedAdd(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry == 0
}

// CheckedSub returns a-b and whether the difference is non-negative.
func CheckedSub(a, b uint64) (uint64, bool) {
	diff, borrow := bits.Sub64(a, b, 0)
	return diff, borrow == 0
}

// CheckedMul returns a*b and whether the product fits in 64 bits.
func CheckedMul(a, b uint64) (uint64, bool) {
	hi, lo := bits.Mul64(a, b)
	return lo, hi == 0
}

// FormatUnits renders v in major units with the given number of decimals.
// FormatUnits(1_500_000_000, 9) == "1.500000000".
func FormatUnits(v uint64, decimals int) string {
	if decimals <= 0 {
		return strconv.FormatUint(v, 10)
	}
	s := strconv.FormatUint(v, 10)
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}
	return fmt.Sprintf("%s.%s", s[:len(s)-decimals], s[len(s)-decimals:])
}

// ParseUnits parses a decimal string in major units into the smallest unit.
// It rejects more fractional digits than decimals and values that overflow.
func ParseUnits(s string, decimals int) (uint64, error) {
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("types: parse units %q: empty", s)
	}
	if len(frac) > decimals {
		return 0, fmt.Errorf("types: parse units %q: more than %d decimals", s, decimals)
	}
	digits := strings.TrimLeft(whole+frac+strings.Repeat("0", decimals-len(frac)), "0")
	if digits == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("types: parse units %q: %w", s, err)
	}
	return v, nil
}
