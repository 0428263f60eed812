// Package money provides exact fixed-point monetary arithmetic.
//
// Amounts are stored as an integer number of minor currency units (cents)
// so that splits and balances never accumulate floating-point drift. Every
// allocation produces shares that sum exactly to the original amount; when a
// division does not come out even, the remainder is handed out one minor unit
// at a time to the first shares, in the order the caller supplies.
package money

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Money is an amount in minor currency units (e.g., cents).
type Money int64

var (
	// ErrOverflow is returned when an arithmetic operation exceeds int64 bounds.
	ErrOverflow = errors.New("money: arithmetic overflow")

	// ErrInvalidAmount is returned for amounts that cannot be parsed or
	// allocated (bad format, non-positive input, zero shares).
	ErrInvalidAmount = errors.New("money: invalid amount")
)

// Add returns m + o, failing with ErrOverflow rather than wrapping.
func (m Money) Add(o Money) (Money, error) {
	sum := m + o
	if (o > 0 && sum < m) || (o < 0 && sum > m) {
		return 0, ErrOverflow
	}
	return sum, nil
}

// Sub returns m - o, failing with ErrOverflow rather than wrapping.
func (m Money) Sub(o Money) (Money, error) {
	diff := m - o
	if (o < 0 && diff < m) || (o > 0 && diff > m) {
		return 0, ErrOverflow
	}
	return diff, nil
}

// Neg returns -m. Negating math.MinInt64 is an overflow.
func (m Money) Neg() (Money, error) {
	if m == math.MinInt64 {
		return 0, ErrOverflow
	}
	return -m, nil
}

// Abs returns the magnitude of m.
func (m Money) Abs() (Money, error) {
	if m >= 0 {
		return m, nil
	}
	return m.Neg()
}

// IsPositive reports whether m is strictly greater than zero.
func (m Money) IsPositive() bool { return m > 0 }

// IsZero reports whether m is exactly zero.
func (m Money) IsZero() bool { return m == 0 }

// String renders m as a decimal amount with two fractional digits, e.g.
// 1234 -> "12.34" and -5 -> "-0.05".
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		// Avoid negating MinInt64; peel off the last two digits manually.
		if v == math.MinInt64 {
			s := strconv.FormatInt(v, 10)[1:] // digits without the sign
			return sign + s[:len(s)-2] + "." + s[len(s)-2:]
		}
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Parse converts a positive decimal string to Money with half-up rounding on
// the third fractional digit. Both dot and comma separators are accepted.
// Signed, zero, and malformed inputs are rejected with ErrInvalidAmount.
func Parse(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if iv > math.MaxInt64/100 {
		return 0, ErrOverflow
	}
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	cents := iv*100 + fracCents
	if cents < 0 {
		// iv passed the coarse guard but the cents wrapped (only possible for
		// iv == MaxInt64/100 with high fractional cents).
		return 0, ErrOverflow
	}
	if cents == 0 {
		return 0, ErrInvalidAmount
	}
	return Money(cents), nil
}

// Allocate splits total into n shares that sum exactly to total. The base
// share is total/n in minor units; the remainder goes one unit at a time to
// the first shares. The caller fixes the ordering (and thereby the policy of
// who absorbs the extra cents) before calling.
func Allocate(total Money, n int) ([]Money, error) {
	if n <= 0 || total < 0 {
		return nil, ErrInvalidAmount
	}
	base := int64(total) / int64(n)
	rem := int64(total) % int64(n)
	shares := make([]Money, n)
	for i := range shares {
		shares[i] = Money(base)
		if int64(i) < rem {
			shares[i]++
		}
	}
	return shares, nil
}

// AllocateRatios splits total proportionally to the given ratios (any common
// unit; percentage splits pass basis points). Each share is floored, then the
// leftover minor units are handed to the first shares with a nonzero ratio,
// so the result sums exactly to total and a zero-ratio share stays zero.
// Ratios must be non-negative with a positive sum.
func AllocateRatios(total Money, ratios []int64) ([]Money, error) {
	if len(ratios) == 0 || total < 0 {
		return nil, ErrInvalidAmount
	}
	var sum int64
	for _, r := range ratios {
		if r < 0 {
			return nil, ErrInvalidAmount
		}
		next := sum + r
		if next < sum {
			return nil, ErrOverflow
		}
		sum = next
	}
	if sum == 0 {
		return nil, ErrInvalidAmount
	}
	shares := make([]Money, len(ratios))
	var allocated int64
	for i, r := range ratios {
		if r != 0 && int64(total) > math.MaxInt64/r {
			return nil, ErrOverflow
		}
		share := int64(total) * r / sum
		shares[i] = Money(share)
		allocated += share
	}
	// Flooring loses at most one unit per nonzero-ratio share, so the
	// remainder always fits without touching zero-ratio shares.
	rem := int64(total) - allocated
	for i := 0; rem > 0 && i < len(shares); i++ {
		if ratios[i] == 0 {
			continue
		}
		shares[i]++
		rem--
	}
	return shares, nil
}
