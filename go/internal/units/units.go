// Package units converts between display amounts ("1.5") and the ledger's
// smallest-unit integers (1.5 * 10^18).
package units

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Decimals is the precision of the native token.
const Decimals = 18

var (
	// ErrInvalidAmount is returned for input that is not a non-negative decimal.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrTooPrecise is returned when an amount has more fractional digits than the token supports.
	ErrTooPrecise = errors.New("amount exceeds token precision")
)

// ParseDisplay parses a user-entered, non-negative display amount with at most
// one fractional separator.
func ParseDisplay(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}

	separators, digits := 0, 0
	for _, r := range s {
		switch {
		case r == '.':
			separators++
		case r >= '0' && r <= '9':
			digits++
		default:
			return decimal.Zero, fmt.Errorf("%w: unexpected character %q in %q", ErrInvalidAmount, r, s)
		}
	}
	if separators > 1 {
		return decimal.Zero, fmt.Errorf("%w: more than one decimal separator in %q", ErrInvalidAmount, s)
	}
	if digits == 0 {
		return decimal.Zero, fmt.Errorf("%w: no digits in %q", ErrInvalidAmount, s)
	}

	if i := strings.IndexByte(s, '.'); i >= 0 && len(s)-i-1 > Decimals {
		return decimal.Zero, fmt.Errorf("%w: %q has more than %d fractional digits", ErrTooPrecise, s, Decimals)
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	s = strings.TrimSuffix(s, ".")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	return d, nil
}

// ToSmallest converts a display amount into smallest units.
func ToSmallest(d decimal.Decimal) (*big.Int, error) {
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: negative amount %s", ErrInvalidAmount, d)
	}
	shifted := d.Shift(Decimals)
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("%w: %s", ErrTooPrecise, d)
	}
	return shifted.BigInt(), nil
}

// ParseToSmallest is ParseDisplay followed by ToSmallest.
func ParseToSmallest(s string) (*big.Int, decimal.Decimal, error) {
	d, err := ParseDisplay(s)
	if err != nil {
		return nil, decimal.Zero, err
	}
	v, err := ToSmallest(d)
	if err != nil {
		return nil, decimal.Zero, err
	}
	return v, d, nil
}

// ToDisplay converts smallest units into a display amount. nil is zero.
func ToDisplay(v *big.Int) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -Decimals)
}

// Format renders smallest units as a display string that always carries a
// fractional part ("1.0", "0.25").
func Format(v *big.Int) string {
	return FormatDecimal(ToDisplay(v))
}

// FormatDecimal renders a display amount with at least one fractional digit.
func FormatDecimal(d decimal.Decimal) string {
	s := d.String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// ParseSmallest parses a base-10 smallest-unit integer string as sent by the ledger.
func ParseSmallest(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a base-10 integer", ErrInvalidAmount, s)
	}
	return v, nil
}
