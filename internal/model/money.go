package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MinorUnitExponent is the number of decimal places of the currency.
const MinorUnitExponent = 2

// ParseAmount converts a decimal string like "150.25" into minor units.
// More than MinorUnitExponent decimal places is an error; nothing is rounded.
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	minor := d.Shift(MinorUnitExponent)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has more than %d decimal places", s, MinorUnitExponent)
	}
	if !minor.BigInt().IsInt64() {
		return 0, fmt.Errorf("amount %q out of range", s)
	}
	return minor.IntPart(), nil
}

// FormatAmount renders minor units as a fixed-point decimal string.
func FormatAmount(minor int64) string {
	return decimal.New(minor, -MinorUnitExponent).StringFixed(MinorUnitExponent)
}
