// Package model defines the core data structures shared by importers, the
// categorizer and the price sources.
package model

import (
	"fmt"
	"strings"

	"github.com/Veraticus/the-ledger-must-balance/internal/common"
	"github.com/shopspring/decimal"
)

// Amount is a decimal quantity of a commodity.
type Amount struct {
	Number   decimal.Decimal
	Currency string
}

// NewAmount creates an amount.
func NewAmount(number decimal.Decimal, currency string) Amount {
	return Amount{Number: number, Currency: currency}
}

// Neg returns the amount with its sign flipped, keeping its precision.
func (a Amount) Neg() Amount {
	return Amount{Number: a.Number.Neg(), Currency: a.Currency}
}

// IsZero reports whether the quantity is zero.
func (a Amount) IsZero() bool {
	return a.Number.IsZero()
}

// Equal compares quantity and commodity, ignoring precision.
func (a Amount) Equal(other Amount) bool {
	return a.Currency == other.Currency && a.Number.Equal(other.Number)
}

// String renders the amount the way the ledger writes it, e.g. "-4.50 USD".
func (a Amount) String() string {
	return FormatNumber(a.Number) + " " + a.Currency
}

// FormatNumber renders a decimal with the precision it was parsed with.
func FormatNumber(d decimal.Decimal) string {
	places := -d.Exponent()
	if places < 0 {
		places = 0
	}
	return d.StringFixed(places)
}

// ParseNumber parses a number as found in exported statements. Characters in
// strip are trimmed from both ends, thousands separators are removed and an
// empty value is zero.
func ParseNumber(raw, strip string) (decimal.Decimal, error) {
	value := strings.TrimSpace(raw)
	negative := false
	if strings.HasPrefix(value, "-") {
		negative = true
		value = strings.TrimSpace(value[1:])
	}
	if strip != "" {
		value = strings.TrimSpace(strings.Trim(value, strip))
	}
	value = strings.ReplaceAll(value, ",", "")

	if value == "" {
		return decimal.Zero, nil
	}

	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", common.ErrInvalidAmount, raw)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}
