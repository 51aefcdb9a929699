// Package core holds the ledger domain: accounts, transactions, budgets,
// and the monetary parsing rules shared by every layer above it.
//
// All monetary values are decimal.Decimal end to end. Floats appear only at
// the presentation boundary (JSON responses, percent-used figures).
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a positive monetary amount from user input.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and
// rejects zero, negative, and malformed values. No rounding is applied; the
// value is kept at the precision the user entered.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}
