package core

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")

	ErrEmptyName                = errors.New("empty name")
	ErrNameTooLong              = errors.New("name too long (max 100 characters)")
	ErrInvalidAccountType       = errors.New("invalid account type")
	ErrInvalidTransactionType   = errors.New("invalid transaction type")
	ErrInvalidAmount            = errors.New("invalid amount")
	ErrInvalidCategory          = errors.New("invalid category")
	ErrInvalidDate              = errors.New("invalid date")
	ErrFutureDate               = errors.New("transaction date cannot be in the future")
	ErrDescriptionTooLong       = errors.New("description too long (max 500 characters)")
	ErrInvalidRecurringInterval = errors.New("recurring interval required iff transaction is recurring")
)

// InsufficientFundsError rejects an expense that would drive an account
// balance negative. It carries the amounts so callers can render them.
type InsufficientFundsError struct {
	Available decimal.Decimal
	Requested decimal.Decimal
	Currency  string
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient balance: available %s %s, trying to spend %s %s",
		e.Available.StringFixed(2), e.Currency, e.Requested.StringFixed(2), e.Currency)
}

// InvalidCurrencyError signals a currency code outside the supported set.
type InvalidCurrencyError struct {
	Code string
}

func (e *InvalidCurrencyError) Error() string {
	return fmt.Sprintf("unsupported currency %q", e.Code)
}
