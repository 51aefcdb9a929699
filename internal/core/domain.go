package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	AccountCurrent AccountType = "CURRENT"
	AccountSavings AccountType = "SAVINGS"
)

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"
)

const (
	Daily   RecurringInterval = "DAILY"
	Weekly  RecurringInterval = "WEEKLY"
	Monthly RecurringInterval = "MONTHLY"
	Yearly  RecurringInterval = "YEARLY"
)

type (
	AccountType       string
	TransactionType   string
	RecurringInterval string

	// User is the locally stored owner record. Identity itself lives with the
	// external provider; we only keep the opaque token mapping and the
	// preferred display currency.
	User struct {
		ID              string
		Token           string
		Email           string
		DisplayCurrency string
		CreatedAt       time.Time
		UpdatedAt       time.Time
	}

	Account struct {
		ID        string
		OwnerID   string
		Name      string
		Type      AccountType
		Balance   decimal.Decimal
		Currency  string
		IsDefault bool
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	Transaction struct {
		ID                string
		OwnerID           string
		AccountID         string
		Type              TransactionType
		Amount            decimal.Decimal
		Category          string
		Description       string
		Date              time.Time
		IsRecurring       bool
		RecurringInterval RecurringInterval
		NextRecurringDate *time.Time
		CreatedAt         time.Time
		UpdatedAt         time.Time
	}

	// Budget is the single monthly spending ceiling per owner, denominated
	// in the owner's preferred currency.
	Budget struct {
		ID            string
		OwnerID       string
		Amount        decimal.Decimal
		LastAlertSent *time.Time
		CreatedAt     time.Time
		UpdatedAt     time.Time
	}
)

func (t AccountType) Valid() bool {
	return t == AccountCurrent || t == AccountSavings
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (i RecurringInterval) Valid() bool {
	switch i {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

// SignedAmount returns +amount for INCOME and -amount for EXPENSE, the value
// a transaction contributes to its account balance.
func (t Transaction) SignedAmount() decimal.Decimal {
	if t.Type == Expense {
		return t.Amount.Neg()
	}
	return t.Amount
}

// NextOccurrence advances a date by one recurring interval unit.
func NextOccurrence(date time.Time, interval RecurringInterval) time.Time {
	switch interval {
	case Daily:
		return date.AddDate(0, 0, 1)
	case Weekly:
		return date.AddDate(0, 0, 7)
	case Monthly:
		return date.AddDate(0, 1, 0)
	case Yearly:
		return date.AddDate(1, 0, 0)
	}
	return date
}

// MonthWindow returns the half-open interval covering the calendar month of t
// in t's location: [first day 00:00, first day of next month 00:00).
func MonthWindow(t time.Time) (start, end time.Time) {
	start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	end = start.AddDate(0, 1, 0)
	return start, end
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if len(a.Name) > 100 {
		return ErrNameTooLong
	}
	if !a.Type.Valid() {
		return ErrInvalidAccountType
	}
	if !ValidCurrency(a.Currency) {
		return &InvalidCurrencyError{Code: a.Currency}
	}
	return nil
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidTransactionType
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !ValidCategory(t.Type, t.Category) {
		return ErrInvalidCategory
	}
	if len(t.Description) > 500 {
		return ErrDescriptionTooLong
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	if t.IsRecurring {
		if !t.RecurringInterval.Valid() {
			return ErrInvalidRecurringInterval
		}
	} else if t.RecurringInterval != "" {
		return ErrInvalidRecurringInterval
	}
	return nil
}
