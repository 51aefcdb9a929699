package services

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/Amansingh0807/OptExAI/internal/core"
	"github.com/Amansingh0807/OptExAI/internal/log"
	"github.com/Amansingh0807/OptExAI/internal/storage"
)

// AccountService manages the owner's accounts and display currency.
type AccountService struct {
	repo      *storage.Repository
	converter Converter
	logger    *log.Logger
}

func NewAccountService(repo *storage.Repository, converter Converter, logger *log.Logger) *AccountService {
	return &AccountService{
		repo:      repo,
		converter: converter,
		logger:    logger.WithComponent(log.ComponentAccount),
	}
}

type CreateAccountRequest struct {
	Name      string
	Type      core.AccountType
	Balance   decimal.Decimal
	Currency  string
	IsDefault bool
}

// AccountView is an account with its balance restated in the owner's display
// currency and the number of transactions recorded against it.
type AccountView struct {
	core.Account
	TransactionCount int
	DisplayBalance   decimal.Decimal
	DisplayCurrency  string
}

// AccountDetail is a single account with its recent transactions.
type AccountDetail struct {
	core.Account
	Transactions []core.Transaction
}

// Create opens a new account with an opening balance.
func (s *AccountService) Create(ctx context.Context, ownerID string, req CreateAccountRequest) (core.Account, error) {
	a := core.Account{
		OwnerID:   ownerID,
		Name:      req.Name,
		Type:      req.Type,
		Balance:   req.Balance,
		Currency:  req.Currency,
		IsDefault: req.IsDefault,
	}
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	if a.Balance.IsNegative() {
		return core.Account{}, core.ErrInvalidAmount
	}

	created, err := s.repo.CreateAccount(ctx, a)
	if err != nil {
		return core.Account{}, err
	}

	s.logger.InfoContext(ctx, "account created",
		log.FieldOwnerID, ownerID,
		log.FieldAccountID, created.ID,
		log.FieldCurrency, created.Currency,
		"is_default", created.IsDefault)
	return created, nil
}

// List returns the owner's accounts with transaction counts and balances in
// the owner's display currency. Conversion failures degrade to the account
// currency.
func (s *AccountService) List(ctx context.Context, ownerID string) ([]AccountView, error) {
	user, err := s.repo.GetUser(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	accounts, err := s.repo.ListAccounts(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	counts, err := s.repo.TransactionCounts(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	views := make([]AccountView, len(accounts))
	for i, a := range accounts {
		view := AccountView{
			Account:          a,
			TransactionCount: counts[a.ID],
			DisplayBalance:   a.Balance,
			DisplayCurrency:  a.Currency,
		}
		if a.Currency != user.DisplayCurrency {
			converted, err := s.converter.Convert(ctx, a.Balance, a.Currency, user.DisplayCurrency)
			if err != nil {
				s.logger.WarnContext(ctx, "display conversion failed",
					log.FieldAccountID, a.ID,
					log.FieldError, err.Error())
			} else {
				view.DisplayBalance = converted
				view.DisplayCurrency = user.DisplayCurrency
			}
		}
		views[i] = view
	}
	return views, nil
}

// Get returns an account with its transactions, newest first.
func (s *AccountService) Get(ctx context.Context, ownerID, accountID string) (AccountDetail, error) {
	a, err := s.repo.GetAccount(ctx, ownerID, accountID)
	if err != nil {
		return AccountDetail{}, err
	}
	entries, err := s.repo.ListTransactions(ctx, ownerID, storage.TransactionFilter{AccountID: accountID})
	if err != nil {
		return AccountDetail{}, err
	}
	detail := AccountDetail{Account: a, Transactions: make([]core.Transaction, len(entries))}
	for i, e := range entries {
		detail.Transactions[i] = e.Transaction
	}
	return detail, nil
}

// SetDefault makes the account the owner's default.
func (s *AccountService) SetDefault(ctx context.Context, ownerID, accountID string) error {
	if err := s.repo.SetDefaultAccount(ctx, ownerID, accountID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "default account changed",
		log.FieldOwnerID, ownerID,
		log.FieldAccountID, accountID)
	return nil
}

// Delete removes an account and, via cascade, its transactions.
func (s *AccountService) Delete(ctx context.Context, ownerID, accountID string) error {
	if err := s.repo.DeleteAccount(ctx, ownerID, accountID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "account deleted",
		log.FieldOwnerID, ownerID,
		log.FieldAccountID, accountID)
	return nil
}

// OwnerCurrency returns the owner's preferred display currency.
func (s *AccountService) OwnerCurrency(ctx context.Context, ownerID string) (string, error) {
	user, err := s.repo.GetUser(ctx, ownerID)
	if err != nil {
		return "", err
	}
	return user.DisplayCurrency, nil
}

// UpdateOwnerCurrency changes the owner's preferred display currency.
func (s *AccountService) UpdateOwnerCurrency(ctx context.Context, ownerID, currency string) error {
	if !core.ValidCurrency(currency) {
		return &core.InvalidCurrencyError{Code: currency}
	}
	if err := s.repo.UpdateUserCurrency(ctx, ownerID, currency); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "display currency changed",
		log.FieldOwnerID, ownerID,
		log.FieldCurrency, currency)
	return nil
}
