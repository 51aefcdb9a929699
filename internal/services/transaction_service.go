package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Amansingh0807/OptExAI/internal/core"
	"github.com/Amansingh0807/OptExAI/internal/log"
	"github.com/Amansingh0807/OptExAI/internal/storage"
)

// Classifier suggests a category for a transaction description. An empty
// string means "no suggestion"; the service then falls back to the generic
// bucket for the type.
type Classifier interface {
	Classify(ctx context.Context, typ core.TransactionType, description string) string
}

// TransactionService owns the write path of the ledger. Balance coupling and
// the insufficient-funds guard live in the repository's transactional writes;
// this layer validates, fills defaults and resolves categories.
type TransactionService struct {
	repo       *storage.Repository
	classifier Classifier
	converter  Converter
	logger     *log.Logger
	now        func() time.Time
}

// Converter turns an amount from one currency into another.
type Converter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error)
}

func NewTransactionService(repo *storage.Repository, classifier Classifier, converter Converter, logger *log.Logger) *TransactionService {
	return &TransactionService{
		repo:       repo,
		classifier: classifier,
		converter:  converter,
		logger:     logger.WithComponent(log.ComponentLedger),
		now:        time.Now,
	}
}

type CreateTransactionRequest struct {
	AccountID         string
	Type              core.TransactionType
	Amount            decimal.Decimal
	Category          string
	Description       string
	Date              time.Time
	IsRecurring       bool
	RecurringInterval core.RecurringInterval
}

type UpdateTransactionRequest struct {
	Type              core.TransactionType
	Amount            decimal.Decimal
	Category          string
	Description       string
	Date              time.Time
	IsRecurring       bool
	RecurringInterval core.RecurringInterval
}

// TransactionView is a transaction with its amount restated in the viewer's
// preferred currency. Amount on the embedded transaction stays in the
// account's currency.
type TransactionView struct {
	core.Transaction
	AccountCurrency string
	DisplayAmount   decimal.Decimal
	DisplayCurrency string
}

// ListTransactionsParams narrows List. Zero values mean no filter.
type ListTransactionsParams struct {
	AccountID string
	Type      core.TransactionType
	From      *time.Time
	To        *time.Time
	Limit     int
}

// Create validates and persists a new transaction, moving the account balance
// atomically. When the caller left the category empty or picked the generic
// bucket and supplied a description, the classifier may refine it; every
// classifier failure silently keeps the caller's choice.
func (s *TransactionService) Create(ctx context.Context, ownerID string, req CreateTransactionRequest) (core.Transaction, error) {
	accountID := req.AccountID
	if accountID == "" {
		def, err := s.repo.GetDefaultAccount(ctx, ownerID)
		if err != nil {
			return core.Transaction{}, err
		}
		accountID = def.ID
	}

	t := core.Transaction{
		OwnerID:           ownerID,
		AccountID:         accountID,
		Type:              req.Type,
		Amount:            req.Amount,
		Category:          req.Category,
		Description:       req.Description,
		Date:              req.Date,
		IsRecurring:       req.IsRecurring,
		RecurringInterval: req.RecurringInterval,
	}
	t.Category = s.resolveCategory(ctx, t)

	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.rejectFutureDate(t.Date); err != nil {
		return core.Transaction{}, err
	}
	if t.IsRecurring {
		next := core.NextOccurrence(t.Date, t.RecurringInterval)
		t.NextRecurringDate = &next
	}

	created, err := s.repo.CreateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, err
	}

	s.logger.InfoContext(ctx, "transaction created",
		log.FieldOwnerID, ownerID,
		log.FieldTxID, created.ID,
		log.FieldTxType, string(created.Type),
		log.FieldAmount, created.Amount.String(),
		log.FieldCategory, created.Category)
	return created, nil
}

// rejectFutureDate enforces that manual entries carry past or present dates.
// Dates are date-only on the wire while now() is a wall clock, so a client a
// timezone ahead of the server would see "today" rejected without slack; one
// day absorbs every UTC offset.
func (s *TransactionService) rejectFutureDate(date time.Time) error {
	if date.After(s.now().Add(24 * time.Hour)) {
		return core.ErrFutureDate
	}
	return nil
}

// resolveCategory decides the stored category. The classifier only runs when
// the caller gave it room: an empty category, or the generic bucket plus a
// usable description.
func (s *TransactionService) resolveCategory(ctx context.Context, t core.Transaction) string {
	category := t.Category
	undecided := category == "" || category == core.OtherCategory(t.Type)
	if undecided && s.classifier != nil && t.Description != "" {
		if label := s.classifier.Classify(ctx, t.Type, t.Description); label != "" {
			category = label
		}
	}
	if category == "" {
		category = core.OtherCategory(t.Type)
	}
	return category
}

// Update rewrites a transaction. The repository applies the net balance
// change in the same database transaction as the row update.
func (s *TransactionService) Update(ctx context.Context, ownerID, txID string, req UpdateTransactionRequest) (core.Transaction, error) {
	t := core.Transaction{
		ID:                txID,
		OwnerID:           ownerID,
		Type:              req.Type,
		Amount:            req.Amount,
		Category:          req.Category,
		Description:       req.Description,
		Date:              req.Date,
		IsRecurring:       req.IsRecurring,
		RecurringInterval: req.RecurringInterval,
	}
	if t.Category == "" {
		t.Category = core.OtherCategory(t.Type)
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.rejectFutureDate(t.Date); err != nil {
		return core.Transaction{}, err
	}
	if t.IsRecurring {
		next := core.NextOccurrence(t.Date, t.RecurringInterval)
		t.NextRecurringDate = &next
	}

	updated, err := s.repo.UpdateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, err
	}

	s.logger.InfoContext(ctx, "transaction updated",
		log.FieldOwnerID, ownerID,
		log.FieldTxID, txID,
		log.FieldAmount, updated.Amount.String())
	return updated, nil
}

// Delete removes a transaction and reverses its balance effect.
func (s *TransactionService) Delete(ctx context.Context, ownerID, txID string) error {
	if err := s.repo.DeleteTransaction(ctx, ownerID, txID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "transaction deleted",
		log.FieldOwnerID, ownerID,
		log.FieldTxID, txID)
	return nil
}

// Get fetches a single transaction.
func (s *TransactionService) Get(ctx context.Context, ownerID, txID string) (core.Transaction, error) {
	return s.repo.GetTransaction(ctx, ownerID, txID)
}

// List returns the owner's transactions newest first, each restated in the
// owner's display currency. A conversion failure degrades to the account
// currency amount rather than failing the read.
func (s *TransactionService) List(ctx context.Context, ownerID string, params ListTransactionsParams) ([]TransactionView, error) {
	user, err := s.repo.GetUser(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	entries, err := s.repo.ListTransactions(ctx, ownerID, storage.TransactionFilter{
		AccountID: params.AccountID,
		Type:      params.Type,
		From:      params.From,
		To:        params.To,
		Limit:     params.Limit,
	})
	if err != nil {
		return nil, err
	}

	views := make([]TransactionView, len(entries))
	for i, e := range entries {
		view := TransactionView{
			Transaction:     e.Transaction,
			AccountCurrency: e.AccountCurrency,
			DisplayAmount:   e.Amount,
			DisplayCurrency: e.AccountCurrency,
		}
		if e.AccountCurrency != user.DisplayCurrency {
			converted, err := s.converter.Convert(ctx, e.Amount, e.AccountCurrency, user.DisplayCurrency)
			if err != nil {
				s.logger.WarnContext(ctx, "display conversion failed",
					log.FieldTxID, e.ID,
					log.FieldCurrency, e.AccountCurrency,
					log.FieldError, err.Error())
			} else {
				view.DisplayAmount = converted
				view.DisplayCurrency = user.DisplayCurrency
			}
		}
		views[i] = view
	}
	return views, nil
}
