package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Amansingh0807/OptExAI/internal/amqp"
	"github.com/Amansingh0807/OptExAI/internal/core"
	"github.com/Amansingh0807/OptExAI/internal/log"
	"github.com/Amansingh0807/OptExAI/internal/storage"
)

// AlertThresholdPercent is the budget usage level that triggers an alert.
const AlertThresholdPercent = 90.0

// AlertPublisher hands a budget alert event to the message broker. A nil
// publisher disables alerting without touching the budget read path.
type AlertPublisher interface {
	PublishBudgetAlert(ctx context.Context, msg *amqp.BudgetAlertMessage) error
}

// BudgetService tracks monthly spending against the owner's single budget.
type BudgetService struct {
	repo      *storage.Repository
	converter Converter
	events    AlertPublisher
	logger    *log.Logger
	now       func() time.Time
}

func NewBudgetService(repo *storage.Repository, converter Converter, events AlertPublisher, logger *log.Logger) *BudgetService {
	return &BudgetService{
		repo:      repo,
		converter: converter,
		events:    events,
		logger:    logger.WithComponent(log.ComponentBudget),
		now:       time.Now,
	}
}

// BudgetStatus is the owner's budget against this calendar month's spending,
// both in the owner's display currency.
type BudgetStatus struct {
	Budget          *core.Budget
	CurrentExpenses decimal.Decimal
	PercentUsed     float64
	Currency        string
}

// Upsert creates or replaces the owner's monthly budget amount.
func (s *BudgetService) Upsert(ctx context.Context, ownerID string, amount decimal.Decimal) (core.Budget, error) {
	if !amount.IsPositive() {
		return core.Budget{}, core.ErrInvalidAmount
	}
	b, err := s.repo.UpsertBudget(ctx, ownerID, amount)
	if err != nil {
		return core.Budget{}, err
	}
	s.logger.InfoContext(ctx, "budget saved",
		log.FieldOwnerID, ownerID,
		log.FieldAmount, amount.String())
	return b, nil
}

// Status sums this calendar month's expenses, each converted into the
// owner's display currency before summing, and relates them to the budget.
// accountID narrows the sum to one account when non-empty. Without a budget
// the percentage is zero.
func (s *BudgetService) Status(ctx context.Context, ownerID, accountID string) (BudgetStatus, error) {
	user, err := s.repo.GetUser(ctx, ownerID)
	if err != nil {
		return BudgetStatus{}, err
	}

	from, to := core.MonthWindow(s.now())
	entries, err := s.repo.ListTransactions(ctx, ownerID, storage.TransactionFilter{
		AccountID: accountID,
		Type:      core.Expense,
		From:      &from,
		To:        &to,
	})
	if err != nil {
		return BudgetStatus{}, err
	}

	spent := decimal.Zero
	for _, e := range entries {
		amount := e.Amount
		if e.AccountCurrency != user.DisplayCurrency {
			converted, err := s.converter.Convert(ctx, amount, e.AccountCurrency, user.DisplayCurrency)
			if err != nil {
				s.logger.WarnContext(ctx, "expense conversion failed, using raw amount",
					log.FieldTxID, e.ID,
					log.FieldError, err.Error())
			} else {
				amount = converted
			}
		}
		spent = spent.Add(amount)
	}

	status := BudgetStatus{CurrentExpenses: spent, Currency: user.DisplayCurrency}

	budget, err := s.repo.GetBudget(ctx, ownerID)
	switch err {
	case nil:
		status.Budget = &budget
		if budget.Amount.IsPositive() {
			status.PercentUsed, _ = spent.Div(budget.Amount).Mul(decimal.NewFromInt(100)).Float64()
		}
	case core.ErrNotFound:
		// No budget set; percentage stays zero.
	default:
		return BudgetStatus{}, err
	}
	return status, nil
}

// CheckAlert publishes a budget alert event when usage crossed the threshold
// and no alert went out this calendar month. Publishing is fire-and-forget:
// a broker outage is logged and the read path carries on. The alert stamp is
// written by the worker after the email is actually delivered.
func (s *BudgetService) CheckAlert(ctx context.Context, ownerID string, status BudgetStatus) {
	if s.events == nil || status.Budget == nil || status.PercentUsed < AlertThresholdPercent {
		return
	}
	if alreadyAlertedThisMonth(status.Budget.LastAlertSent, s.now()) {
		return
	}

	msg := amqp.NewBudgetAlertMessage(
		ownerID,
		status.Budget.ID,
		status.Budget.Amount.String(),
		status.CurrentExpenses.String(),
		status.PercentUsed,
		status.Currency,
	)
	if err := s.events.PublishBudgetAlert(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "budget alert publish failed",
			log.FieldOwnerID, ownerID,
			log.FieldPercentUsed, status.PercentUsed,
			log.FieldError, err.Error())
		return
	}
	s.logger.InfoContext(ctx, "budget alert published",
		log.FieldOwnerID, ownerID,
		log.FieldPercentUsed, status.PercentUsed)
}

// Evaluate recomputes the owner's budget status and raises an alert if due.
// Callers invoke it after expense writes; any failure is logged, never
// propagated into the write path.
func (s *BudgetService) Evaluate(ctx context.Context, ownerID string) {
	status, err := s.Status(ctx, ownerID, "")
	if err != nil {
		s.logger.WarnContext(ctx, "budget evaluation failed",
			log.FieldOwnerID, ownerID,
			log.FieldError, err.Error())
		return
	}
	s.CheckAlert(ctx, ownerID, status)
}

// alreadyAlertedThisMonth reports whether last falls inside the calendar
// month containing now.
func alreadyAlertedThisMonth(last *time.Time, now time.Time) bool {
	if last == nil {
		return false
	}
	from, to := core.MonthWindow(now)
	return !last.Before(from) && last.Before(to)
}
