// Package worker holds the queue consumers that run outside the HTTP
// process. The alert worker turns budget alert events into emails.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Amansingh0807/OptExAI/internal/amqp"
	"github.com/Amansingh0807/OptExAI/internal/core"
	"github.com/Amansingh0807/OptExAI/internal/log"
	"github.com/Amansingh0807/OptExAI/internal/notify"
	"github.com/Amansingh0807/OptExAI/internal/services"
	"github.com/Amansingh0807/OptExAI/internal/storage"
)

// AlertWorker consumes budget alert events, re-checks the monthly throttle
// against current state and delivers the email. LastAlertSent is stamped only
// after delivery succeeds, so a failed send is retried on the next event
// instead of silently swallowed.
type AlertWorker struct {
	repo     *storage.Repository
	budgets  *services.BudgetService
	notifier notify.Notifier
	logger   *log.Logger
	now      func() time.Time
}

func NewAlertWorker(repo *storage.Repository, budgets *services.BudgetService, notifier notify.Notifier, logger *log.Logger) *AlertWorker {
	return &AlertWorker{
		repo:     repo,
		budgets:  budgets,
		notifier: notifier,
		logger:   logger.WithComponent(log.ComponentWorker),
		now:      time.Now,
	}
}

// HandleAlertMessage processes a single budget alert event. Returning an
// error nacks the delivery back onto the queue.
func (w *AlertWorker) HandleAlertMessage(ctx context.Context, msg *amqp.BudgetAlertMessage) error {
	// The event is advisory; re-read budget and spending so a stale or
	// duplicate delivery cannot produce a wrong or doubled email.
	budget, err := w.repo.GetBudget(ctx, msg.OwnerID)
	if errors.Is(err, core.ErrNotFound) {
		w.logger.InfoContext(ctx, "alert event for deleted budget, dropping",
			log.FieldOwnerID, msg.OwnerID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load budget: %w", err)
	}

	if w.alreadySentThisMonth(budget.LastAlertSent) {
		w.logger.InfoContext(ctx, "alert already sent this month, dropping",
			log.FieldOwnerID, msg.OwnerID)
		return nil
	}

	status, err := w.budgets.Status(ctx, msg.OwnerID, "")
	if err != nil {
		return fmt.Errorf("compute budget status: %w", err)
	}
	if status.Budget == nil || status.PercentUsed < services.AlertThresholdPercent {
		w.logger.InfoContext(ctx, "usage dropped below threshold, dropping alert",
			log.FieldOwnerID, msg.OwnerID,
			log.FieldPercentUsed, status.PercentUsed)
		return nil
	}

	user, err := w.repo.GetUser(ctx, msg.OwnerID)
	if err != nil {
		return fmt.Errorf("load owner: %w", err)
	}

	alert := notify.BudgetAlert{
		Amount:      status.Budget.Amount.StringFixed(2),
		Spent:       status.CurrentExpenses.StringFixed(2),
		Remaining:   status.Budget.Amount.Sub(status.CurrentExpenses).StringFixed(2),
		PercentUsed: status.PercentUsed,
		Currency:    status.Currency,
	}
	if err := w.notifier.SendBudgetAlert(ctx, user.Email, alert); err != nil {
		return fmt.Errorf("deliver alert email: %w", err)
	}

	if err := w.repo.StampAlert(ctx, msg.OwnerID, w.now().UTC()); err != nil {
		// The email went out; a failed stamp only risks one duplicate next
		// month-check, so log instead of requeueing the whole event.
		w.logger.ErrorContext(ctx, "failed to stamp alert",
			log.FieldOwnerID, msg.OwnerID,
			log.FieldError, err.Error())
	}

	w.logger.InfoContext(ctx, "budget alert delivered",
		log.FieldOwnerID, msg.OwnerID,
		log.FieldPercentUsed, status.PercentUsed)
	return nil
}

func (w *AlertWorker) alreadySentThisMonth(last *time.Time) bool {
	if last == nil {
		return false
	}
	from, to := core.MonthWindow(w.now())
	return !last.Before(from) && last.Before(to)
}
