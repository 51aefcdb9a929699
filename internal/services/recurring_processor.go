package services

import (
	"context"
	"errors"
	"time"

	"github.com/Amansingh0807/OptExAI/internal/core"
	"github.com/Amansingh0807/OptExAI/internal/log"
	"github.com/Amansingh0807/OptExAI/internal/storage"
)

// RecurringProcessor materializes due recurring templates into concrete
// transactions. Each occurrence goes through TransactionService.Create so
// the balance coupling and the insufficient-funds guard apply; an unfunded
// recurring expense is skipped for this cycle, not partially applied.
type RecurringProcessor struct {
	repo      *storage.Repository
	txs       *TransactionService
	budgets   *BudgetService
	logger    *log.Logger
	batchSize int
	now       func() time.Time
}

func NewRecurringProcessor(repo *storage.Repository, txs *TransactionService, budgets *BudgetService, logger *log.Logger) *RecurringProcessor {
	return &RecurringProcessor{
		repo:      repo,
		txs:       txs,
		budgets:   budgets,
		logger:    logger.WithComponent(log.ComponentWorker),
		batchSize: 100,
		now:       time.Now,
	}
}

// Run processes one batch of due templates. It returns the number of
// occurrences created; per-template failures are logged, not returned, so
// one broken template cannot stall the rest of the batch.
func (p *RecurringProcessor) Run(ctx context.Context) (int, error) {
	now := p.now()
	due, err := p.repo.DueRecurring(ctx, now, p.batchSize)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, tmpl := range due {
		if ctx.Err() != nil {
			return created, ctx.Err()
		}
		if p.processTemplate(ctx, tmpl, now) {
			created++
		}
	}
	if len(due) > 0 {
		p.logger.InfoContext(ctx, "recurring batch processed",
			"due", len(due), "created", created)
	}
	return created, nil
}

func (p *RecurringProcessor) processTemplate(ctx context.Context, tmpl core.Transaction, now time.Time) bool {
	occurred := now
	if tmpl.NextRecurringDate != nil {
		occurred = *tmpl.NextRecurringDate
	}

	_, err := p.txs.Create(ctx, tmpl.OwnerID, CreateTransactionRequest{
		AccountID:   tmpl.AccountID,
		Type:        tmpl.Type,
		Amount:      tmpl.Amount,
		Category:    tmpl.Category,
		Description: tmpl.Description,
		Date:        occurred,
	})

	var insufficient *core.InsufficientFundsError
	switch {
	case err == nil:
		if tmpl.Type == core.Expense && p.budgets != nil {
			p.budgets.Evaluate(ctx, tmpl.OwnerID)
		}
	case errors.As(err, &insufficient):
		// Skip this cycle; the template advances and tries again next time.
		p.logger.WarnContext(ctx, "recurring expense skipped, insufficient funds",
			log.FieldOwnerID, tmpl.OwnerID,
			log.FieldTxID, tmpl.ID,
			log.FieldAmount, tmpl.Amount.String())
	default:
		p.logger.ErrorContext(ctx, "recurring occurrence failed",
			log.FieldTxID, tmpl.ID,
			log.FieldError, err.Error())
		return false
	}

	next := core.NextOccurrence(occurred, tmpl.RecurringInterval)
	if advErr := p.repo.AdvanceRecurring(ctx, tmpl.ID, next); advErr != nil {
		p.logger.ErrorContext(ctx, "failed to advance recurring template",
			log.FieldTxID, tmpl.ID,
			log.FieldError, advErr.Error())
	}
	return err == nil
}
