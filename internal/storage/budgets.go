package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Amansingh0807/OptExAI/internal/core"
)

// UpsertBudget creates the owner's monthly budget or replaces its amount.
// The alert stamp survives an amount change so a re-saved budget does not
// re-trigger this month's alert.
func (r *Repository) UpsertBudget(ctx context.Context, ownerID string, amount decimal.Decimal) (core.Budget, error) {
	now := time.Now().UTC()
	id := uuid.NewString()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO budgets (id, owner_id, amount, last_alert_sent, created_at, updated_at)
		VALUES (?, ?, ?, NULL, ?, ?)
		ON CONFLICT (owner_id) DO UPDATE SET amount = excluded.amount, updated_at = excluded.updated_at`,
		id, ownerID, amount.String(), now, now)
	if err != nil {
		return core.Budget{}, fmt.Errorf("upsert budget: %w", err)
	}

	return r.GetBudget(ctx, ownerID)
}

// GetBudget returns the owner's budget, or core.ErrNotFound when none is set.
func (r *Repository) GetBudget(ctx context.Context, ownerID string) (core.Budget, error) {
	var (
		b        core.Budget
		amount   string
		lastSent sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, amount, last_alert_sent, created_at, updated_at
		FROM budgets WHERE owner_id = ?`, ownerID).
		Scan(&b.ID, &b.OwnerID, &amount, &lastSent, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if mapNotFound(err) == core.ErrNotFound {
			return core.Budget{}, core.ErrNotFound
		}
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	b.LastAlertSent = timePtr(lastSent)
	b.Amount, err = parseDecimal(amount)
	if err != nil {
		return core.Budget{}, err
	}
	return b, nil
}

// StampAlert records that a budget alert went out at t. Called only after the
// notification is actually delivered.
func (r *Repository) StampAlert(ctx context.Context, ownerID string, t time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE budgets SET last_alert_sent = ?, updated_at = ? WHERE owner_id = ?`,
		t, time.Now().UTC(), ownerID)
	if err != nil {
		return fmt.Errorf("stamp budget alert: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// DeleteBudget removes the owner's budget.
func (r *Repository) DeleteBudget(ctx context.Context, ownerID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE owner_id = ?`, ownerID)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}
