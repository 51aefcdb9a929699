package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Amansingh0807/OptExAI/internal/core"
)

// LedgerEntry is a transaction joined with the currency of its account, which
// readers need to convert amounts into the owner's display currency.
type LedgerEntry struct {
	core.Transaction
	AccountCurrency string
}

// TransactionFilter narrows ListTransactions. Zero values mean "no filter".
type TransactionFilter struct {
	AccountID string
	Type      core.TransactionType
	From      *time.Time
	To        *time.Time
	Limit     int
}

// CreateTransaction inserts a transaction and moves its account balance in
// one database transaction. An expense exceeding the available balance rolls
// the whole write back with an InsufficientFundsError.
func (r *Repository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		balance, currency, err := lockAccount(ctx, tx, t.OwnerID, t.AccountID)
		if err != nil {
			return err
		}

		newBalance := balance.Add(t.SignedAmount())
		if newBalance.IsNegative() {
			return &core.InsufficientFundsError{
				Available: balance,
				Requested: t.Amount,
				Currency:  currency,
			}
		}

		if err := insertTransaction(ctx, tx, t); err != nil {
			return err
		}
		return writeBalance(ctx, tx, t.AccountID, newBalance)
	})
	if err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

// UpdateTransaction rewrites a transaction and applies the net balance change
// atomically. The available balance for the guard includes the refund of the
// old amount: shrinking an expense can never fail, growing one fails only if
// the growth exceeds what the account holds.
func (r *Repository) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t.UpdatedAt = time.Now().UTC()

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		old, err := getTransactionTx(ctx, tx, t.OwnerID, t.ID)
		if err != nil {
			return err
		}
		// The transaction stays on its original account.
		t.AccountID = old.AccountID
		t.CreatedAt = old.CreatedAt

		balance, currency, err := lockAccount(ctx, tx, t.OwnerID, t.AccountID)
		if err != nil {
			return err
		}

		netChange := t.SignedAmount().Sub(old.SignedAmount())
		newBalance := balance.Add(netChange)
		if newBalance.IsNegative() {
			return &core.InsufficientFundsError{
				Available: balance.Sub(old.SignedAmount()),
				Requested: t.Amount,
				Currency:  currency,
			}
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE transactions
			SET type = ?, amount = ?, category = ?, description = ?, date = ?,
			    is_recurring = ?, recurring_interval = ?, next_recurring_date = ?, updated_at = ?
			WHERE id = ? AND owner_id = ?`,
			string(t.Type), t.Amount.String(), t.Category, t.Description, t.Date,
			boolToInt(t.IsRecurring), string(t.RecurringInterval), nullTime(t.NextRecurringDate),
			t.UpdatedAt, t.ID, t.OwnerID)
		if err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		return writeBalance(ctx, tx, t.AccountID, newBalance)
	})
	if err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

// DeleteTransaction removes a transaction and reverses its balance effect.
// Reversal is unconditional: deleting an income may legitimately leave the
// account lower than subsequent spending assumed.
func (r *Repository) DeleteTransaction(ctx context.Context, ownerID, id string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		old, err := getTransactionTx(ctx, tx, ownerID, id)
		if err != nil {
			return err
		}
		balance, _, err := lockAccount(ctx, tx, ownerID, old.AccountID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM transactions WHERE id = ? AND owner_id = ?`, id, ownerID); err != nil {
			return fmt.Errorf("delete transaction: %w", err)
		}
		return writeBalance(ctx, tx, old.AccountID, balance.Sub(old.SignedAmount()))
	})
}

// GetTransaction fetches a transaction scoped to its owner.
func (r *Repository) GetTransaction(ctx context.Context, ownerID, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, selectTransaction+` WHERE id = ? AND owner_id = ?`, id, ownerID)
	t, err := scanTransaction(row)
	if err != nil {
		if mapNotFound(err) == core.ErrNotFound {
			return core.Transaction{}, core.ErrNotFound
		}
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// ListTransactions returns the owner's transactions, newest first, joined
// with each account's currency.
func (r *Repository) ListTransactions(ctx context.Context, ownerID string, f TransactionFilter) ([]LedgerEntry, error) {
	query := `
		SELECT t.id, t.owner_id, t.account_id, t.type, t.amount, t.category, t.description,
		       t.date, t.is_recurring, t.recurring_interval, t.next_recurring_date,
		       t.created_at, t.updated_at, a.currency
		FROM transactions t
		JOIN accounts a ON a.id = t.account_id
		WHERE t.owner_id = ?`
	args := []any{ownerID}

	if f.AccountID != "" {
		query += ` AND t.account_id = ?`
		args = append(args, f.AccountID)
	}
	if f.Type != "" {
		query += ` AND t.type = ?`
		args = append(args, string(f.Type))
	}
	if f.From != nil {
		query += ` AND t.date >= ?`
		args = append(args, *f.From)
	}
	if f.To != nil {
		query += ` AND t.date < ?`
		args = append(args, *f.To)
	}
	query += ` ORDER BY t.date DESC, t.created_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListExpensesBetween returns the owner's expenses in the half-open window
// [from, to), joined with account currencies, for budget aggregation.
func (r *Repository) ListExpensesBetween(ctx context.Context, ownerID string, from, to time.Time) ([]LedgerEntry, error) {
	f := TransactionFilter{Type: core.Expense, From: &from, To: &to}
	return r.ListTransactions(ctx, ownerID, f)
}

// TransactionCounts returns the number of transactions per account for the
// owner. Accounts without transactions are absent from the map.
func (r *Repository) TransactionCounts(ctx context.Context, ownerID string) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT account_id, COUNT(*) FROM transactions WHERE owner_id = ? GROUP BY account_id`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("count transactions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var accountID string
		var n int
		if err := rows.Scan(&accountID, &n); err != nil {
			return nil, fmt.Errorf("scan transaction count: %w", err)
		}
		counts[accountID] = n
	}
	return counts, rows.Err()
}

// DueRecurring returns recurring templates whose next occurrence is due at or
// before now.
func (r *Repository) DueRecurring(ctx context.Context, now time.Time, limit int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, selectTransaction+`
		WHERE is_recurring = 1 AND next_recurring_date IS NOT NULL AND next_recurring_date <= ?
		ORDER BY next_recurring_date ASC
		LIMIT ?`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due recurring transactions: %w", err)
	}
	defer rows.Close()

	var due []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring transaction: %w", err)
		}
		due = append(due, t)
	}
	return due, rows.Err()
}

// AdvanceRecurring moves a recurring template's next occurrence forward.
func (r *Repository) AdvanceRecurring(ctx context.Context, id string, next time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET next_recurring_date = ?, updated_at = ? WHERE id = ? AND is_recurring = 1`,
		next, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("advance recurring transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

const selectTransaction = `
	SELECT id, owner_id, account_id, type, amount, category, description, date,
	       is_recurring, recurring_interval, next_recurring_date, created_at, updated_at
	FROM transactions`

func insertTransaction(ctx context.Context, tx *sql.Tx, t core.Transaction) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (id, owner_id, account_id, type, amount, category, description,
		                          date, is_recurring, recurring_interval, next_recurring_date,
		                          created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OwnerID, t.AccountID, string(t.Type), t.Amount.String(), t.Category,
		t.Description, t.Date, boolToInt(t.IsRecurring), string(t.RecurringInterval),
		nullTime(t.NextRecurringDate), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func getTransactionTx(ctx context.Context, tx *sql.Tx, ownerID, id string) (core.Transaction, error) {
	row := tx.QueryRowContext(ctx, selectTransaction+` WHERE id = ? AND owner_id = ?`, id, ownerID)
	t, err := scanTransaction(row)
	if err != nil {
		if mapNotFound(err) == core.ErrNotFound {
			return core.Transaction{}, core.ErrNotFound
		}
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t           core.Transaction
		typ         string
		amount      string
		interval    string
		isRecurring int
		next        sql.NullTime
	)
	err := row.Scan(&t.ID, &t.OwnerID, &t.AccountID, &typ, &amount, &t.Category,
		&t.Description, &t.Date, &isRecurring, &interval, &next, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Type = core.TransactionType(typ)
	t.IsRecurring = isRecurring != 0
	t.RecurringInterval = core.RecurringInterval(strings.TrimSpace(interval))
	t.NextRecurringDate = timePtr(next)
	t.Amount, err = parseDecimal(amount)
	if err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

func scanLedgerEntry(row rowScanner) (LedgerEntry, error) {
	var (
		e           LedgerEntry
		typ         string
		amount      string
		interval    string
		isRecurring int
		next        sql.NullTime
	)
	err := row.Scan(&e.ID, &e.OwnerID, &e.AccountID, &typ, &amount, &e.Category,
		&e.Description, &e.Date, &isRecurring, &interval, &next,
		&e.CreatedAt, &e.UpdatedAt, &e.AccountCurrency)
	if err != nil {
		return LedgerEntry{}, err
	}
	e.Type = core.TransactionType(typ)
	e.IsRecurring = isRecurring != 0
	e.RecurringInterval = core.RecurringInterval(strings.TrimSpace(interval))
	e.NextRecurringDate = timePtr(next)
	e.Amount, err = parseDecimal(amount)
	if err != nil {
		return LedgerEntry{}, err
	}
	return e, nil
}
