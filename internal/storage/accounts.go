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

// CreateAccount inserts an account. The owner's first account always becomes
// the default; a later account flagged default demotes its siblings. Both
// happen in the same transaction as the insert.
func (r *Repository) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var existing int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM accounts WHERE owner_id = ?`, a.OwnerID).Scan(&existing); err != nil {
			return fmt.Errorf("count accounts: %w", err)
		}
		if existing == 0 {
			a.IsDefault = true
		} else if a.IsDefault {
			if _, err := tx.ExecContext(ctx,
				`UPDATE accounts SET is_default = 0, updated_at = ? WHERE owner_id = ?`,
				now, a.OwnerID); err != nil {
				return fmt.Errorf("clear default accounts: %w", err)
			}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO accounts (id, owner_id, name, type, balance, currency, is_default, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.OwnerID, a.Name, string(a.Type), a.Balance.String(), a.Currency,
			boolToInt(a.IsDefault), a.CreatedAt, a.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert account: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.Account{}, err
	}
	return a, nil
}

// GetAccount fetches an account scoped to its owner.
func (r *Repository) GetAccount(ctx context.Context, ownerID, id string) (core.Account, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, name, type, balance, currency, is_default, created_at, updated_at
		FROM accounts WHERE id = ? AND owner_id = ?`, id, ownerID)
	a, err := scanAccount(row)
	if err != nil {
		if mapNotFound(err) == core.ErrNotFound {
			return core.Account{}, core.ErrNotFound
		}
		return core.Account{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// GetDefaultAccount returns the owner's default account.
func (r *Repository) GetDefaultAccount(ctx context.Context, ownerID string) (core.Account, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, name, type, balance, currency, is_default, created_at, updated_at
		FROM accounts WHERE owner_id = ? AND is_default = 1`, ownerID)
	a, err := scanAccount(row)
	if err != nil {
		if mapNotFound(err) == core.ErrNotFound {
			return core.Account{}, core.ErrNotFound
		}
		return core.Account{}, fmt.Errorf("get default account: %w", err)
	}
	return a, nil
}

// ListAccounts returns all of the owner's accounts, default first, then by
// creation time.
func (r *Repository) ListAccounts(ctx context.Context, ownerID string) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, name, type, balance, currency, is_default, created_at, updated_at
		FROM accounts WHERE owner_id = ?
		ORDER BY is_default DESC, created_at ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// SetDefaultAccount makes the given account the owner's default, demoting the
// previous one in the same transaction.
func (r *Repository) SetDefaultAccount(ctx context.Context, ownerID, id string) error {
	now := time.Now().UTC()
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE accounts SET is_default = 0, updated_at = ? WHERE owner_id = ? AND is_default = 1`,
			now, ownerID); err != nil {
			return fmt.Errorf("clear default accounts: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE accounts SET is_default = 1, updated_at = ? WHERE id = ? AND owner_id = ?`,
			now, id, ownerID)
		if err != nil {
			return fmt.Errorf("set default account: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return core.ErrNotFound
		}
		return nil
	})
}

// RenameAccount updates an account's display name.
func (r *Repository) RenameAccount(ctx context.Context, ownerID, id, name string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET name = ?, updated_at = ? WHERE id = ? AND owner_id = ?`,
		name, time.Now().UTC(), id, ownerID)
	if err != nil {
		return fmt.Errorf("rename account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// DeleteAccount removes an account; its transactions go with it via the
// foreign key cascade.
func (r *Repository) DeleteAccount(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM accounts WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (core.Account, error) {
	var (
		a         core.Account
		typ       string
		balance   string
		isDefault int
	)
	err := row.Scan(&a.ID, &a.OwnerID, &a.Name, &typ, &balance, &a.Currency,
		&isDefault, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return core.Account{}, err
	}
	a.Type = core.AccountType(typ)
	a.IsDefault = isDefault != 0
	a.Balance, err = parseDecimal(balance)
	if err != nil {
		return core.Account{}, err
	}
	return a, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// lockAccount reads an account's balance and currency inside a transaction.
func lockAccount(ctx context.Context, tx *sql.Tx, ownerID, id string) (balance decimal.Decimal, currency string, err error) {
	var raw string
	err = tx.QueryRowContext(ctx,
		`SELECT balance, currency FROM accounts WHERE id = ? AND owner_id = ?`,
		id, ownerID).Scan(&raw, &currency)
	if err != nil {
		if mapNotFound(err) == core.ErrNotFound {
			return decimal.Zero, "", core.ErrNotFound
		}
		return decimal.Zero, "", fmt.Errorf("read account balance: %w", err)
	}
	balance, err = parseDecimal(raw)
	return balance, currency, err
}

func writeBalance(ctx context.Context, tx *sql.Tx, id string, balance decimal.Decimal) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance = ?, updated_at = ? WHERE id = ?`,
		balance.String(), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("write account balance: %w", err)
	}
	return nil
}
