package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Amansingh0807/OptExAI/internal/core"
)

// CreateUser inserts a new owner record.
func (r *Repository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.DisplayCurrency == "" {
		u.DisplayCurrency = core.BaseCurrency
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, token, email, display_currency, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Token, u.Email, u.DisplayCurrency, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetUserByToken resolves the opaque bearer token to its owner. Returns
// core.ErrUnauthorized for an unknown token.
func (r *Repository) GetUserByToken(ctx context.Context, token string) (core.User, error) {
	var u core.User
	err := r.db.QueryRowContext(ctx, `
		SELECT id, token, email, display_currency, created_at, updated_at
		FROM users WHERE token = ?`, token).
		Scan(&u.ID, &u.Token, &u.Email, &u.DisplayCurrency, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if mapNotFound(err) == core.ErrNotFound {
			return core.User{}, core.ErrUnauthorized
		}
		return core.User{}, fmt.Errorf("get user by token: %w", err)
	}
	return u, nil
}

// GetUser fetches an owner by id.
func (r *Repository) GetUser(ctx context.Context, id string) (core.User, error) {
	var u core.User
	err := r.db.QueryRowContext(ctx, `
		SELECT id, token, email, display_currency, created_at, updated_at
		FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Token, &u.Email, &u.DisplayCurrency, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if mapNotFound(err) == core.ErrNotFound {
			return core.User{}, core.ErrNotFound
		}
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// UpdateUserCurrency changes the owner's preferred display currency.
func (r *Repository) UpdateUserCurrency(ctx context.Context, ownerID, currency string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET display_currency = ?, updated_at = ? WHERE id = ?`,
		currency, time.Now().UTC(), ownerID)
	if err != nil {
		return fmt.Errorf("update user currency: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}
