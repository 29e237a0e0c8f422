// ABOUTME: Store methods for user accounts: creation, lookup, credential state.
// ABOUTME: PasswordHash is nil for accounts that never set a password.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// User is a row in the users table.
type User struct {
	ID           uuid.UUID
	Email        string
	DisplayName  string
	PasswordHash *string
	TokenVersion int
	CreatedAt    time.Time
}

// CreateUser inserts a new user row. Returns the created user.
func (s *Store) CreateUser(ctx context.Context, email, displayName, passwordHash string, tokenVersion int) (*User, error) {
	var ph *string
	if passwordHash != "" {
		ph = &passwordHash
	}
	u := &User{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (email, display_name, password_hash, token_version)
		VALUES ($1, $2, $3, $4)
		RETURNING id, email, display_name, password_hash, token_version, created_at`,
		email, displayName, ph, tokenVersion,
	).Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.TokenVersion, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetUserByEmail returns the user with the given email, or (nil, nil) if not found.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	u := &User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, display_name, password_hash, token_version, created_at
		FROM users WHERE email = lower($1)`,
		email,
	).Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.TokenVersion, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// GetUserByID returns the user with the given ID, or (nil, nil) if not found.
func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u := &User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, display_name, password_hash, token_version, created_at
		FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.TokenVersion, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// CountUsers returns the total number of user rows.
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// UpdateUserPassword replaces the password hash and bumps token_version,
// invalidating all outstanding refresh tokens.
func (s *Store) UpdateUserPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET password_hash = $2, token_version = token_version + 1
		WHERE id = $1`,
		id, passwordHash,
	)
	if err != nil {
		return fmt.Errorf("update user password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update user password: user %s not found", id)
	}
	return nil
}
