// ABOUTME: Store methods for customers: CRUD plus filtered search.
// ABOUTME: Search uses squirrel for dynamic WHERE composition.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Customer is a row in the customers table.
type Customer struct {
	ID        uuid.UUID
	OrgID     uuid.UUID
	FullName  string
	Email     *string
	Phone     *string
	Notes     *string
	CreatedAt time.Time
}

// CustomerSearchParams are the optional filters for SearchCustomers.
type CustomerSearchParams struct {
	Query string // matches full_name or email, case-insensitive substring
	Limit int
	// Keyset cursor: return rows created strictly before (CursorCreatedAt, CursorID).
	CursorCreatedAt *time.Time
	CursorID        *uuid.UUID
}

const customerCols = "id, org_id, full_name, email, phone, notes, created_at"

func scanCustomer(row pgx.Row) (*Customer, error) {
	c := &Customer{}
	err := row.Scan(&c.ID, &c.OrgID, &c.FullName, &c.Email, &c.Phone, &c.Notes, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CreateCustomer inserts a customer row and returns it.
func (s *Store) CreateCustomer(ctx context.Context, orgID uuid.UUID, fullName string, email, phone, notes *string) (*Customer, error) {
	c, err := scanCustomer(s.pool.QueryRow(ctx, `
		INSERT INTO customers (org_id, full_name, email, phone, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+customerCols,
		orgID, fullName, email, phone, notes,
	))
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return c, nil
}

// GetCustomer returns the customer, or (nil, nil) if not found in this org.
func (s *Store) GetCustomer(ctx context.Context, orgID, id uuid.UUID) (*Customer, error) {
	c, err := scanCustomer(s.pool.QueryRow(ctx, `
		SELECT `+customerCols+` FROM customers WHERE org_id = $1 AND id = $2`,
		orgID, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

// UpdateCustomer updates mutable customer fields. Returns (nil, nil) if not found.
func (s *Store) UpdateCustomer(ctx context.Context, orgID, id uuid.UUID, fullName string, email, phone, notes *string) (*Customer, error) {
	c, err := scanCustomer(s.pool.QueryRow(ctx, `
		UPDATE customers SET full_name = $3, email = $4, phone = $5, notes = $6
		WHERE org_id = $1 AND id = $2
		RETURNING `+customerCols,
		orgID, id, fullName, email, phone, notes,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update customer: %w", err)
	}
	return c, nil
}

// DeleteCustomer removes a customer. Returns false if no row matched.
func (s *Store) DeleteCustomer(ctx context.Context, orgID, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM customers WHERE org_id = $1 AND id = $2`,
		orgID, id,
	)
	if err != nil {
		return false, fmt.Errorf("delete customer: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SearchCustomers returns a page of customers matching p, newest first,
// keyset-paginated on (created_at, id).
func (s *Store) SearchCustomers(ctx context.Context, orgID uuid.UUID, p CustomerSearchParams) ([]Customer, error) {
	q := psql.Select(customerCols).
		From("customers").
		Where(sq.Eq{"org_id": orgID}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(p.Limit)) //nolint:gosec // G115: limit is validated by the API layer

	if p.Query != "" {
		like := "%" + p.Query + "%"
		q = q.Where(sq.Or{
			sq.ILike{"full_name": like},
			sq.ILike{"email": like},
		})
	}
	if p.CursorCreatedAt != nil && p.CursorID != nil {
		q = q.Where(sq.Expr("(created_at, id) < (?, ?)", *p.CursorCreatedAt, *p.CursorID))
	}

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build customer search: %w", err)
	}
	rows, err := s.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("search customers: %w", err)
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.OrgID, &c.FullName, &c.Email, &c.Phone, &c.Notes, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
