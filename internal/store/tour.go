// ABOUTME: Store methods for the tour catalog (product definitions).
// ABOUTME: Schedules reference tours for duration and default pricing.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Tour is a row in the tours table.
type Tour struct {
	ID              uuid.UUID
	OrgID           uuid.UUID
	Name            string
	Description     *string
	DurationMinutes int
	PriceCents      int64
	Active          bool
	CreatedAt       time.Time
}

const tourCols = "id, org_id, name, description, duration_minutes, price_cents, active, created_at"

func scanTour(row pgx.Row) (*Tour, error) {
	t := &Tour{}
	err := row.Scan(&t.ID, &t.OrgID, &t.Name, &t.Description, &t.DurationMinutes, &t.PriceCents, &t.Active, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// CreateTour inserts a tour row and returns it.
func (s *Store) CreateTour(ctx context.Context, orgID uuid.UUID, name string, description *string, durationMinutes int, priceCents int64) (*Tour, error) {
	t, err := scanTour(s.pool.QueryRow(ctx, `
		INSERT INTO tours (org_id, name, description, duration_minutes, price_cents)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+tourCols,
		orgID, name, description, durationMinutes, priceCents,
	))
	if err != nil {
		return nil, fmt.Errorf("create tour: %w", err)
	}
	return t, nil
}

// GetTour returns the tour, or (nil, nil) if not found in this org.
func (s *Store) GetTour(ctx context.Context, orgID, id uuid.UUID) (*Tour, error) {
	t, err := scanTour(s.pool.QueryRow(ctx, `
		SELECT `+tourCols+` FROM tours WHERE org_id = $1 AND id = $2`,
		orgID, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tour: %w", err)
	}
	return t, nil
}

// ListTours returns all tours for the org, active first then by name.
func (s *Store) ListTours(ctx context.Context, orgID uuid.UUID) ([]Tour, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+tourCols+` FROM tours WHERE org_id = $1
		ORDER BY active DESC, name`,
		orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tours: %w", err)
	}
	defer rows.Close()

	var out []Tour
	for rows.Next() {
		var t Tour
		if err := rows.Scan(&t.ID, &t.OrgID, &t.Name, &t.Description, &t.DurationMinutes, &t.PriceCents, &t.Active, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tour: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateTour updates mutable tour fields. Returns (nil, nil) if not found.
func (s *Store) UpdateTour(ctx context.Context, orgID, id uuid.UUID, name string, description *string, durationMinutes int, priceCents int64, active bool) (*Tour, error) {
	t, err := scanTour(s.pool.QueryRow(ctx, `
		UPDATE tours
		SET name = $3, description = $4, duration_minutes = $5, price_cents = $6, active = $7
		WHERE org_id = $1 AND id = $2
		RETURNING `+tourCols,
		orgID, id, name, description, durationMinutes, priceCents, active,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update tour: %w", err)
	}
	return t, nil
}
