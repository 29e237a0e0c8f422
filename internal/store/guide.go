// ABOUTME: Store methods for the guide roster and assignment conflict checks.
// ABOUTME: Conflict detection compares schedule intervals derived from tour duration.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Guide is a row in the guides table.
type Guide struct {
	ID        uuid.UUID
	OrgID     uuid.UUID
	FullName  string
	Email     *string
	Phone     *string
	Active    bool
	CreatedAt time.Time
}

const guideCols = "id, org_id, full_name, email, phone, active, created_at"

func scanGuide(row pgx.Row) (*Guide, error) {
	g := &Guide{}
	err := row.Scan(&g.ID, &g.OrgID, &g.FullName, &g.Email, &g.Phone, &g.Active, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// CreateGuide inserts a guide row and returns it.
func (s *Store) CreateGuide(ctx context.Context, orgID uuid.UUID, fullName string, email, phone *string) (*Guide, error) {
	g, err := scanGuide(s.pool.QueryRow(ctx, `
		INSERT INTO guides (org_id, full_name, email, phone)
		VALUES ($1, $2, $3, $4)
		RETURNING `+guideCols,
		orgID, fullName, email, phone,
	))
	if err != nil {
		return nil, fmt.Errorf("create guide: %w", err)
	}
	return g, nil
}

// GetGuide returns the guide, or (nil, nil) if not found in this org.
func (s *Store) GetGuide(ctx context.Context, orgID, id uuid.UUID) (*Guide, error) {
	g, err := scanGuide(s.pool.QueryRow(ctx, `
		SELECT `+guideCols+` FROM guides WHERE org_id = $1 AND id = $2`,
		orgID, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get guide: %w", err)
	}
	return g, nil
}

// ListGuides returns all guides for the org, active first then by name.
func (s *Store) ListGuides(ctx context.Context, orgID uuid.UUID) ([]Guide, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+guideCols+` FROM guides WHERE org_id = $1
		ORDER BY active DESC, full_name`,
		orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("list guides: %w", err)
	}
	defer rows.Close()

	var out []Guide
	for rows.Next() {
		var g Guide
		if err := rows.Scan(&g.ID, &g.OrgID, &g.FullName, &g.Email, &g.Phone, &g.Active, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan guide: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// UpdateGuide updates mutable guide fields. Returns (nil, nil) if not found.
func (s *Store) UpdateGuide(ctx context.Context, orgID, id uuid.UUID, fullName string, email, phone *string, active bool) (*Guide, error) {
	g, err := scanGuide(s.pool.QueryRow(ctx, `
		UPDATE guides SET full_name = $3, email = $4, phone = $5, active = $6
		WHERE org_id = $1 AND id = $2
		RETURNING `+guideCols,
		orgID, id, fullName, email, phone, active,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update guide: %w", err)
	}
	return g, nil
}

// HasGuideConflict reports whether guideID is already assigned to a schedule
// whose interval (starts_at .. starts_at + tour duration) overlaps the
// interval beginning at startsAt with the given duration. excludeScheduleID
// skips the schedule being updated; pass uuid.Nil for new assignments.
func (s *Store) HasGuideConflict(ctx context.Context, orgID, guideID uuid.UUID, startsAt time.Time, duration time.Duration, excludeScheduleID uuid.UUID) (bool, error) {
	var conflict bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM schedules sc
			JOIN tours t ON t.id = sc.tour_id
			WHERE sc.org_id = $1
			  AND sc.guide_id = $2
			  AND sc.id <> $5
			  AND sc.status <> 'cancelled'
			  AND sc.starts_at < $3::timestamptz + $4::interval
			  AND sc.starts_at + make_interval(mins => t.duration_minutes) > $3::timestamptz
		)`,
		orgID, guideID, startsAt, duration, excludeScheduleID,
	).Scan(&conflict)
	if err != nil {
		return false, fmt.Errorf("guide conflict check: %w", err)
	}
	return conflict, nil
}
