// ABOUTME: Store methods for schedules: CRUD, guide assignment, calendar range
// ABOUTME: queries, and transactional bulk insertion for recurrence expansion.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Schedule status values.
const (
	ScheduleOpen      = "open"
	ScheduleClosed    = "closed"
	ScheduleCancelled = "cancelled"
)

// Schedule is a row in the schedules table. BookedSeats is maintained
// transactionally by the booking methods.
type Schedule struct {
	ID          uuid.UUID
	OrgID       uuid.UUID
	TourID      uuid.UUID
	GuideID     *uuid.UUID
	StartsAt    time.Time
	Capacity    int
	BookedSeats int
	Status      string // open | closed | cancelled
	CreatedAt   time.Time
}

const scheduleCols = "id, org_id, tour_id, guide_id, starts_at, capacity, booked_seats, status, created_at"

func scanSchedule(row pgx.Row) (*Schedule, error) {
	sc := &Schedule{}
	err := row.Scan(&sc.ID, &sc.OrgID, &sc.TourID, &sc.GuideID, &sc.StartsAt,
		&sc.Capacity, &sc.BookedSeats, &sc.Status, &sc.CreatedAt)
	if err != nil {
		return nil, err
	}
	return sc, nil
}

// CreateSchedule inserts one schedule row and returns it.
func (s *Store) CreateSchedule(ctx context.Context, orgID, tourID uuid.UUID, guideID *uuid.UUID, startsAt time.Time, capacity int) (*Schedule, error) {
	sc, err := scanSchedule(s.pool.QueryRow(ctx, `
		INSERT INTO schedules (org_id, tour_id, guide_id, starts_at, capacity)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+scheduleCols,
		orgID, tourID, guideID, startsAt, capacity,
	))
	if err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}
	return sc, nil
}

// GetSchedule returns the schedule, or (nil, nil) if not found in this org.
func (s *Store) GetSchedule(ctx context.Context, orgID, id uuid.UUID) (*Schedule, error) {
	sc, err := scanSchedule(s.pool.QueryRow(ctx, `
		SELECT `+scheduleCols+` FROM schedules WHERE org_id = $1 AND id = $2`,
		orgID, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return sc, nil
}

// ListSchedulesInRange returns all non-cancelled schedules starting within
// [from, to), ordered by start time. Backs the calendar aggregation.
func (s *Store) ListSchedulesInRange(ctx context.Context, orgID uuid.UUID, from, to time.Time) ([]Schedule, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+scheduleCols+` FROM schedules
		WHERE org_id = $1 AND starts_at >= $2 AND starts_at < $3 AND status <> 'cancelled'
		ORDER BY starts_at`,
		orgID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("list schedules in range: %w", err)
	}
	defer rows.Close()

	var out []Schedule
	for rows.Next() {
		var sc Schedule
		if err := rows.Scan(&sc.ID, &sc.OrgID, &sc.TourID, &sc.GuideID, &sc.StartsAt,
			&sc.Capacity, &sc.BookedSeats, &sc.Status, &sc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// UpdateScheduleStatus sets the schedule status. Returns false if no row matched.
func (s *Store) UpdateScheduleStatus(ctx context.Context, orgID, id uuid.UUID, status string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE schedules SET status = $3 WHERE org_id = $1 AND id = $2`,
		orgID, id, status,
	)
	if err != nil {
		return false, fmt.Errorf("update schedule status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// AssignGuide sets (or clears, with nil) the guide on a schedule.
// Returns (nil, nil) if the schedule is not found in this org.
func (s *Store) AssignGuide(ctx context.Context, orgID, scheduleID uuid.UUID, guideID *uuid.UUID) (*Schedule, error) {
	sc, err := scanSchedule(s.pool.QueryRow(ctx, `
		UPDATE schedules SET guide_id = $3 WHERE org_id = $1 AND id = $2
		RETURNING `+scheduleCols,
		orgID, scheduleID, guideID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("assign guide: %w", err)
	}
	return sc, nil
}

// CreateSchedulesBulk inserts one schedule per instant inside a single
// transaction. Instants that collide with an existing (org, tour, starts_at)
// row are skipped via ON CONFLICT DO NOTHING. Returns the number inserted.
func (s *Store) CreateSchedulesBulk(ctx context.Context, orgID, tourID uuid.UUID, guideID *uuid.UUID, instants []time.Time, capacity int) (int, error) {
	created := 0
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		for _, at := range instants {
			tag, err := tx.Exec(ctx, `
				INSERT INTO schedules (org_id, tour_id, guide_id, starts_at, capacity)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (org_id, tour_id, starts_at) DO NOTHING`,
				orgID, tourID, guideID, at, capacity,
			)
			if err != nil {
				return fmt.Errorf("bulk insert schedule at %s: %w", at.Format(time.RFC3339), err)
			}
			created += int(tag.RowsAffected())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}
