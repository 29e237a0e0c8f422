// ABOUTME: Store methods for bookings: seat-accounted creation/cancellation in
// ABOUTME: transactions, filtered search via squirrel, and bulk cancellation.
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

// Booking statuses.
const (
	BookingConfirmed = "confirmed"
	BookingCancelled = "cancelled"
)

// Sentinel errors surfaced to the API layer for 409 responses.
var (
	// ErrScheduleFull means the requested seats exceed remaining capacity,
	// or the schedule is not open for booking.
	ErrScheduleFull = errors.New("schedule full or not open")
)

// Booking is a row in the bookings table.
type Booking struct {
	ID         uuid.UUID
	OrgID      uuid.UUID
	ScheduleID uuid.UUID
	CustomerID uuid.UUID
	Seats      int
	Status     string
	TotalCents int64
	CreatedAt  time.Time
}

const bookingCols = "id, org_id, schedule_id, customer_id, seats, status, total_cents, created_at"

func scanBooking(row pgx.Row) (*Booking, error) {
	b := &Booking{}
	err := row.Scan(&b.ID, &b.OrgID, &b.ScheduleID, &b.CustomerID, &b.Seats,
		&b.Status, &b.TotalCents, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// CreateBooking atomically reserves seats on the schedule and inserts the
// booking. The seat reservation is a guarded UPDATE: zero rows affected means
// the schedule is full, closed, or absent — ErrScheduleFull either way.
// Total is priced from the tour's price_cents at booking time.
func (s *Store) CreateBooking(ctx context.Context, orgID, scheduleID, customerID uuid.UUID, seats int) (*Booking, error) {
	var booking *Booking
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var tourID uuid.UUID
		err := tx.QueryRow(ctx, `
			UPDATE schedules
			SET booked_seats = booked_seats + $3
			WHERE org_id = $1 AND id = $2
			  AND status = 'open'
			  AND booked_seats + $3 <= capacity
			RETURNING tour_id`,
			orgID, scheduleID, seats,
		).Scan(&tourID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrScheduleFull
		}
		if err != nil {
			return fmt.Errorf("reserve seats: %w", err)
		}

		var priceCents int64
		if err := tx.QueryRow(ctx, `
			SELECT price_cents FROM tours WHERE org_id = $1 AND id = $2`,
			orgID, tourID,
		).Scan(&priceCents); err != nil {
			return fmt.Errorf("price booking: %w", err)
		}

		booking, err = scanBooking(tx.QueryRow(ctx, `
			INSERT INTO bookings (org_id, schedule_id, customer_id, seats, status, total_cents)
			VALUES ($1, $2, $3, $4, 'confirmed', $5)
			RETURNING `+bookingCols,
			orgID, scheduleID, customerID, seats, priceCents*int64(seats),
		))
		if err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// GetBooking returns the booking, or (nil, nil) if not found in this org.
func (s *Store) GetBooking(ctx context.Context, orgID, id uuid.UUID) (*Booking, error) {
	b, err := scanBooking(s.pool.QueryRow(ctx, `
		SELECT `+bookingCols+` FROM bookings WHERE org_id = $1 AND id = $2`,
		orgID, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// CancelBooking atomically marks a confirmed booking cancelled and releases
// its seats back to the schedule. Returns (nil, nil) when the booking does
// not exist or is already cancelled.
func (s *Store) CancelBooking(ctx context.Context, orgID, id uuid.UUID) (*Booking, error) {
	var booking *Booking
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		b, err := scanBooking(tx.QueryRow(ctx, `
			UPDATE bookings SET status = 'cancelled'
			WHERE org_id = $1 AND id = $2 AND status = 'confirmed'
			RETURNING `+bookingCols,
			orgID, id,
		))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil // treated as not-found by the caller
		}
		if err != nil {
			return fmt.Errorf("cancel booking: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE schedules SET booked_seats = booked_seats - $3
			WHERE org_id = $1 AND id = $2`,
			orgID, b.ScheduleID, b.Seats,
		); err != nil {
			return fmt.Errorf("release seats: %w", err)
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// CancelBookingsBulk cancels each listed confirmed booking and releases its
// seats, all in one transaction. Missing or already-cancelled IDs are skipped.
// Returns the number of bookings actually cancelled.
func (s *Store) CancelBookingsBulk(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) (int, error) {
	cancelled := 0
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		for _, id := range ids {
			var scheduleID uuid.UUID
			var seats int
			err := tx.QueryRow(ctx, `
				UPDATE bookings SET status = 'cancelled'
				WHERE org_id = $1 AND id = $2 AND status = 'confirmed'
				RETURNING schedule_id, seats`,
				orgID, id,
			).Scan(&scheduleID, &seats)
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			if err != nil {
				return fmt.Errorf("bulk cancel booking %s: %w", id, err)
			}
			if _, err := tx.Exec(ctx, `
				UPDATE schedules SET booked_seats = booked_seats - $3
				WHERE org_id = $1 AND id = $2`,
				orgID, scheduleID, seats,
			); err != nil {
				return fmt.Errorf("bulk release seats for %s: %w", id, err)
			}
			cancelled++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return cancelled, nil
}

// BookingSearchParams are the optional filters for SearchBookings.
type BookingSearchParams struct {
	ScheduleID *uuid.UUID
	CustomerID *uuid.UUID
	Status     string
	From       *time.Time // booking created_at lower bound
	To         *time.Time // booking created_at upper bound
	Limit      int
	// Keyset cursor: rows created strictly before (CursorCreatedAt, CursorID).
	CursorCreatedAt *time.Time
	CursorID        *uuid.UUID
}

// SearchBookings returns a page of bookings matching p, newest first,
// keyset-paginated on (created_at, id).
func (s *Store) SearchBookings(ctx context.Context, orgID uuid.UUID, p BookingSearchParams) ([]Booking, error) {
	q := psql.Select(bookingCols).
		From("bookings").
		Where(sq.Eq{"org_id": orgID}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(p.Limit)) //nolint:gosec // G115: limit is validated by the API layer

	if p.ScheduleID != nil {
		q = q.Where(sq.Eq{"schedule_id": *p.ScheduleID})
	}
	if p.CustomerID != nil {
		q = q.Where(sq.Eq{"customer_id": *p.CustomerID})
	}
	if p.Status != "" {
		q = q.Where(sq.Eq{"status": p.Status})
	}
	if p.From != nil {
		q = q.Where(sq.GtOrEq{"created_at": *p.From})
	}
	if p.To != nil {
		q = q.Where(sq.Lt{"created_at": *p.To})
	}
	if p.CursorCreatedAt != nil && p.CursorID != nil {
		q = q.Where(sq.Expr("(created_at, id) < (?, ?)", *p.CursorCreatedAt, *p.CursorID))
	}

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build booking search: %w", err)
	}
	rows, err := s.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("search bookings: %w", err)
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		var b Booking
		if err := rows.Scan(&b.ID, &b.OrgID, &b.ScheduleID, &b.CustomerID, &b.Seats,
			&b.Status, &b.TotalCents, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
