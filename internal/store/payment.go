// ABOUTME: Store methods for payments: charges and refunds against bookings.
// ABOUTME: Refunds are validated against the net paid amount inside one transaction.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Payment kinds.
const (
	PaymentCharge = "charge"
	PaymentRefund = "refund"
)

// ErrRefundExceedsPaid means a refund would take the booking's net paid
// amount below zero.
var ErrRefundExceedsPaid = errors.New("refund exceeds amount paid")

// Payment is a row in the payments table. AmountCents is always positive;
// Kind distinguishes charges from refunds.
type Payment struct {
	ID          uuid.UUID
	OrgID       uuid.UUID
	BookingID   uuid.UUID
	Kind        string
	AmountCents int64
	Method      string // card | cash | transfer
	Reference   *string
	CreatedAt   time.Time
}

const paymentCols = "id, org_id, booking_id, kind, amount_cents, method, reference, created_at"

func scanPayment(row pgx.Row) (*Payment, error) {
	p := &Payment{}
	err := row.Scan(&p.ID, &p.OrgID, &p.BookingID, &p.Kind, &p.AmountCents,
		&p.Method, &p.Reference, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// RecordCharge inserts a charge payment for the booking.
func (s *Store) RecordCharge(ctx context.Context, orgID, bookingID uuid.UUID, amountCents int64, method string, reference *string) (*Payment, error) {
	p, err := scanPayment(s.pool.QueryRow(ctx, `
		INSERT INTO payments (org_id, booking_id, kind, amount_cents, method, reference)
		VALUES ($1, $2, 'charge', $3, $4, $5)
		RETURNING `+paymentCols,
		orgID, bookingID, amountCents, method, reference,
	))
	if err != nil {
		return nil, fmt.Errorf("record charge: %w", err)
	}
	return p, nil
}

// RecordRefund inserts a refund after verifying, under a booking row lock,
// that the booking's net paid amount covers it. Returns (nil, nil) when the
// booking does not exist in this org.
func (s *Store) RecordRefund(ctx context.Context, orgID, bookingID uuid.UUID, amountCents int64, method string, reference *string) (*Payment, error) {
	var payment *Payment
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		// Lock the booking row so concurrent refunds for the same booking
		// cannot both pass the net-paid check.
		var lockedID uuid.UUID
		err := tx.QueryRow(ctx, `
			SELECT id FROM bookings WHERE org_id = $1 AND id = $2 FOR UPDATE`,
			orgID, bookingID,
		).Scan(&lockedID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return pgx.ErrNoRows
			}
			return fmt.Errorf("lock booking: %w", err)
		}

		var netPaid int64
		if err := tx.QueryRow(ctx, `
			SELECT COALESCE(SUM(CASE WHEN kind = 'charge' THEN amount_cents ELSE -amount_cents END), 0)
			FROM payments WHERE org_id = $1 AND booking_id = $2`,
			orgID, bookingID,
		).Scan(&netPaid); err != nil {
			return fmt.Errorf("sum payments: %w", err)
		}
		if amountCents > netPaid {
			return ErrRefundExceedsPaid
		}

		payment, err = scanPayment(tx.QueryRow(ctx, `
			INSERT INTO payments (org_id, booking_id, kind, amount_cents, method, reference)
			VALUES ($1, $2, 'refund', $3, $4, $5)
			RETURNING `+paymentCols,
			orgID, bookingID, amountCents, method, reference,
		))
		if err != nil {
			return fmt.Errorf("record refund: %w", err)
		}
		return nil
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// ListBookingPayments returns all payments for a booking, oldest first.
func (s *Store) ListBookingPayments(ctx context.Context, orgID, bookingID uuid.UUID) ([]Payment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+paymentCols+` FROM payments
		WHERE org_id = $1 AND booking_id = $2
		ORDER BY created_at`,
		orgID, bookingID,
	)
	if err != nil {
		return nil, fmt.Errorf("list booking payments: %w", err)
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.OrgID, &p.BookingID, &p.Kind, &p.AmountCents,
			&p.Method, &p.Reference, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
