// ABOUTME: Integration tests for bookings and payments — seat accounting,
// ABOUTME: overbooking rejection, cancellation, and refund validation.
package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/saimali7/Tour-CRM-sub012/internal/store"
	"github.com/saimali7/Tour-CRM-sub012/internal/testutil"
)

// bookingFixture is the minimal object graph a booking needs: an org with an
// owner, a customer, a priced tour, and one open schedule.
type bookingFixture struct {
	orgID      uuid.UUID
	customerID uuid.UUID
	tourID     uuid.UUID
	scheduleID uuid.UUID
}

func newBookingFixture(t *testing.T, s *testutil.TestDB, capacity int) bookingFixture {
	t.Helper()
	ctx := context.Background()

	owner, err := s.CreateUser(ctx, "fixture@example.com", "Fixture", "", 1)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	org, err := s.CreateOrgWithOwner(ctx, "fjord-tours", "Fjord Tours", owner.ID)
	if err != nil {
		t.Fatalf("CreateOrgWithOwner: %v", err)
	}
	customer, err := s.CreateCustomer(ctx, org.ID, "Kari Nordmann", nil, nil, nil)
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	tour, err := s.CreateTour(ctx, org.ID, "Fjord Cruise", nil, 120, 5000)
	if err != nil {
		t.Fatalf("CreateTour: %v", err)
	}
	sched, err := s.CreateSchedule(ctx, org.ID, tour.ID, nil,
		time.Now().Add(48*time.Hour).Truncate(time.Second), capacity)
	if err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}
	return bookingFixture{
		orgID:      org.ID,
		customerID: customer.ID,
		tourID:     tour.ID,
		scheduleID: sched.ID,
	}
}

func TestCreateBooking_SeatAccountingAndPricing(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()
	fx := newBookingFixture(t, s, 10)

	b, err := s.CreateBooking(ctx, fx.orgID, fx.scheduleID, fx.customerID, 3)
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	if b.Status != store.BookingConfirmed {
		t.Errorf("status = %q, want confirmed", b.Status)
	}
	// Priced from the tour at booking time: 3 seats × 5000 cents.
	if b.TotalCents != 15000 {
		t.Errorf("TotalCents = %d, want 15000", b.TotalCents)
	}

	sched, err := s.GetSchedule(ctx, fx.orgID, fx.scheduleID)
	if err != nil {
		t.Fatalf("GetSchedule: %v", err)
	}
	if sched.BookedSeats != 3 {
		t.Errorf("BookedSeats = %d, want 3", sched.BookedSeats)
	}
}

func TestCreateBooking_OverbookingRejected(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()
	fx := newBookingFixture(t, s, 3)

	if _, err := s.CreateBooking(ctx, fx.orgID, fx.scheduleID, fx.customerID, 2); err != nil {
		t.Fatalf("CreateBooking(2): %v", err)
	}

	// One seat left; two seats must fail without partial reservation.
	_, err := s.CreateBooking(ctx, fx.orgID, fx.scheduleID, fx.customerID, 2)
	if !errors.Is(err, store.ErrScheduleFull) {
		t.Fatalf("CreateBooking over capacity: err = %v, want ErrScheduleFull", err)
	}
	sched, _ := s.GetSchedule(ctx, fx.orgID, fx.scheduleID)
	if sched.BookedSeats != 2 {
		t.Errorf("BookedSeats after rejected booking = %d, want 2", sched.BookedSeats)
	}

	// Exact remaining capacity still succeeds.
	if _, err := s.CreateBooking(ctx, fx.orgID, fx.scheduleID, fx.customerID, 1); err != nil {
		t.Fatalf("CreateBooking(last seat): %v", err)
	}
}

func TestCreateBooking_ClosedScheduleRejected(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()
	fx := newBookingFixture(t, s, 10)

	ok, err := s.UpdateScheduleStatus(ctx, fx.orgID, fx.scheduleID, store.ScheduleClosed)
	if err != nil || !ok {
		t.Fatalf("UpdateScheduleStatus: ok=%v err=%v", ok, err)
	}

	_, err = s.CreateBooking(ctx, fx.orgID, fx.scheduleID, fx.customerID, 1)
	if !errors.Is(err, store.ErrScheduleFull) {
		t.Fatalf("booking on closed schedule: err = %v, want ErrScheduleFull", err)
	}
}

func TestCancelBooking_ReleasesSeats(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()
	fx := newBookingFixture(t, s, 5)

	b, err := s.CreateBooking(ctx, fx.orgID, fx.scheduleID, fx.customerID, 4)
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}

	cancelled, err := s.CancelBooking(ctx, fx.orgID, b.ID)
	if err != nil {
		t.Fatalf("CancelBooking: %v", err)
	}
	if cancelled == nil || cancelled.Status != store.BookingCancelled {
		t.Fatalf("cancelled = %+v, want status cancelled", cancelled)
	}

	sched, _ := s.GetSchedule(ctx, fx.orgID, fx.scheduleID)
	if sched.BookedSeats != 0 {
		t.Errorf("BookedSeats after cancel = %d, want 0", sched.BookedSeats)
	}

	// Cancelling again is a not-found, and must not release seats twice.
	again, err := s.CancelBooking(ctx, fx.orgID, b.ID)
	if err != nil {
		t.Fatalf("CancelBooking(again): %v", err)
	}
	if again != nil {
		t.Error("second cancel should return nil")
	}
	sched, _ = s.GetSchedule(ctx, fx.orgID, fx.scheduleID)
	if sched.BookedSeats != 0 {
		t.Errorf("BookedSeats after double cancel = %d, want 0", sched.BookedSeats)
	}
}

func TestCancelBookingsBulk_SkipsMissing(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()
	fx := newBookingFixture(t, s, 10)

	b1, _ := s.CreateBooking(ctx, fx.orgID, fx.scheduleID, fx.customerID, 2)
	b2, _ := s.CreateBooking(ctx, fx.orgID, fx.scheduleID, fx.customerID, 3)

	n, err := s.CancelBookingsBulk(ctx, fx.orgID, []uuid.UUID{b1.ID, uuid.New(), b2.ID})
	if err != nil {
		t.Fatalf("CancelBookingsBulk: %v", err)
	}
	if n != 2 {
		t.Errorf("cancelled = %d, want 2", n)
	}
	sched, _ := s.GetSchedule(ctx, fx.orgID, fx.scheduleID)
	if sched.BookedSeats != 0 {
		t.Errorf("BookedSeats after bulk cancel = %d, want 0", sched.BookedSeats)
	}
}

func TestSearchBookings_StatusFilterAndCursor(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()
	fx := newBookingFixture(t, s, 100)

	var ids []uuid.UUID
	for range 3 {
		b, err := s.CreateBooking(ctx, fx.orgID, fx.scheduleID, fx.customerID, 1)
		if err != nil {
			t.Fatalf("CreateBooking: %v", err)
		}
		ids = append(ids, b.ID)
	}
	if _, err := s.CancelBooking(ctx, fx.orgID, ids[0]); err != nil {
		t.Fatalf("CancelBooking: %v", err)
	}

	confirmed, err := s.SearchBookings(ctx, fx.orgID, store.BookingSearchParams{
		Status: store.BookingConfirmed,
		Limit:  10,
	})
	if err != nil {
		t.Fatalf("SearchBookings(confirmed): %v", err)
	}
	if len(confirmed) != 2 {
		t.Fatalf("confirmed count = %d, want 2", len(confirmed))
	}

	// Page of 2, newest first, then continue from the keyset cursor.
	page, err := s.SearchBookings(ctx, fx.orgID, store.BookingSearchParams{Limit: 2})
	if err != nil {
		t.Fatalf("SearchBookings(page 1): %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("page 1 count = %d, want 2", len(page))
	}
	last := page[len(page)-1]
	rest, err := s.SearchBookings(ctx, fx.orgID, store.BookingSearchParams{
		Limit:           2,
		CursorCreatedAt: &last.CreatedAt,
		CursorID:        &last.ID,
	})
	if err != nil {
		t.Fatalf("SearchBookings(page 2): %v", err)
	}
	if len(rest) != 1 {
		t.Fatalf("page 2 count = %d, want 1", len(rest))
	}
	for _, b := range page {
		if b.ID == rest[0].ID {
			t.Error("cursor page repeated a row from the first page")
		}
	}
}

func TestRecordRefund_ValidatesNetPaid(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()
	fx := newBookingFixture(t, s, 10)

	b, err := s.CreateBooking(ctx, fx.orgID, fx.scheduleID, fx.customerID, 2)
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}

	if _, err := s.RecordCharge(ctx, fx.orgID, b.ID, 10000, "card", nil); err != nil {
		t.Fatalf("RecordCharge: %v", err)
	}

	// Partial refund within the paid amount.
	if _, err := s.RecordRefund(ctx, fx.orgID, b.ID, 4000, "card", nil); err != nil {
		t.Fatalf("RecordRefund(4000): %v", err)
	}

	// Net paid is now 6000; refunding 7000 must fail.
	_, err = s.RecordRefund(ctx, fx.orgID, b.ID, 7000, "card", nil)
	if !errors.Is(err, store.ErrRefundExceedsPaid) {
		t.Fatalf("over-refund: err = %v, want ErrRefundExceedsPaid", err)
	}

	// Refund against a missing booking is a not-found, not an error.
	p, err := s.RecordRefund(ctx, fx.orgID, uuid.New(), 100, "card", nil)
	if err != nil {
		t.Fatalf("RecordRefund(missing booking): %v", err)
	}
	if p != nil {
		t.Error("refund on missing booking should return nil")
	}

	payments, err := s.ListBookingPayments(ctx, fx.orgID, b.ID)
	if err != nil {
		t.Fatalf("ListBookingPayments: %v", err)
	}
	if len(payments) != 2 {
		t.Fatalf("payment count = %d, want 2 (charge + refund)", len(payments))
	}
	if payments[0].Kind != store.PaymentCharge || payments[1].Kind != store.PaymentRefund {
		t.Errorf("payment kinds = %q, %q", payments[0].Kind, payments[1].Kind)
	}
}

func TestBookingOrgScoping(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()
	fx := newBookingFixture(t, s, 10)

	b, err := s.CreateBooking(ctx, fx.orgID, fx.scheduleID, fx.customerID, 1)
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}

	// A different org cannot see or cancel the booking.
	otherOwner, _ := s.CreateUser(ctx, "other@example.com", "Other", "", 1)
	other, err := s.CreateOrgWithOwner(ctx, "other-org", "Other Org", otherOwner.ID)
	if err != nil {
		t.Fatalf("CreateOrgWithOwner: %v", err)
	}

	got, err := s.GetBooking(ctx, other.ID, b.ID)
	if err != nil {
		t.Fatalf("GetBooking(cross-org): %v", err)
	}
	if got != nil {
		t.Error("booking visible across org boundary")
	}
	cancelled, err := s.CancelBooking(ctx, other.ID, b.ID)
	if err != nil {
		t.Fatalf("CancelBooking(cross-org): %v", err)
	}
	if cancelled != nil {
		t.Error("booking cancellable across org boundary")
	}
}
