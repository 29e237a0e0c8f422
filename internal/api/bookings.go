// ABOUTME: Booking handlers: seat-accounted creation, cancellation, search,
// ABOUTME: and bulk cancellation. Confirmed/cancelled events fan out via jobs.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/saimali7/Tour-CRM-sub012/internal/store"
)

type bookingResponse struct {
	ID         uuid.UUID `json:"id"`
	ScheduleID uuid.UUID `json:"scheduleId"`
	CustomerID uuid.UUID `json:"customerId"`
	Seats      int       `json:"seats"`
	Status     string    `json:"status"`
	TotalCents int64     `json:"totalCents"`
	CreatedAt  time.Time `json:"createdAt"`
}

func toBookingResponse(b *store.Booking) bookingResponse {
	return bookingResponse{
		ID: b.ID, ScheduleID: b.ScheduleID, CustomerID: b.CustomerID,
		Seats: b.Seats, Status: b.Status, TotalCents: b.TotalCents, CreatedAt: b.CreatedAt,
	}
}

func (srv *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	var body struct {
		ScheduleID uuid.UUID `json:"scheduleId"`
		CustomerID uuid.UUID `json:"customerId"`
		Seats      int       `json:"seats"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if body.Seats < 1 || body.Seats > 100 {
		writeBadRequest(w, "seats must be between 1 and 100")
		return
	}
	customer, err := srv.store.GetCustomer(r.Context(), rc.Org.OrgID, body.CustomerID)
	if err != nil {
		writeInternal(w, r, "get customer for booking", err)
		return
	}
	if customer == nil {
		writeNotFound(w, "customer not found")
		return
	}

	booking, err := srv.store.CreateBooking(r.Context(), rc.Org.OrgID, body.ScheduleID, body.CustomerID, body.Seats)
	if errors.Is(err, store.ErrScheduleFull) {
		writeConflict(w, "schedule is full, closed, or does not exist")
		return
	}
	if err != nil {
		writeInternal(w, r, "create booking", err)
		return
	}

	srv.enqueueBookingEvent(r, rc, "booking.confirmed", booking)
	writeJSON(w, http.StatusCreated, toBookingResponse(booking))
}

func (srv *Server) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	id, err := uuidParam(r, "bookingID")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	b, err := srv.store.GetBooking(r.Context(), rc.Org.OrgID, id)
	if err != nil {
		writeInternal(w, r, "get booking", err)
		return
	}
	if b == nil {
		writeNotFound(w, "booking not found")
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

func (srv *Server) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	id, err := uuidParam(r, "bookingID")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	b, err := srv.store.CancelBooking(r.Context(), rc.Org.OrgID, id)
	if err != nil {
		writeInternal(w, r, "cancel booking", err)
		return
	}
	if b == nil {
		writeNotFound(w, "booking not found or already cancelled")
		return
	}
	srv.enqueueBookingEvent(r, rc, "booking.cancelled", b)
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

func (srv *Server) handleBulkCancelBookings(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	var body struct {
		BookingIDs []uuid.UUID `json:"bookingIds"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if len(body.BookingIDs) == 0 || len(body.BookingIDs) > 500 {
		writeBadRequest(w, "bookingIds must contain 1-500 entries")
		return
	}
	cancelled, err := srv.store.CancelBookingsBulk(r.Context(), rc.Org.OrgID, body.BookingIDs)
	if err != nil {
		writeInternal(w, r, "bulk cancel bookings", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"requested": len(body.BookingIDs),
		"cancelled": cancelled,
		"skipped":   len(body.BookingIDs) - cancelled,
	})
}

func (srv *Server) handleSearchBookings(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	q := r.URL.Query()

	params := store.BookingSearchParams{
		Status: q.Get("status"),
		Limit:  parseLimit(q.Get("limit"), 50, 200),
	}
	if params.Status != "" && params.Status != store.BookingConfirmed && params.Status != store.BookingCancelled {
		writeBadRequest(w, "status must be confirmed or cancelled")
		return
	}
	if s := q.Get("scheduleId"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			writeBadRequest(w, "invalid scheduleId")
			return
		}
		params.ScheduleID = &id
	}
	if s := q.Get("customerId"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			writeBadRequest(w, "invalid customerId")
			return
		}
		params.CustomerID = &id
	}
	if s := q.Get("from"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeBadRequest(w, "from must be RFC 3339")
			return
		}
		params.From = &t
	}
	if s := q.Get("to"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeBadRequest(w, "to must be RFC 3339")
			return
		}
		params.To = &t
	}
	if cursor := q.Get("cursor"); cursor != "" {
		createdAt, id, err := parseCursor(cursor)
		if err != nil {
			writeBadRequest(w, "invalid cursor")
			return
		}
		params.CursorCreatedAt = &createdAt
		params.CursorID = &id
	}

	bookings, err := srv.store.SearchBookings(r.Context(), rc.Org.OrgID, params)
	if err != nil {
		writeInternal(w, r, "search bookings", err)
		return
	}
	out := make([]bookingResponse, 0, len(bookings))
	for i := range bookings {
		out = append(out, toBookingResponse(&bookings[i]))
	}
	resp := struct {
		Items      []bookingResponse `json:"items"`
		NextCursor string            `json:"nextCursor,omitempty"`
	}{Items: out}
	if len(bookings) == params.Limit {
		last := bookings[len(bookings)-1]
		resp.NextCursor = formatCursor(last.CreatedAt, last.ID)
	}
	writeJSON(w, http.StatusOK, resp)
}

// bookingEventPayload is the job payload shared by the email and webhook queues.
type bookingEventPayload struct {
	Event      string    `json:"event"`
	OrgID      uuid.UUID `json:"orgId"`
	BookingID  uuid.UUID `json:"bookingId"`
	CustomerID uuid.UUID `json:"customerId"`
	Seats      int       `json:"seats"`
	TotalCents int64     `json:"totalCents"`
}

// enqueueBookingEvent fans a booking state change out to the notification
// queues. Enqueue failures are logged, never surfaced: the booking itself
// already committed.
func (srv *Server) enqueueBookingEvent(r *http.Request, rc *RequestContext, event string, b *store.Booking) {
	payload, err := json.Marshal(bookingEventPayload{
		Event: event, OrgID: b.OrgID, BookingID: b.ID,
		CustomerID: b.CustomerID, Seats: b.Seats, TotalCents: b.TotalCents,
	})
	if err != nil {
		rc.Log.ErrorContext(r.Context(), "marshal booking event", "error", err)
		return
	}
	for _, queue := range []string{"booking_email", "webhook_delivery"} {
		if _, err := srv.store.EnqueueJob(r.Context(), queue, 0, payload, 5, nil); err != nil {
			rc.Log.ErrorContext(r.Context(), "enqueue booking event",
				"queue", queue, "event", event, "booking_id", b.ID, "error", err)
		}
	}
}
