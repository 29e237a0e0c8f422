// ABOUTME: Payment handlers: record charges and refunds against bookings.
// ABOUTME: Refunds that exceed the net paid amount are rejected with 422.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/saimali7/Tour-CRM-sub012/internal/store"
)

type paymentResponse struct {
	ID          uuid.UUID `json:"id"`
	BookingID   uuid.UUID `json:"bookingId"`
	Kind        string    `json:"kind"`
	AmountCents int64     `json:"amountCents"`
	Method      string    `json:"method"`
	Reference   *string   `json:"reference,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toPaymentResponse(p *store.Payment) paymentResponse {
	return paymentResponse{
		ID: p.ID, BookingID: p.BookingID, Kind: p.Kind, AmountCents: p.AmountCents,
		Method: p.Method, Reference: p.Reference, CreatedAt: p.CreatedAt,
	}
}

type paymentBody struct {
	AmountCents int64   `json:"amountCents"`
	Method      string  `json:"method"`
	Reference   *string `json:"reference"`
}

func (b *paymentBody) validate() string {
	if b.AmountCents < 1 {
		return "amountCents must be positive"
	}
	switch b.Method {
	case "card", "cash", "transfer":
	default:
		return "method must be card, cash, or transfer"
	}
	return ""
}

func (srv *Server) handleRecordCharge(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	bookingID, err := uuidParam(r, "bookingID")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	var body paymentBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if msg := body.validate(); msg != "" {
		writeBadRequest(w, msg)
		return
	}
	booking, err := srv.store.GetBooking(r.Context(), rc.Org.OrgID, bookingID)
	if err != nil {
		writeInternal(w, r, "get booking for charge", err)
		return
	}
	if booking == nil {
		writeNotFound(w, "booking not found")
		return
	}
	p, err := srv.store.RecordCharge(r.Context(), rc.Org.OrgID, bookingID, body.AmountCents, body.Method, body.Reference)
	if err != nil {
		writeInternal(w, r, "record charge", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentResponse(p))
}

func (srv *Server) handleRecordRefund(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	bookingID, err := uuidParam(r, "bookingID")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	var body paymentBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if msg := body.validate(); msg != "" {
		writeBadRequest(w, msg)
		return
	}
	p, err := srv.store.RecordRefund(r.Context(), rc.Org.OrgID, bookingID, body.AmountCents, body.Method, body.Reference)
	if errors.Is(err, store.ErrRefundExceedsPaid) {
		writeError(w, http.StatusUnprocessableEntity, "REFUND_EXCEEDS_PAID",
			"refund amount exceeds net amount paid on this booking")
		return
	}
	if err != nil {
		writeInternal(w, r, "record refund", err)
		return
	}
	if p == nil {
		writeNotFound(w, "booking not found")
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentResponse(p))
}

func (srv *Server) handleListPayments(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	bookingID, err := uuidParam(r, "bookingID")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	booking, err := srv.store.GetBooking(r.Context(), rc.Org.OrgID, bookingID)
	if err != nil {
		writeInternal(w, r, "get booking for payments", err)
		return
	}
	if booking == nil {
		writeNotFound(w, "booking not found")
		return
	}
	payments, err := srv.store.ListBookingPayments(r.Context(), rc.Org.OrgID, bookingID)
	if err != nil {
		writeInternal(w, r, "list payments", err)
		return
	}
	out := make([]paymentResponse, 0, len(payments))
	for i := range payments {
		out = append(out, toPaymentResponse(&payments[i]))
	}
	writeJSON(w, http.StatusOK, out)
}
