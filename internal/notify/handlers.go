// ABOUTME: Job handlers for the notification queues: booking confirmation
// ABOUTME: emails and signed webhook fan-out to org-configured channels.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/saimali7/Tour-CRM-sub012/internal/store"
	"github.com/saimali7/Tour-CRM-sub012/internal/worker"
)

// bookingEvent mirrors the payload enqueued by the API when a booking is
// confirmed or cancelled.
type bookingEvent struct {
	Event      string    `json:"event"`
	OrgID      uuid.UUID `json:"orgId"`
	BookingID  uuid.UUID `json:"bookingId"`
	CustomerID uuid.UUID `json:"customerId"`
	Seats      int       `json:"seats"`
	TotalCents int64     `json:"totalCents"`
}

// EmailHandler returns the handler for the booking_email queue. It emails the
// booking's customer. Bookings or customers that vanished, and customers with
// no email on file, complete the job without sending.
func EmailHandler(st *store.Store, cfg SmtpConfig) worker.Handler {
	return func(ctx context.Context, payload json.RawMessage) error {
		var ev bookingEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("decode booking event: %w", err)
		}
		customer, err := st.GetCustomer(ctx, ev.OrgID, ev.CustomerID)
		if err != nil {
			return fmt.Errorf("load customer: %w", err)
		}
		if customer == nil || customer.Email == nil {
			slog.Info("booking email skipped: no customer email",
				"booking_id", ev.BookingID, "event", ev.Event)
			return nil
		}

		subject, body := renderBookingEmail(ev, customer.FullName)
		if err := EmailSend(ctx, cfg, *customer.Email, subject, body); err != nil {
			return err
		}
		slog.Info("booking email sent", "booking_id", ev.BookingID, "event", ev.Event)
		return nil
	}
}

func renderBookingEmail(ev bookingEvent, customerName string) (subject, body string) {
	switch ev.Event {
	case "booking.cancelled":
		subject = "Your booking has been cancelled"
		body = fmt.Sprintf(
			"Hello %s,\n\nYour booking (%s) for %d seat(s) has been cancelled.\n\nIf this was unexpected, please contact the operator.\n",
			customerName, ev.BookingID, ev.Seats)
	default:
		subject = "Your booking is confirmed"
		body = fmt.Sprintf(
			"Hello %s,\n\nYour booking (%s) for %d seat(s) is confirmed. Total: %.2f.\n\nWe look forward to seeing you!\n",
			customerName, ev.BookingID, ev.Seats, float64(ev.TotalCents)/100)
	}
	return subject, body
}

// WebhookHandler returns the handler for the webhook_delivery queue. It fans
// the event out to every active channel in the event's org. Any single
// channel failure fails the job so delivery retries; channels that already
// succeeded will receive the event again, which receivers must tolerate.
// rotationGrace bounds how long after a secret rotation deliveries still
// carry the secondary signature.
func WebhookHandler(st *store.Store, client *http.Client, rotationGrace time.Duration) worker.Handler {
	return func(ctx context.Context, payload json.RawMessage) error {
		var ev bookingEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("decode booking event: %w", err)
		}
		channels, err := st.ListActiveWebhookChannels(ctx, ev.OrgID)
		if err != nil {
			return fmt.Errorf("list webhook channels: %w", err)
		}

		var firstErr error
		for _, ch := range channels {
			cfg := WebhookConfig{
				URL:           ch.URL,
				SigningSecret: ch.SigningSecret,
			}
			if ch.SigningSecretSecondary != nil &&
				ch.RotatedAt != nil && time.Since(*ch.RotatedAt) < rotationGrace {
				cfg.SigningSecretSecondary = *ch.SigningSecretSecondary
			}
			if err := Send(ctx, client, cfg, payload); err != nil {
				slog.Error("webhook delivery failed",
					"channel_id", ch.ID, "org_id", ev.OrgID, "error", err)
				if firstErr == nil {
					firstErr = err
				}
			}
		}
		return firstErr
	}
}
