// ABOUTME: Store methods for org-configured webhook channels.
// ABOUTME: Channels receive signed booking-event payloads from the worker.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WebhookChannel is a row in the webhook_channels table.
type WebhookChannel struct {
	ID                     uuid.UUID
	OrgID                  uuid.UUID
	URL                    string
	SigningSecret          string
	SigningSecretSecondary *string    // non-nil during rotation grace period
	RotatedAt              *time.Time // when the secondary was installed
	Active                 bool
	CreatedAt              time.Time
}

const webhookCols = "id, org_id, url, signing_secret, signing_secret_secondary, rotated_at, active, created_at"

func scanWebhook(row pgx.Row) (*WebhookChannel, error) {
	w := &WebhookChannel{}
	err := row.Scan(&w.ID, &w.OrgID, &w.URL, &w.SigningSecret,
		&w.SigningSecretSecondary, &w.RotatedAt, &w.Active, &w.CreatedAt)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// CreateWebhookChannel inserts a channel row and returns it.
func (s *Store) CreateWebhookChannel(ctx context.Context, orgID uuid.UUID, url, signingSecret string) (*WebhookChannel, error) {
	w, err := scanWebhook(s.pool.QueryRow(ctx, `
		INSERT INTO webhook_channels (org_id, url, signing_secret)
		VALUES ($1, $2, $3)
		RETURNING `+webhookCols,
		orgID, url, signingSecret,
	))
	if err != nil {
		return nil, fmt.Errorf("create webhook channel: %w", err)
	}
	return w, nil
}

// GetWebhookChannel returns the channel, or (nil, nil) if not found in this org.
func (s *Store) GetWebhookChannel(ctx context.Context, orgID, id uuid.UUID) (*WebhookChannel, error) {
	w, err := scanWebhook(s.pool.QueryRow(ctx, `
		SELECT `+webhookCols+` FROM webhook_channels WHERE org_id = $1 AND id = $2`,
		orgID, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get webhook channel: %w", err)
	}
	return w, nil
}

// ListActiveWebhookChannels returns all active channels for an org.
func (s *Store) ListActiveWebhookChannels(ctx context.Context, orgID uuid.UUID) ([]WebhookChannel, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+webhookCols+` FROM webhook_channels
		WHERE org_id = $1 AND active ORDER BY created_at`,
		orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("list webhook channels: %w", err)
	}
	defer rows.Close()

	var out []WebhookChannel
	for rows.Next() {
		var w WebhookChannel
		if err := rows.Scan(&w.ID, &w.OrgID, &w.URL, &w.SigningSecret,
			&w.SigningSecretSecondary, &w.RotatedAt, &w.Active, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan webhook channel: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// RotateWebhookSecret moves the current secret into the secondary slot and
// installs newSecret as primary. Receivers can verify against either secret
// until the grace period (measured from rotated_at) elapses.
func (s *Store) RotateWebhookSecret(ctx context.Context, orgID, id uuid.UUID, newSecret string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE webhook_channels
		SET signing_secret_secondary = signing_secret, signing_secret = $3, rotated_at = now()
		WHERE org_id = $1 AND id = $2`,
		orgID, id, newSecret,
	)
	if err != nil {
		return false, fmt.Errorf("rotate webhook secret: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteWebhookChannel removes a channel. Returns false if no row matched.
func (s *Store) DeleteWebhookChannel(ctx context.Context, orgID, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM webhook_channels WHERE org_id = $1 AND id = $2`,
		orgID, id,
	)
	if err != nil {
		return false, fmt.Errorf("delete webhook channel: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
