// ABOUTME: Outbound webhook delivery: HMAC-SHA256 signing over timestamp.body,
// ABOUTME: with a secondary signature during secret-rotation grace periods.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Signature headers on every delivery.
const (
	HeaderTimestamp          = "X-TourCRM-Timestamp"
	HeaderSignature          = "X-TourCRM-Signature"
	HeaderSignatureSecondary = "X-TourCRM-Signature-Secondary"
)

// WebhookConfig is the delivery-time view of a webhook channel row.
type WebhookConfig struct {
	URL                    string
	SigningSecret          string
	SigningSecretSecondary string // non-empty during rotation grace
}

// Sign computes the hex HMAC-SHA256 of "timestamp.body" under secret.
// Exposed so receivers (and tests) can verify deliveries.
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "."))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Send posts payload to the channel URL with signature headers and discards
// the response body. client must be the safeurl-wrapped client from
// BuildSafeClient. Non-2xx responses are errors so the job retries.
func Send(ctx context.Context, client *http.Client, cfg WebhookConfig, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	req.Header.Set(HeaderTimestamp, ts)
	req.Header.Set(HeaderSignature, Sign(cfg.SigningSecret, ts, payload))
	// During rotation both secrets are live; receivers verify against either.
	if cfg.SigningSecretSecondary != "" {
		req.Header.Set(HeaderSignatureSecondary, Sign(cfg.SigningSecretSecondary, ts, payload))
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook POST: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	// Drain a little so the connection can be reused.
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck,gosec

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook POST: unexpected status %d", resp.StatusCode)
	}
	return nil
}
