// ABOUTME: Webhook channel management: create, list, delete, and secret
// ABOUTME: rotation with a dual-secret grace period for receivers.
package api

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

type webhookResponse struct {
	ID        uuid.UUID `json:"id"`
	URL       string    `json:"url"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

func (srv *Server) handleListWebhooks(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	channels, err := srv.store.ListActiveWebhookChannels(r.Context(), rc.Org.OrgID)
	if err != nil {
		writeInternal(w, r, "list webhook channels", err)
		return
	}
	out := make([]webhookResponse, 0, len(channels))
	for _, c := range channels {
		out = append(out, webhookResponse{ID: c.ID, URL: c.URL, Active: c.Active, CreatedAt: c.CreatedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

func (srv *Server) handleCreateWebhook(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	var body struct {
		URL string `json:"url"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	u, err := url.Parse(body.URL)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		writeBadRequest(w, "url must be an absolute https URL")
		return
	}

	secret, err := newWebhookSecret()
	if err != nil {
		writeInternal(w, r, "generate webhook secret", err)
		return
	}
	ch, err := srv.store.CreateWebhookChannel(r.Context(), rc.Org.OrgID, body.URL, secret)
	if err != nil {
		writeInternal(w, r, "create webhook channel", err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		webhookResponse
		SigningSecret string `json:"signingSecret"` // shown once
	}{
		webhookResponse: webhookResponse{ID: ch.ID, URL: ch.URL, Active: ch.Active, CreatedAt: ch.CreatedAt},
		SigningSecret:   secret,
	})
}

func (srv *Server) handleRotateWebhookSecret(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	channelID, err := uuidParam(r, "channelID")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	secret, err := newWebhookSecret()
	if err != nil {
		writeInternal(w, r, "generate webhook secret", err)
		return
	}
	ok, err := srv.store.RotateWebhookSecret(r.Context(), rc.Org.OrgID, channelID, secret)
	if err != nil {
		writeInternal(w, r, "rotate webhook secret", err)
		return
	}
	if !ok {
		writeNotFound(w, "webhook channel not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"signingSecret": secret})
}

func (srv *Server) handleDeleteWebhook(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	channelID, err := uuidParam(r, "channelID")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	ok, err := srv.store.DeleteWebhookChannel(r.Context(), rc.Org.OrgID, channelID)
	if err != nil {
		writeInternal(w, r, "delete webhook channel", err)
		return
	}
	if !ok {
		writeNotFound(w, "webhook channel not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func newWebhookSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "whsec_" + hex.EncodeToString(b), nil
}
