// ABOUTME: Tour catalog handlers: the product definitions that schedules
// ABOUTME: and pricing hang off.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/saimali7/Tour-CRM-sub012/internal/store"
)

type tourBody struct {
	Name            string  `json:"name"`
	Description     *string `json:"description"`
	DurationMinutes int     `json:"durationMinutes"`
	PriceCents      int64   `json:"priceCents"`
	Active          *bool   `json:"active"` // update only; ignored on create
}

type tourResponse struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Description     *string   `json:"description,omitempty"`
	DurationMinutes int       `json:"durationMinutes"`
	PriceCents      int64     `json:"priceCents"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"createdAt"`
}

func toTourResponse(t *store.Tour) tourResponse {
	return tourResponse{
		ID: t.ID, Name: t.Name, Description: t.Description,
		DurationMinutes: t.DurationMinutes, PriceCents: t.PriceCents,
		Active: t.Active, CreatedAt: t.CreatedAt,
	}
}

func (b *tourBody) validate() string {
	b.Name = strings.TrimSpace(b.Name)
	if b.Name == "" || len(b.Name) > 200 {
		return "name must be 1-200 characters"
	}
	if b.DurationMinutes < 15 || b.DurationMinutes > 24*60 {
		return "durationMinutes must be between 15 and 1440"
	}
	if b.PriceCents < 0 {
		return "priceCents must not be negative"
	}
	return ""
}

func (srv *Server) handleListTours(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	tours, err := srv.store.ListTours(r.Context(), rc.Org.OrgID)
	if err != nil {
		writeInternal(w, r, "list tours", err)
		return
	}
	out := make([]tourResponse, 0, len(tours))
	for i := range tours {
		out = append(out, toTourResponse(&tours[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (srv *Server) handleCreateTour(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	var body tourBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if msg := body.validate(); msg != "" {
		writeBadRequest(w, msg)
		return
	}
	t, err := srv.store.CreateTour(r.Context(), rc.Org.OrgID, body.Name, body.Description, body.DurationMinutes, body.PriceCents)
	if err != nil {
		writeInternal(w, r, "create tour", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTourResponse(t))
}

func (srv *Server) handleGetTour(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	id, err := uuidParam(r, "tourID")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	t, err := srv.store.GetTour(r.Context(), rc.Org.OrgID, id)
	if err != nil {
		writeInternal(w, r, "get tour", err)
		return
	}
	if t == nil {
		writeNotFound(w, "tour not found")
		return
	}
	writeJSON(w, http.StatusOK, toTourResponse(t))
}

func (srv *Server) handleUpdateTour(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	id, err := uuidParam(r, "tourID")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	var body tourBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if msg := body.validate(); msg != "" {
		writeBadRequest(w, msg)
		return
	}
	active := true
	if body.Active != nil {
		active = *body.Active
	}
	t, err := srv.store.UpdateTour(r.Context(), rc.Org.OrgID, id, body.Name, body.Description, body.DurationMinutes, body.PriceCents, active)
	if err != nil {
		writeInternal(w, r, "update tour", err)
		return
	}
	if t == nil {
		writeNotFound(w, "tour not found")
		return
	}
	writeJSON(w, http.StatusOK, toTourResponse(t))
}
