// ABOUTME: Guide roster handlers. Assignment itself lives with schedules;
// ABOUTME: this file manages the people being assigned.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/saimali7/Tour-CRM-sub012/internal/store"
)

type guideBody struct {
	FullName string  `json:"fullName"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	Active   *bool   `json:"active"` // update only
}

type guideResponse struct {
	ID        uuid.UUID `json:"id"`
	FullName  string    `json:"fullName"`
	Email     *string   `json:"email,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

func toGuideResponse(g *store.Guide) guideResponse {
	return guideResponse{
		ID: g.ID, FullName: g.FullName, Email: g.Email, Phone: g.Phone,
		Active: g.Active, CreatedAt: g.CreatedAt,
	}
}

func (b *guideBody) validate() string {
	b.FullName = strings.TrimSpace(b.FullName)
	if b.FullName == "" || len(b.FullName) > 200 {
		return "fullName must be 1-200 characters"
	}
	return ""
}

func (srv *Server) handleListGuides(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	guides, err := srv.store.ListGuides(r.Context(), rc.Org.OrgID)
	if err != nil {
		writeInternal(w, r, "list guides", err)
		return
	}
	out := make([]guideResponse, 0, len(guides))
	for i := range guides {
		out = append(out, toGuideResponse(&guides[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (srv *Server) handleCreateGuide(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	var body guideBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if msg := body.validate(); msg != "" {
		writeBadRequest(w, msg)
		return
	}
	g, err := srv.store.CreateGuide(r.Context(), rc.Org.OrgID, body.FullName, body.Email, body.Phone)
	if err != nil {
		writeInternal(w, r, "create guide", err)
		return
	}
	writeJSON(w, http.StatusCreated, toGuideResponse(g))
}

func (srv *Server) handleGetGuide(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	id, err := uuidParam(r, "guideID")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	g, err := srv.store.GetGuide(r.Context(), rc.Org.OrgID, id)
	if err != nil {
		writeInternal(w, r, "get guide", err)
		return
	}
	if g == nil {
		writeNotFound(w, "guide not found")
		return
	}
	writeJSON(w, http.StatusOK, toGuideResponse(g))
}

func (srv *Server) handleUpdateGuide(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	id, err := uuidParam(r, "guideID")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	var body guideBody
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
	g, err := srv.store.UpdateGuide(r.Context(), rc.Org.OrgID, id, body.FullName, body.Email, body.Phone, active)
	if err != nil {
		writeInternal(w, r, "update guide", err)
		return
	}
	if g == nil {
		writeNotFound(w, "guide not found")
		return
	}
	writeJSON(w, http.StatusOK, toGuideResponse(g))
}
