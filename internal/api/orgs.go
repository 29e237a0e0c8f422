// ABOUTME: Org lifecycle and membership handlers: create org, profile,
// ABOUTME: member add/role-change/remove with last-owner protection.
package api

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{0,62}[a-z0-9])?$`)

type orgResponse struct {
	ID        uuid.UUID `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type memberResponse struct {
	UserID      uuid.UUID `json:"userId"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	Role        string    `json:"role"`
}

func (srv *Server) handleCreateOrg(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	if rc.User == nil {
		// API keys belong to an existing org and cannot found new ones.
		writeForbidden(w, "api keys cannot create organizations")
		return
	}

	var body struct {
		Slug string `json:"slug"`
		Name string `json:"name"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	body.Slug = strings.ToLower(strings.TrimSpace(body.Slug))
	body.Name = strings.TrimSpace(body.Name)
	if !slugPattern.MatchString(body.Slug) {
		writeBadRequest(w, "slug must be lowercase letters, digits, and hyphens")
		return
	}
	if body.Name == "" || len(body.Name) > 200 {
		writeBadRequest(w, "name must be 1-200 characters")
		return
	}

	org, err := srv.store.CreateOrgWithOwner(r.Context(), body.Slug, body.Name, rc.User.ID)
	if err != nil {
		// Slug uniqueness is enforced by the database.
		if isUniqueViolation(err) {
			writeConflict(w, "slug already taken")
			return
		}
		writeInternal(w, r, "create org", err)
		return
	}
	writeJSON(w, http.StatusCreated, orgResponse{
		ID: org.ID, Slug: org.Slug, Name: org.Name, CreatedAt: org.CreatedAt,
	})
}

func (srv *Server) handleListMyOrgs(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	if rc.User == nil {
		writeForbidden(w, "api keys are bound to a single organization")
		return
	}
	orgs, err := srv.store.ListUserOrgs(r.Context(), rc.User.ID)
	if err != nil {
		writeInternal(w, r, "list user orgs", err)
		return
	}
	type item struct {
		orgResponse
		Role string `json:"role"`
	}
	out := make([]item, 0, len(orgs))
	for _, uo := range orgs {
		out = append(out, item{
			orgResponse: orgResponse{
				ID: uo.Org.ID, Slug: uo.Org.Slug, Name: uo.Org.Name, CreatedAt: uo.Org.CreatedAt,
			},
			Role: uo.Role,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (srv *Server) handleGetOrg(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	org, err := srv.store.GetOrgByID(r.Context(), rc.Org.OrgID)
	if err != nil {
		writeInternal(w, r, "get org", err)
		return
	}
	if org == nil {
		writeNotFound(w, "organization not found")
		return
	}
	writeJSON(w, http.StatusOK, orgResponse{
		ID: org.ID, Slug: org.Slug, Name: org.Name, CreatedAt: org.CreatedAt,
	})
}

func (srv *Server) handleUpdateOrg(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" || len(body.Name) > 200 {
		writeBadRequest(w, "name must be 1-200 characters")
		return
	}
	org, err := srv.store.UpdateOrg(r.Context(), rc.Org.OrgID, body.Name)
	if err != nil {
		writeInternal(w, r, "update org", err)
		return
	}
	writeJSON(w, http.StatusOK, orgResponse{
		ID: org.ID, Slug: org.Slug, Name: org.Name, CreatedAt: org.CreatedAt,
	})
}

func (srv *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	members, err := srv.store.ListOrgMembers(r.Context(), rc.Org.OrgID)
	if err != nil {
		writeInternal(w, r, "list org members", err)
		return
	}
	out := make([]memberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, memberResponse{
			UserID: m.UserID, Email: m.Email, DisplayName: m.DisplayName, Role: m.Role,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (srv *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	var body struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	role, ok := validateRole(body.Role)
	if !ok {
		writeBadRequest(w, "role must be one of owner, admin, member")
		return
	}
	// Granting a role above your own is not allowed.
	if parseRole(role) > rc.Org.Role {
		writeForbidden(w, "cannot grant a role above your own")
		return
	}

	user, err := srv.store.GetUserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(body.Email)))
	if err != nil {
		writeInternal(w, r, "lookup user for membership", err)
		return
	}
	if user == nil {
		writeNotFound(w, "no account with that email")
		return
	}
	if err := srv.store.CreateOrgMember(r.Context(), rc.Org.OrgID, user.ID, role); err != nil {
		if isUniqueViolation(err) {
			writeConflict(w, "user is already a member")
			return
		}
		writeInternal(w, r, "add member", err)
		return
	}
	writeJSON(w, http.StatusCreated, memberResponse{
		UserID: user.ID, Email: user.Email, DisplayName: user.DisplayName, Role: role,
	})
}

func (srv *Server) handleUpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	userID, err := uuidParam(r, "userID")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	var body struct {
		Role string `json:"role"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	role, ok := validateRole(body.Role)
	if !ok {
		writeBadRequest(w, "role must be one of owner, admin, member")
		return
	}
	if parseRole(role) > rc.Org.Role {
		writeForbidden(w, "cannot grant a role above your own")
		return
	}

	current, err := srv.store.GetOrgMemberRole(r.Context(), rc.Org.OrgID, userID)
	if err != nil {
		writeInternal(w, r, "get member role", err)
		return
	}
	if current == nil {
		writeNotFound(w, "not a member of this organization")
		return
	}
	if parseRole(*current) > rc.Org.Role {
		writeForbidden(w, "cannot change the role of a higher-ranked member")
		return
	}
	if *current == "owner" && role != "owner" {
		if !srv.ensureNotLastOwner(w, r, rc.Org.OrgID) {
			return
		}
	}

	if err := srv.store.UpdateOrgMemberRole(r.Context(), rc.Org.OrgID, userID, role); err != nil {
		writeInternal(w, r, "update member role", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (srv *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	userID, err := uuidParam(r, "userID")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	current, err := srv.store.GetOrgMemberRole(r.Context(), rc.Org.OrgID, userID)
	if err != nil {
		writeInternal(w, r, "get member role", err)
		return
	}
	if current == nil {
		writeNotFound(w, "not a member of this organization")
		return
	}
	if parseRole(*current) > rc.Org.Role {
		writeForbidden(w, "cannot remove a higher-ranked member")
		return
	}
	if *current == "owner" {
		if !srv.ensureNotLastOwner(w, r, rc.Org.OrgID) {
			return
		}
	}
	if err := srv.store.RemoveOrgMember(r.Context(), rc.Org.OrgID, userID); err != nil {
		writeInternal(w, r, "remove member", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ensureNotLastOwner reports whether the operation may proceed. On false it
// has already written an error response.
func (srv *Server) ensureNotLastOwner(w http.ResponseWriter, r *http.Request, orgID uuid.UUID) bool {
	count, err := srv.store.GetOrgOwnerCount(r.Context(), orgID)
	if err != nil {
		writeInternal(w, r, "count owners", err)
		return false
	}
	if count <= 1 {
		writeConflict(w, "organization must keep at least one owner")
		return false
	}
	return true
}

func validateRole(s string) (string, bool) {
	switch s {
	case "owner", "admin", "member":
		return s, true
	}
	return "", false
}
