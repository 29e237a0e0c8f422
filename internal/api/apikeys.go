// ABOUTME: API key management handlers. The raw key is returned exactly once,
// ABOUTME: at creation; only its sha256 hash is stored.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/saimali7/Tour-CRM-sub012/internal/auth"
)

type apiKeyResponse struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	Role       string     `json:"role"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func (srv *Server) handleListAPIKeys(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	keys, err := srv.store.ListAPIKeys(r.Context(), rc.Org.OrgID)
	if err != nil {
		writeInternal(w, r, "list api keys", err)
		return
	}
	out := make([]apiKeyResponse, 0, len(keys))
	for _, k := range keys {
		out = append(out, apiKeyResponse{
			ID: k.ID, Name: k.Name, Role: k.Role, LastUsedAt: k.LastUsedAt, CreatedAt: k.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (srv *Server) handleCreateAPIKey(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	if rc.User == nil {
		// Keys cannot mint other keys.
		writeForbidden(w, "api keys cannot create api keys")
		return
	}
	var body struct {
		Name string `json:"name"`
		Role string `json:"role"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" || len(body.Name) > 100 {
		writeBadRequest(w, "name must be 1-100 characters")
		return
	}
	// Keys carry at most member or admin rights; owner keys do not exist.
	if body.Role != "member" && body.Role != "admin" {
		writeBadRequest(w, "role must be member or admin")
		return
	}
	if parseRole(body.Role) > rc.Org.Role {
		writeForbidden(w, "cannot grant a role above your own")
		return
	}

	rawKey, keyHash, err := auth.GenerateAPIKey()
	if err != nil {
		writeInternal(w, r, "generate api key", err)
		return
	}
	key, err := srv.store.CreateAPIKey(r.Context(), rc.Org.OrgID, rc.User.ID, keyHash, body.Name, body.Role)
	if err != nil {
		writeInternal(w, r, "create api key", err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		apiKeyResponse
		Key string `json:"key"` // shown once, never retrievable again
	}{
		apiKeyResponse: apiKeyResponse{
			ID: key.ID, Name: key.Name, Role: key.Role, CreatedAt: key.CreatedAt,
		},
		Key: rawKey,
	})
}

func (srv *Server) handleRevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	keyID, err := uuidParam(r, "keyID")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	ok, err := srv.store.RevokeAPIKey(r.Context(), rc.Org.OrgID, keyID)
	if err != nil {
		writeInternal(w, r, "revoke api key", err)
		return
	}
	if !ok {
		writeNotFound(w, "api key not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
