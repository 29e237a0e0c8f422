// ABOUTME: Customer CRUD and search handlers, all scoped to the request's org.
package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/saimali7/Tour-CRM-sub012/internal/store"
)

type customerBody struct {
	FullName string  `json:"fullName"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	Notes    *string `json:"notes"`
}

type customerResponse struct {
	ID        uuid.UUID `json:"id"`
	FullName  string    `json:"fullName"`
	Email     *string   `json:"email,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	Notes     *string   `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func toCustomerResponse(c *store.Customer) customerResponse {
	return customerResponse{
		ID: c.ID, FullName: c.FullName, Email: c.Email, Phone: c.Phone,
		Notes: c.Notes, CreatedAt: c.CreatedAt,
	}
}

func (b *customerBody) validate() string {
	b.FullName = strings.TrimSpace(b.FullName)
	if b.FullName == "" || len(b.FullName) > 200 {
		return "fullName must be 1-200 characters"
	}
	if b.Email != nil && (len(*b.Email) > 254 || !strings.Contains(*b.Email, "@")) {
		return "email is not valid"
	}
	return ""
}

func (srv *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	var body customerBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if msg := body.validate(); msg != "" {
		writeBadRequest(w, msg)
		return
	}
	c, err := srv.store.CreateCustomer(r.Context(), rc.Org.OrgID, body.FullName, body.Email, body.Phone, body.Notes)
	if err != nil {
		writeInternal(w, r, "create customer", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerResponse(c))
}

func (srv *Server) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	id, err := uuidParam(r, "customerID")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	c, err := srv.store.GetCustomer(r.Context(), rc.Org.OrgID, id)
	if err != nil {
		writeInternal(w, r, "get customer", err)
		return
	}
	if c == nil {
		writeNotFound(w, "customer not found")
		return
	}
	writeJSON(w, http.StatusOK, toCustomerResponse(c))
}

func (srv *Server) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	id, err := uuidParam(r, "customerID")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	var body customerBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if msg := body.validate(); msg != "" {
		writeBadRequest(w, msg)
		return
	}
	c, err := srv.store.UpdateCustomer(r.Context(), rc.Org.OrgID, id, body.FullName, body.Email, body.Phone, body.Notes)
	if err != nil {
		writeInternal(w, r, "update customer", err)
		return
	}
	if c == nil {
		writeNotFound(w, "customer not found")
		return
	}
	writeJSON(w, http.StatusOK, toCustomerResponse(c))
}

func (srv *Server) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	id, err := uuidParam(r, "customerID")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	ok, err := srv.store.DeleteCustomer(r.Context(), rc.Org.OrgID, id)
	if err != nil {
		writeInternal(w, r, "delete customer", err)
		return
	}
	if !ok {
		writeNotFound(w, "customer not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (srv *Server) handleSearchCustomers(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	q := r.URL.Query()

	params := store.CustomerSearchParams{
		Query: strings.TrimSpace(q.Get("q")),
		Limit: parseLimit(q.Get("limit"), 50, 200),
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

	customers, err := srv.store.SearchCustomers(r.Context(), rc.Org.OrgID, params)
	if err != nil {
		writeInternal(w, r, "search customers", err)
		return
	}
	out := make([]customerResponse, 0, len(customers))
	for i := range customers {
		out = append(out, toCustomerResponse(&customers[i]))
	}
	resp := struct {
		Items      []customerResponse `json:"items"`
		NextCursor string             `json:"nextCursor,omitempty"`
	}{Items: out}
	if len(customers) == params.Limit {
		last := customers[len(customers)-1]
		resp.NextCursor = formatCursor(last.CreatedAt, last.ID)
	}
	writeJSON(w, http.StatusOK, resp)
}

// parseLimit clamps a limit query parameter to [1, max] with a default.
func parseLimit(s string, def, max int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
