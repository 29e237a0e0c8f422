// ABOUTME: Request context object built once per inbound call and threaded
// ABOUTME: explicitly through the tier middleware chain and handlers.
package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/saimali7/Tour-CRM-sub012/internal/store"
)

type contextKey int

const ctxRequest contextKey = iota // *RequestContext

// OrgContext is the resolved organization membership for this request.
// Present only when the caller's identity maps to an org: a user whose
// org-slug header names an org they belong to, or an org-bound API key.
type OrgContext struct {
	OrgID uuid.UUID
	Slug  string
	Role  Role
}

// RequestContext is the per-request context object produced by the builder
// middleware. All fields except CorrelationID and Log are optional at
// construction; the tier middlewares reject requests whose required fields
// are absent. It is never mutated after construction.
type RequestContext struct {
	CorrelationID string
	Log           *slog.Logger

	User   *store.User   // nil for anonymous and API-key callers
	APIKey *store.APIKey // nil unless authenticated via bearer API key
	Org    *OrgContext   // nil when no resolvable membership
}

// Authenticated reports whether any principal (user or API key) was resolved.
func (rc *RequestContext) Authenticated() bool {
	return rc.User != nil || rc.APIKey != nil
}

// PrincipalID returns a stable identifier for the caller, used as the
// identity component of rate-limit keys and in audit logs.
func (rc *RequestContext) PrincipalID() string {
	switch {
	case rc.User != nil:
		return rc.User.ID.String()
	case rc.APIKey != nil:
		return "key:" + rc.APIKey.ID.String()
	default:
		return "anonymous"
	}
}

// withRequestContext returns ctx carrying rc.
func withRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, ctxRequest, rc)
}

// RequestContextFrom extracts the request context, or nil if the builder
// middleware did not run (only possible on routes outside the API router).
func RequestContextFrom(ctx context.Context) *RequestContext {
	rc, _ := ctx.Value(ctxRequest).(*RequestContext)
	return rc
}
