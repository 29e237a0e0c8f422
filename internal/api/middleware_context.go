// ABOUTME: Context builder middleware: resolves correlation ID, caller identity
// ABOUTME: and org membership up front. Builds best-effort context, never rejects.
package api

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/saimali7/Tour-CRM-sub012/internal/auth"
	"github.com/saimali7/Tour-CRM-sub012/internal/store"
)

// identityResolver is the slice of the store the context builder reads.
// Kept narrow so builder behavior is testable without a database.
type identityResolver interface {
	LookupAPIKey(ctx context.Context, keyHash string) (*store.APIKey, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*store.User, error)
	GetMembershipBySlug(ctx context.Context, slug string, userID uuid.UUID) (*store.Membership, error)
}

// Headers read and written by the context builder.
const (
	HeaderOrgSlug       = "X-Org-Slug"
	HeaderCorrelationID = "X-Correlation-ID"
)

// Cookie names for browser session tokens.
const (
	accessTokenCookie  = "tcrm_access"
	refreshTokenCookie = "tcrm_refresh"
)

// WithRequestContext is the context builder that runs on every API route.
// It assembles a RequestContext with whatever it can resolve — correlation ID
// always, identity and org membership when present — and stores it in the
// request context for the tier middlewares downstream.
//
// The builder itself never fails a request. An invalid token, an unknown org
// slug, or a transient membership-lookup error all produce the same result:
// the corresponding field stays nil and the tier middlewares decide whether
// that matters for the route being served. Lookup failures are logged at
// debug level with the correlation ID so they remain diagnosable.
func (srv *Server) WithRequestContext() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cid := r.Header.Get(HeaderCorrelationID)
			if cid == "" || len(cid) > 128 {
				cid = newCorrelationID()
			}
			rc := &RequestContext{
				CorrelationID: cid,
				Log:           slog.With("correlation_id", cid),
			}

			srv.resolveIdentity(r, rc)
			srv.resolveOrg(r, rc)

			// Echo back so callers and log aggregators can join on it.
			w.Header().Set(HeaderCorrelationID, cid)

			next.ServeHTTP(w, r.WithContext(withRequestContext(r.Context(), rc)))
		})
	}
}

// resolveIdentity fills rc.User or rc.APIKey from the request credentials.
// Missing or invalid credentials leave both nil.
func (srv *Server) resolveIdentity(r *http.Request, rc *RequestContext) {
	ctx := r.Context()

	// Bearer API keys take precedence over session cookies: machine callers
	// may run in a browser-adjacent environment that still carries cookies.
	if h := r.Header.Get("Authorization"); h != "" {
		rawKey, ok := strings.CutPrefix(h, "Bearer ")
		if !ok || !strings.HasPrefix(rawKey, auth.APIKeyPrefix) {
			rc.Log.DebugContext(ctx, "context builder: malformed authorization header")
			return
		}
		keyHash := auth.HashAPIKey(rawKey)
		key, err := srv.resolver.LookupAPIKey(ctx, keyHash)
		if err != nil {
			rc.Log.DebugContext(ctx, "context builder: api key lookup failed", "error", err)
			return
		}
		if key == nil || subtle.ConstantTimeCompare([]byte(key.KeyHash), []byte(keyHash)) != 1 {
			rc.Log.DebugContext(ctx, "context builder: unknown api key")
			return
		}
		rc.APIKey = key
		return
	}

	cookie, err := r.Cookie(accessTokenCookie)
	if err != nil {
		return // anonymous
	}
	claims, err := auth.ParseAccessToken(cookie.Value, srv.jwtSecret)
	if err != nil {
		rc.Log.DebugContext(ctx, "context builder: invalid access token", "error", err)
		return
	}
	user, err := srv.resolver.GetUserByID(ctx, claims.UserID)
	if err != nil {
		rc.Log.DebugContext(ctx, "context builder: user lookup failed", "error", err)
		return
	}
	if user == nil || user.TokenVersion != claims.TokenVersion {
		rc.Log.DebugContext(ctx, "context builder: stale or orphaned access token")
		return
	}
	rc.User = user
}

// resolveOrg fills rc.Org from the org-slug header (for users) or from the
// key's bound org (for API keys). No membership means rc.Org stays nil.
func (srv *Server) resolveOrg(r *http.Request, rc *RequestContext) {
	ctx := r.Context()

	if rc.APIKey != nil {
		// API keys are minted inside one org and carry their own role ceiling;
		// the org-slug header cannot re-scope them.
		rc.Org = &OrgContext{
			OrgID: rc.APIKey.OrgID,
			Role:  parseRole(rc.APIKey.Role),
		}
		return
	}

	slug := strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderOrgSlug)))
	if rc.User == nil || slug == "" {
		return
	}
	m, err := srv.resolver.GetMembershipBySlug(ctx, slug, rc.User.ID)
	if err != nil {
		rc.Log.DebugContext(ctx, "context builder: membership lookup failed",
			"org_slug", slug, "error", err)
		return
	}
	if m == nil {
		rc.Log.DebugContext(ctx, "context builder: no membership for org",
			"org_slug", slug, "user_id", rc.User.ID)
		return
	}
	rc.Org = &OrgContext{OrgID: m.OrgID, Slug: slug, Role: parseRole(m.Role)}
}

// newCorrelationID synthesizes a correlation ID when the caller supplied none:
// millisecond timestamp plus random hex, sortable and unique enough for logs.
func newCorrelationID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing is unrecoverable elsewhere; here a weak
		// fallback keeps the request alive.
		sum := sha256.Sum256([]byte(time.Now().String()))
		copy(b, sum[:4])
	}
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), hex.EncodeToString(b))
}
