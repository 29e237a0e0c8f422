// ABOUTME: Tests for the context builder and tier middleware chain: tier
// ABOUTME: rejections, ordering, rate-limit budgets, and builder resilience.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/saimali7/Tour-CRM-sub012/internal/auth"
	"github.com/saimali7/Tour-CRM-sub012/internal/config"
	"github.com/saimali7/Tour-CRM-sub012/internal/ratelimit"
	"github.com/saimali7/Tour-CRM-sub012/internal/store"
)

// stubResolver satisfies identityResolver without a database.
type stubResolver struct {
	key        *store.APIKey
	user       *store.User
	membership *store.Membership
	// When set, every method fails with this error.
	err error
}

func (s *stubResolver) LookupAPIKey(_ context.Context, _ string) (*store.APIKey, error) {
	return s.key, s.err
}

func (s *stubResolver) GetUserByID(_ context.Context, _ uuid.UUID) (*store.User, error) {
	return s.user, s.err
}

func (s *stubResolver) GetMembershipBySlug(_ context.Context, _ string, _ uuid.UUID) (*store.Membership, error) {
	return s.membership, s.err
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:                "middleware-test-secret",
		RateLimitBulkMax:         5,
		RateLimitBulkWindow:      time.Minute,
		RateLimitSensitiveMax:    10,
		RateLimitSensitiveWindow: time.Minute,
		RateLimitEvictTTL:        time.Minute,
	}
}

// newStubServer assembles a Server whose builder reads from res instead of
// the real store.
func newStubServer(res identityResolver) *Server {
	cfg := testConfig()
	return &Server{
		cfg:       cfg,
		resolver:  res,
		limiter:   ratelimit.NewCounter(cfg.RateLimitEvictTTL),
		ipLimiter: newIPRateLimiter(10, 5, ""),
		jwtSecret: []byte(cfg.JWTSecret),
		argonSem:  make(chan struct{}, 1),
	}
}

// buildTierTestServer exposes one route per tier so tests can probe each gate.
func buildTierTestServer(t *testing.T, srv *Server) *httptest.Server {
	t.Helper()
	ok := func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

	r := chi.NewRouter()
	r.Use(srv.WithRequestContext())
	r.Get("/public", ok)
	r.With(srv.RequireUser()).Get("/authed", ok)
	r.With(srv.RequireUser(), srv.RequireOrg()).Get("/org", ok)
	r.With(srv.RequireUser(), srv.RequireOrg(), srv.RequireRole(RoleAdmin)).Get("/admin", ok)
	r.With(srv.RequireUser(), srv.RequireOrg(), srv.RequireRole(RoleAdmin), srv.RateLimit(ClassBulk)).
		Post("/bulk", ok)
	r.With(srv.RequireUser(), srv.RequireOrg(), srv.RequireRole(RoleAdmin), srv.RateLimit(ClassSensitive)).
		Post("/sensitive", ok)

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

// sessionFor mints a valid access-token cookie for u against srv's secret.
func sessionFor(t *testing.T, srv *Server, u *store.User) *http.Cookie {
	t.Helper()
	token, err := auth.IssueAccessToken(srv.jwtSecret, u.ID, u.TokenVersion, 15*time.Minute)
	if err != nil {
		t.Fatalf("issue access token: %v", err)
	}
	return &http.Cookie{Name: accessTokenCookie, Value: token}
}

func doRequest(t *testing.T, ts *httptest.Server, method, path string, mutate func(*http.Request)) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if mutate != nil {
		mutate(req)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("request %s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() }) //nolint:errcheck
	return resp
}

func TestPublicTier_Anonymous_OK(t *testing.T) {
	t.Parallel()
	srv := newStubServer(&stubResolver{})
	ts := buildTierTestServer(t, srv)

	resp := doRequest(t, ts, http.MethodGet, "/public", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("anonymous public request: got %d, want 200", resp.StatusCode)
	}
	if resp.Header.Get(HeaderCorrelationID) == "" {
		t.Error("response missing synthesized correlation ID")
	}
}

func TestCorrelationID_Forwarded(t *testing.T) {
	t.Parallel()
	srv := newStubServer(&stubResolver{})
	ts := buildTierTestServer(t, srv)

	resp := doRequest(t, ts, http.MethodGet, "/public", func(req *http.Request) {
		req.Header.Set(HeaderCorrelationID, "caller-supplied-123")
	})
	if got := resp.Header.Get(HeaderCorrelationID); got != "caller-supplied-123" {
		t.Errorf("correlation ID = %q, want the caller's value echoed back", got)
	}
}

func TestRequireUser_Anonymous_401(t *testing.T) {
	t.Parallel()
	srv := newStubServer(&stubResolver{})
	ts := buildTierTestServer(t, srv)

	resp := doRequest(t, ts, http.MethodGet, "/authed", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("anonymous authed request: got %d, want 401", resp.StatusCode)
	}
	var body errorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Code != CodeUnauthorized {
		t.Errorf("error code = %q, want %q", body.Code, CodeUnauthorized)
	}
}

func TestRequireOrg_NoMembership_401(t *testing.T) {
	t.Parallel()
	user := &store.User{ID: uuid.New(), TokenVersion: 1}
	// membership stays nil: the slug names an org the user cannot see.
	srv := newStubServer(&stubResolver{user: user})
	ts := buildTierTestServer(t, srv)

	resp := doRequest(t, ts, http.MethodGet, "/org", func(req *http.Request) {
		req.AddCookie(sessionFor(t, srv, user))
		req.Header.Set(HeaderOrgSlug, "someone-elses-org")
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no membership: got %d, want 401", resp.StatusCode)
	}
}

func TestRequireOrg_MissingHeader_401(t *testing.T) {
	t.Parallel()
	user := &store.User{ID: uuid.New(), TokenVersion: 1}
	srv := newStubServer(&stubResolver{
		user:       user,
		membership: &store.Membership{OrgID: uuid.New(), UserID: user.ID, Role: "admin"},
	})
	ts := buildTierTestServer(t, srv)

	// Membership exists but the request never names an org.
	resp := doRequest(t, ts, http.MethodGet, "/org", func(req *http.Request) {
		req.AddCookie(sessionFor(t, srv, user))
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("missing org-slug header: got %d, want 401", resp.StatusCode)
	}
}

func TestRequireRole_MemberAtAdminGate_403(t *testing.T) {
	t.Parallel()
	user := &store.User{ID: uuid.New(), TokenVersion: 1}
	srv := newStubServer(&stubResolver{
		user:       user,
		membership: &store.Membership{OrgID: uuid.New(), UserID: user.ID, Role: "member"},
	})
	ts := buildTierTestServer(t, srv)

	withCreds := func(req *http.Request) {
		req.AddCookie(sessionFor(t, srv, user))
		req.Header.Set(HeaderOrgSlug, "acme-tours")
	}

	resp := doRequest(t, ts, http.MethodGet, "/admin", withCreds)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("member at admin gate: got %d, want 403", resp.StatusCode)
	}

	// The role gate sits before the rate limiter: hammering a bulk route as
	// a member yields 403 every time, never 429, and consumes no budget.
	for i := 0; i < 10; i++ {
		resp := doRequest(t, ts, http.MethodPost, "/bulk", withCreds)
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("member bulk call %d: got %d, want 403", i+1, resp.StatusCode)
		}
	}
}

func TestRequireRole_AdminAndOwnerPass(t *testing.T) {
	t.Parallel()
	for _, role := range []string{"admin", "owner"} {
		user := &store.User{ID: uuid.New(), TokenVersion: 1}
		srv := newStubServer(&stubResolver{
			user:       user,
			membership: &store.Membership{OrgID: uuid.New(), UserID: user.ID, Role: role},
		})
		ts := buildTierTestServer(t, srv)

		resp := doRequest(t, ts, http.MethodGet, "/admin", func(req *http.Request) {
			req.AddCookie(sessionFor(t, srv, user))
			req.Header.Set(HeaderOrgSlug, "acme-tours")
		})
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s at admin gate: got %d, want 200", role, resp.StatusCode)
		}
	}
}

func TestRateLimit_BulkSixthCall_429(t *testing.T) {
	t.Parallel()
	user := &store.User{ID: uuid.New(), TokenVersion: 1}
	srv := newStubServer(&stubResolver{
		user:       user,
		membership: &store.Membership{OrgID: uuid.New(), UserID: user.ID, Role: "owner"},
	})
	ts := buildTierTestServer(t, srv)

	withCreds := func(req *http.Request) {
		req.AddCookie(sessionFor(t, srv, user))
		req.Header.Set(HeaderOrgSlug, "acme-tours")
	}

	for i := 0; i < 5; i++ {
		resp := doRequest(t, ts, http.MethodPost, "/bulk", withCreds)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("bulk call %d: got %d, want 200", i+1, resp.StatusCode)
		}
	}

	resp := doRequest(t, ts, http.MethodPost, "/bulk", withCreds)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("6th bulk call: got %d, want 429", resp.StatusCode)
	}
	retryAfter, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || retryAfter < 1 {
		t.Errorf("Retry-After = %q, want a positive integer", resp.Header.Get("Retry-After"))
	}
	var body rateLimitBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode 429 body: %v", err)
	}
	if body.Code != CodeTooManyRequests {
		t.Errorf("error code = %q, want %q", body.Code, CodeTooManyRequests)
	}
	if body.ResetInSeconds < 1 || body.ResetInSeconds > 60 {
		t.Errorf("resetInSeconds = %d, want within (0, 60]", body.ResetInSeconds)
	}
}

func TestRateLimit_ClassBudgetsIndependent(t *testing.T) {
	t.Parallel()
	user := &store.User{ID: uuid.New(), TokenVersion: 1}
	srv := newStubServer(&stubResolver{
		user:       user,
		membership: &store.Membership{OrgID: uuid.New(), UserID: user.ID, Role: "owner"},
	})
	ts := buildTierTestServer(t, srv)

	withCreds := func(req *http.Request) {
		req.AddCookie(sessionFor(t, srv, user))
		req.Header.Set(HeaderOrgSlug, "acme-tours")
	}

	for i := 0; i < 6; i++ {
		doRequest(t, ts, http.MethodPost, "/bulk", withCreds)
	}
	// Bulk budget exhausted; sensitive must be untouched.
	resp := doRequest(t, ts, http.MethodPost, "/sensitive", withCreds)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("sensitive call after bulk exhaustion: got %d, want 200", resp.StatusCode)
	}
}

func TestContextBuilder_ResolverFailure_NeverRejects(t *testing.T) {
	t.Parallel()
	user := &store.User{ID: uuid.New(), TokenVersion: 1}
	srv := newStubServer(&stubResolver{err: errors.New("database on fire")})
	ts := buildTierTestServer(t, srv)

	// Full credentials, failing resolver: the public tier still serves.
	resp := doRequest(t, ts, http.MethodGet, "/public", func(req *http.Request) {
		req.AddCookie(sessionFor(t, srv, user))
		req.Header.Set(HeaderOrgSlug, "acme-tours")
	})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("public route with failing resolver: got %d, want 200", resp.StatusCode)
	}

	// Gated routes degrade to their tier's rejection, never 500.
	resp = doRequest(t, ts, http.MethodGet, "/org", func(req *http.Request) {
		req.AddCookie(sessionFor(t, srv, user))
		req.Header.Set(HeaderOrgSlug, "acme-tours")
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("org route with failing resolver: got %d, want 401", resp.StatusCode)
	}
}

func TestContextBuilder_StaleTokenVersion_Anonymous(t *testing.T) {
	t.Parallel()
	user := &store.User{ID: uuid.New(), TokenVersion: 2}
	srv := newStubServer(&stubResolver{user: user})
	ts := buildTierTestServer(t, srv)

	// Token minted for version 1; the store now says version 2.
	token, err := auth.IssueAccessToken(srv.jwtSecret, user.ID, 1, 15*time.Minute)
	if err != nil {
		t.Fatalf("issue access token: %v", err)
	}
	resp := doRequest(t, ts, http.MethodGet, "/authed", func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: accessTokenCookie, Value: token})
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("stale token version: got %d, want 401", resp.StatusCode)
	}
}

func TestAPIKey_BoundToItsOrg(t *testing.T) {
	t.Parallel()
	rawKey, keyHash, err := auth.GenerateAPIKey()
	if err != nil {
		t.Fatalf("generate api key: %v", err)
	}
	key := &store.APIKey{ID: uuid.New(), OrgID: uuid.New(), KeyHash: keyHash, Role: "admin"}
	srv := newStubServer(&stubResolver{key: key})
	ts := buildTierTestServer(t, srv)

	// No org-slug header needed: the key carries its org.
	resp := doRequest(t, ts, http.MethodGet, "/admin", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+rawKey)
	})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("admin api key: got %d, want 200", resp.StatusCode)
	}

	// A header naming some other org must not re-scope the key.
	resp = doRequest(t, ts, http.MethodGet, "/org", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+rawKey)
		req.Header.Set(HeaderOrgSlug, "other-org")
	})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("api key with foreign slug header: got %d, want 200 scoped to key org", resp.StatusCode)
	}
}

func TestAPIKey_MemberRoleStopsAtAdminGate(t *testing.T) {
	t.Parallel()
	rawKey, keyHash, err := auth.GenerateAPIKey()
	if err != nil {
		t.Fatalf("generate api key: %v", err)
	}
	key := &store.APIKey{ID: uuid.New(), OrgID: uuid.New(), KeyHash: keyHash, Role: "member"}
	srv := newStubServer(&stubResolver{key: key})
	ts := buildTierTestServer(t, srv)

	resp := doRequest(t, ts, http.MethodGet, "/admin", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+rawKey)
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("member api key at admin gate: got %d, want 403", resp.StatusCode)
	}
}

func TestParseRole(t *testing.T) {
	t.Parallel()
	cases := []struct {
		input string
		want  Role
	}{
		{"owner", RoleOwner},
		{"admin", RoleAdmin},
		{"member", RoleMember},
		{"unknown", RoleMember},
		{"", RoleMember},
	}
	for _, tc := range cases {
		if got := parseRole(tc.input); got != tc.want {
			t.Errorf("parseRole(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestRoleOrdering(t *testing.T) {
	t.Parallel()
	if RoleMember >= RoleAdmin || RoleAdmin >= RoleOwner {
		t.Error("role ordering: want member < admin < owner")
	}
}
