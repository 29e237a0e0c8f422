// ABOUTME: HTTP server assembly: middleware chain, tiered route groups, and the
// ABOUTME: huma-described auth surface mounted behind the per-IP limiter.
package api

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/saimali7/Tour-CRM-sub012/internal/config"
	"github.com/saimali7/Tour-CRM-sub012/internal/ratelimit"
	"github.com/saimali7/Tour-CRM-sub012/internal/store"
)

// Server holds the API's dependencies. Construct with NewServer and serve
// the handler returned by Handler.
type Server struct {
	cfg       *config.Config
	store     *store.Store
	resolver  identityResolver
	limiter   ratelimit.Limiter
	ipLimiter *ipRateLimiter
	jwtSecret []byte

	// argonSem bounds concurrent argon2id hashing; each op allocates ~19.5 MB.
	argonSem chan struct{}
}

// NewServer wires a Server from config and the shared store.
func NewServer(cfg *config.Config, st *store.Store) *Server {
	return &Server{
		cfg:       cfg,
		store:     st,
		resolver:  st,
		limiter:   ratelimit.NewCounter(cfg.RateLimitEvictTTL),
		ipLimiter: newIPRateLimiter(10, 5, cfg.TrustedProxies),
		jwtSecret: []byte(cfg.JWTSecret),
		argonSem:  make(chan struct{}, cfg.Argon2MaxConcurrent),
	}
}

// Handler builds the complete route tree.
//
// Every /api/v1 route passes through the context builder; after that, routes
// opt in to tiers by stacking middlewares: RequireUser, RequireOrg,
// RequireRole, RateLimit. Order matters — the role gate runs before the rate
// limiter so an underprivileged caller is told 403 without spending budget.
func (srv *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(securityHeaders)

	r.Get("/healthz", srv.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	apiRouter := chi.NewRouter()
	apiRouter.Use(csrfProtect)
	apiRouter.Use(srv.WithRequestContext())

	// Public tier: works with an entirely empty identity.
	apiRouter.Get("/ping", srv.handlePing)

	// Credential endpoints, described with huma and throttled per IP.
	authRouter := chi.NewRouter()
	authRouter.Use(srv.authRateLimit())
	humaCfg := huma.DefaultConfig("Tour CRM Auth", "1.0.0")
	humaCfg.DocsPath = ""
	humaCfg.Servers = []*huma.Server{{URL: srv.cfg.ExternalURL + "/api/v1/auth"}}
	srv.registerAuthRoutes(humachi.New(authRouter, humaCfg))
	apiRouter.Mount("/auth", authRouter)

	// Authenticated tier: a user, but not yet an org.
	apiRouter.Group(func(r chi.Router) {
		r.Use(srv.RequireUser())
		r.Post("/orgs", srv.handleCreateOrg)
		r.Get("/orgs", srv.handleListMyOrgs)
	})

	// Org-scoped tier and above. The org comes from the X-Org-Slug header
	// resolved by the context builder, never from the URL.
	apiRouter.Group(func(r chi.Router) {
		r.Use(srv.RequireUser(), srv.RequireOrg())

		r.Get("/org", srv.handleGetOrg)
		r.With(srv.RequireRole(RoleAdmin)).Patch("/org", srv.handleUpdateOrg)
		r.Get("/org/members", srv.handleListMembers)
		r.With(srv.RequireRole(RoleAdmin)).Post("/org/members", srv.handleAddMember)
		r.With(srv.RequireRole(RoleAdmin)).Patch("/org/members/{userID}", srv.handleUpdateMemberRole)
		r.With(srv.RequireRole(RoleAdmin)).Delete("/org/members/{userID}", srv.handleRemoveMember)

		r.With(srv.RequireRole(RoleAdmin)).Get("/org/api-keys", srv.handleListAPIKeys)
		r.With(srv.RequireRole(RoleAdmin)).Post("/org/api-keys", srv.handleCreateAPIKey)
		r.With(srv.RequireRole(RoleAdmin)).Delete("/org/api-keys/{keyID}", srv.handleRevokeAPIKey)

		r.With(srv.RequireRole(RoleAdmin)).Get("/org/webhooks", srv.handleListWebhooks)
		r.With(srv.RequireRole(RoleAdmin)).Post("/org/webhooks", srv.handleCreateWebhook)
		r.With(srv.RequireRole(RoleAdmin)).Delete("/org/webhooks/{channelID}", srv.handleDeleteWebhook)
		r.With(srv.RequireRole(RoleAdmin), srv.RateLimit(ClassSensitive)).
			Post("/org/webhooks/{channelID}/rotate", srv.handleRotateWebhookSecret)

		r.Get("/customers", srv.handleSearchCustomers)
		r.Post("/customers", srv.handleCreateCustomer)
		r.Get("/customers/{customerID}", srv.handleGetCustomer)
		r.Patch("/customers/{customerID}", srv.handleUpdateCustomer)
		r.With(srv.RequireRole(RoleAdmin)).Delete("/customers/{customerID}", srv.handleDeleteCustomer)

		r.Get("/tours", srv.handleListTours)
		r.Post("/tours", srv.handleCreateTour)
		r.Get("/tours/{tourID}", srv.handleGetTour)
		r.Patch("/tours/{tourID}", srv.handleUpdateTour)

		r.Get("/guides", srv.handleListGuides)
		r.Post("/guides", srv.handleCreateGuide)
		r.Get("/guides/{guideID}", srv.handleGetGuide)
		r.Patch("/guides/{guideID}", srv.handleUpdateGuide)

		r.Get("/schedules", srv.handleListSchedules)
		r.Post("/schedules", srv.handleCreateSchedule)
		r.Get("/schedules/{scheduleID}", srv.handleGetSchedule)
		r.Patch("/schedules/{scheduleID}/status", srv.handleUpdateScheduleStatus)
		r.Put("/schedules/{scheduleID}/guide", srv.handleAssignGuide)
		r.With(srv.RequireRole(RoleAdmin), srv.RateLimit(ClassBulk)).
			Post("/schedules/bulk", srv.handleBulkSchedules)
		r.Get("/calendar", srv.handleCalendar)

		r.Get("/bookings", srv.handleSearchBookings)
		r.Post("/bookings", srv.handleCreateBooking)
		r.Get("/bookings/{bookingID}", srv.handleGetBooking)
		r.Post("/bookings/{bookingID}/cancel", srv.handleCancelBooking)
		r.With(srv.RequireRole(RoleAdmin), srv.RateLimit(ClassBulk)).
			Post("/bookings/bulk-cancel", srv.handleBulkCancelBookings)

		r.Get("/bookings/{bookingID}/payments", srv.handleListPayments)
		r.With(srv.RequireRole(RoleAdmin), srv.RateLimit(ClassSensitive)).
			Post("/bookings/{bookingID}/payments", srv.handleRecordCharge)
		r.With(srv.RequireRole(RoleAdmin), srv.RateLimit(ClassSensitive)).
			Post("/bookings/{bookingID}/refunds", srv.handleRecordRefund)
	})

	r.Mount("/api/v1", apiRouter)
	return r
}

func (srv *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := srv.store.Pool().Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "database unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handlePing is the public tier: it reads the request context but requires
// nothing of it.
func (srv *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"correlationId": rc.CorrelationID,
		"authenticated": rc.Authenticated(),
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
