// ABOUTME: Throttled tiers: per-principal fixed-window rate limits on bulk and
// ABOUTME: sensitive operation classes. Runs after the role gate in the chain.
package api

import (
	"fmt"
	"math"
	"net/http"

	"github.com/saimali7/Tour-CRM-sub012/internal/ratelimit"
)

// Operation classes with their own rate-limit budget. The class name is part
// of the rate-limit key, so bulk calls never consume the sensitive budget.
type Class string

const (
	ClassBulk      Class = "bulk"
	ClassSensitive Class = "sensitive"
)

// rateLimitBody extends the standard error body with the time until the
// caller's window resets, so clients can back off precisely.
type rateLimitBody struct {
	Code           string `json:"code"`
	Message        string `json:"message"`
	ResetInSeconds int    `json:"resetInSeconds"`
}

// RateLimit gates a route on the fixed-window budget for the given class.
// Chain after RequireRole: a caller who lacks the role gets 403 without
// consuming any of their budget. Keyed per principal, org, and class.
func (srv *Server) RateLimit(class Class) func(http.Handler) http.Handler {
	cfg := srv.limitConfig(class)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc := RequestContextFrom(r.Context())
			if rc == nil || rc.Org == nil {
				writeUnauthorized(w, "no accessible organization in request scope")
				return
			}

			key := fmt.Sprintf("%s|%s|%s", rc.PrincipalID(), rc.Org.OrgID, class)
			decision := srv.limiter.Check(key, cfg)
			if !decision.Allowed {
				rateLimitRejections.WithLabelValues(string(class)).Inc()
				seconds := int(math.Ceil(decision.ResetIn.Seconds()))
				if seconds < 1 {
					seconds = 1
				}
				rc.Log.InfoContext(r.Context(), "rate limit exceeded",
					"class", class, "principal", rc.PrincipalID(), "org_id", rc.Org.OrgID,
					"reset_in_seconds", seconds)
				w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
				writeJSON(w, http.StatusTooManyRequests, rateLimitBody{
					Code:           CodeTooManyRequests,
					Message:        fmt.Sprintf("rate limit exceeded, retry in %d seconds", seconds),
					ResetInSeconds: seconds,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// limitConfig maps an operation class to its configured window and threshold.
func (srv *Server) limitConfig(class Class) ratelimit.Config {
	switch class {
	case ClassSensitive:
		return ratelimit.Config{
			Max:    srv.cfg.RateLimitSensitiveMax,
			Window: srv.cfg.RateLimitSensitiveWindow,
		}
	default:
		return ratelimit.Config{
			Max:    srv.cfg.RateLimitBulkMax,
			Window: srv.cfg.RateLimitBulkWindow,
		}
	}
}
