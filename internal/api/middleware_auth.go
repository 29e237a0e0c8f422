// ABOUTME: Authenticated tier: rejects requests whose context builder resolved
// ABOUTME: no principal. Runs after WithRequestContext on all non-public routes.
package api

import "net/http"

// RequireUser gates the authenticated tier. The context builder has already
// done the credential work; this middleware only checks the result.
func (srv *Server) RequireUser() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc := RequestContextFrom(r.Context())
			if rc == nil || !rc.Authenticated() {
				writeUnauthorized(w, "authentication required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
