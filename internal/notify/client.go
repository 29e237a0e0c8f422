// ABOUTME: Constructs the SSRF-safe HTTP client used for webhook delivery.
// ABOUTME: safeurl blocks private ranges; redirects are never followed.
package notify

import (
	"net/http"
	"time"

	"github.com/doyensec/safeurl"
)

// BuildSafeClient returns an SSRF-safe *http.Client for webhook delivery.
// Constructed once at worker startup and shared across deliveries.
func BuildSafeClient(timeout time.Duration) *http.Client {
	cfg := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetCheckRedirect(func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}).
		Build()
	return safeurl.Client(cfg).Client
}
