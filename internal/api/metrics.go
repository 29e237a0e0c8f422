// ABOUTME: Prometheus metrics for the API layer, registered on the default registry
// ABOUTME: and exposed via /metrics.
package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var rateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tourcrm_rate_limited_total",
	Help: "Requests rejected by the per-class rate limiter.",
}, []string{"class"})

var authRateLimitRejections = promauto.NewCounter(prometheus.CounterOpts{
	Name: "tourcrm_auth_rate_limited_total",
	Help: "Auth endpoint requests rejected by the per-IP limiter.",
})
