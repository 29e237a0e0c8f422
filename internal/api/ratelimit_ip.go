// ABOUTME: Per-IP token-bucket limiter for the credential endpoints (login,
// ABOUTME: register, refresh), throttling brute force before identity exists.
package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ipRateLimiter throttles unauthenticated callers by client IP. This is a
// separate mechanism from the per-principal class limiter: credential
// endpoints run before any identity exists, so IP is the only usable key.
type ipRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	trusted  []*net.IPNet
}

type visitor struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newIPRateLimiter(perMinute int, burst int, trustedProxies string) *ipRateLimiter {
	rl := &ipRateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(float64(perMinute) / 60.0),
		burst:    burst,
	}
	for _, cidr := range strings.Split(trustedProxies, ",") {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		if _, ipNet, err := net.ParseCIDR(cidr); err == nil {
			rl.trusted = append(rl.trusted, ipNet)
		}
	}
	go rl.cleanupLoop()
	return rl
}

// allow reports whether the given IP may proceed, creating its bucket on
// first sight.
func (rl *ipRateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.lim.Allow()
}

func (rl *ipRateLimiter) cleanupLoop() {
	for range time.Tick(5 * time.Minute) {
		cutoff := time.Now().Add(-15 * time.Minute)
		rl.mu.Lock()
		for ip, v := range rl.visitors {
			if v.lastSeen.Before(cutoff) {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// clientIP extracts the real client IP, honoring X-Forwarded-For only when
// the direct peer is a configured trusted proxy.
func (rl *ipRateLimiter) clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer := net.ParseIP(host)
	if peer == nil {
		return host
	}
	trusted := false
	for _, ipNet := range rl.trusted {
		if ipNet.Contains(peer) {
			trusted = true
			break
		}
	}
	if !trusted {
		return host
	}
	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return host
	}
	// Rightmost address not belonging to a trusted proxy is the client.
	parts := strings.Split(xff, ",")
	for i := len(parts) - 1; i >= 0; i-- {
		ip := net.ParseIP(strings.TrimSpace(parts[i]))
		if ip == nil {
			continue
		}
		inTrusted := false
		for _, ipNet := range rl.trusted {
			if ipNet.Contains(ip) {
				inTrusted = true
				break
			}
		}
		if !inTrusted {
			return ip.String()
		}
	}
	return host
}

// authRateLimit wraps the credential endpoints with the per-IP limiter.
func (srv *Server) authRateLimit() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := srv.ipLimiter.clientIP(r)
			if !srv.ipLimiter.allow(ip) {
				authRateLimitRejections.Inc()
				w.Header().Set("Retry-After", "60")
				writeError(w, http.StatusTooManyRequests, CodeTooManyRequests,
					"too many authentication attempts, slow down")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
