// ABOUTME: Keyed fixed-window counter consulted by the bulk and sensitive API tiers.
// ABOUTME: In-memory implementation with background eviction of idle keys.
package ratelimit

import (
	"sync"
	"time"
)

// Config is the per-operation-class threshold: at most Max attempts per Window.
type Config struct {
	Max    int
	Window time.Duration
}

// Decision is the outcome of a single counter check. ResetIn is how long until
// the current window expires; it is positive whenever Allowed is false.
type Decision struct {
	Allowed bool
	ResetIn time.Duration
}

// Limiter is the narrow interface the API layer depends on. The in-memory
// [Counter] satisfies it; a distributed counter store could replace it without
// touching the tier middleware.
type Limiter interface {
	// Check atomically increments the counter for key and reports whether the
	// attempt is within cfg. The check itself cannot fail — callers translate
	// Allowed=false into a throttling error.
	Check(key string, cfg Config) Decision
}

// window is the mutable state for one key: attempt count and window start.
type window struct {
	count   int
	startAt time.Time
}

// Counter is an in-memory fixed-window Limiter. Safe for concurrent use by
// parallel requests sharing the same key. Idle keys are evicted by a
// background loop so the map does not grow without bound.
type Counter struct {
	mu       sync.Mutex
	windows  map[string]*window
	lastSeen map[string]time.Time
	evictTTL time.Duration

	// now is swappable in tests to step through window boundaries.
	now func() time.Time
}

// defaultEvictTTL is used when the caller passes a non-positive TTL, which
// would otherwise panic the eviction ticker.
const defaultEvictTTL = 15 * time.Minute

// NewCounter creates a Counter and starts its eviction loop.
// evictTTL should comfortably exceed the longest configured window;
// non-positive values are clamped to defaultEvictTTL.
func NewCounter(evictTTL time.Duration) *Counter {
	if evictTTL <= 0 {
		evictTTL = defaultEvictTTL
	}
	c := &Counter{
		windows:  make(map[string]*window),
		lastSeen: make(map[string]time.Time),
		evictTTL: evictTTL,
		now:      time.Now,
	}
	go c.cleanupLoop()
	return c
}

// Check implements [Limiter]. The increment-and-compare runs under the mutex,
// so concurrent callers for the same key observe a consistent count.
func (c *Counter) Check(key string, cfg Config) Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	w, ok := c.windows[key]
	if !ok || now.Sub(w.startAt) >= cfg.Window {
		// New key or elapsed window: reset before counting this attempt.
		w = &window{startAt: now}
		c.windows[key] = w
	}
	w.count++
	c.lastSeen[key] = now

	resetIn := cfg.Window - now.Sub(w.startAt)
	if resetIn < 0 {
		resetIn = 0
	}
	return Decision{
		Allowed: w.count <= cfg.Max,
		ResetIn: resetIn,
	}
}

func (c *Counter) cleanupLoop() {
	ticker := time.NewTicker(c.evictTTL / 2)
	defer ticker.Stop()
	for range ticker.C {
		c.mu.Lock()
		cutoff := c.now().Add(-c.evictTTL)
		for key, last := range c.lastSeen {
			if last.Before(cutoff) {
				delete(c.windows, key)
				delete(c.lastSeen, key)
			}
		}
		c.mu.Unlock()
	}
}
