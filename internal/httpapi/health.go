package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"
)

type healthEntry struct {
	err       error
	checkedAt time.Time
}

// healthCache remembers ping results for ttl so load balancer health checks do not
// each hit the store.
type healthCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]healthEntry
}

func newHealthCache(ttl time.Duration, now func() time.Time) *healthCache {
	return &healthCache{ttl: ttl, now: now, entries: make(map[string]healthEntry)}
}

// check returns the cached result for name, running ping when it is stale.
// Concurrent callers with a stale entry may ping more than once.
func (c *healthCache) check(ctx context.Context, name string, ping func(context.Context) error) error {
	now := c.now()
	c.mu.Lock()
	e, ok := c.entries[name]
	c.mu.Unlock()
	if ok && now.Sub(e.checkedAt) < c.ttl {
		return e.err
	}

	err := ping(ctx)
	c.mu.Lock()
	c.entries[name] = healthEntry{err: err, checkedAt: now}
	c.mu.Unlock()
	return err
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.health.check(ctx, "kv", s.gw.Ping); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "kv": "down"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "kv": "up"})
}
