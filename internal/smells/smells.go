// Package smells holds paired data-access patterns: a naive version that
// issues one query per row and a version that lets the database do the work.
// Both halves of a pair return the same logical result.
package smells

import (
	"time"

	"github.com/yevheniidehtiar/locust-love-django/internal/cache"
	"github.com/yevheniidehtiar/locust-love-django/internal/store"
)

// Smells runs the demonstrations against one store.
type Smells struct {
	store    *store.Store
	cache    cache.Cache
	cacheTTL time.Duration
	now      func() time.Time
}

// New builds the demonstrations. A nil cache selects an in-process one.
func New(st *store.Store, c cache.Cache, ttl time.Duration) *Smells {
	if c == nil {
		c = cache.NewMemoryCache()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Smells{store: st, cache: c, cacheTTL: ttl, now: time.Now}
}

// Today is the calendar day used for timelines and overdue checks.
func (s *Smells) Today() store.Date {
	return store.DateOf(s.now().UTC())
}

func timed(fn func() error) (time.Duration, error) {
	start := time.Now()
	err := fn()
	return time.Since(start), err
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
