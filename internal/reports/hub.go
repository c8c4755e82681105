package reports

import (
	"context"
	"sync"

	"github.com/yevheniidehtiar/locust-love-django/internal/profiling"
)

// Hub stores reports through its backend and fans every saved report out to
// live subscribers. Slow subscribers miss reports rather than block saves.
type Hub struct {
	Backend

	mu   sync.RWMutex
	subs map[chan profiling.Report]struct{}
}

// NewHub wraps b.
func NewHub(b Backend) *Hub {
	return &Hub{Backend: b, subs: make(map[chan profiling.Report]struct{})}
}

// Save persists r and then publishes it.
func (h *Hub) Save(ctx context.Context, r profiling.Report) error {
	if err := h.Backend.Save(ctx, r); err != nil {
		return err
	}
	h.publish(r)
	return nil
}

// Subscribe returns a channel of saved reports and a func that unsubscribes
// and closes it.
func (h *Hub) Subscribe() (<-chan profiling.Report, func()) {
	ch := make(chan profiling.Report, 64)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers is the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) publish(r profiling.Report) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- r:
		default:
		}
	}
}
