package notify

import (
	"context"
	"storefront-payments/internal/dto"
	"sync"
)

// Notifier delivers a finalize outcome to sessions waiting on a capture id.
type Notifier interface {
	Subscribe(key string) (<-chan dto.FinalizeEvent, func())
	Notify(ctx context.Context, key string, event dto.FinalizeEvent) error
}

// Registry maps a capture id to its waiting subscribers. Notify delivers to
// every waiter of the key at most once and forgets them.
type Registry struct {
	mu      sync.Mutex
	next    uint64
	waiters map[string]map[uint64]chan dto.FinalizeEvent
}

func NewRegistry() *Registry {
	return &Registry{
		waiters: make(map[string]map[uint64]chan dto.FinalizeEvent),
	}
}

// Subscribe registers a waiter. The returned channel yields at most one event
// and is closed after it; cancel is safe to call at any time, more than once.
func (r *Registry) Subscribe(key string) (<-chan dto.FinalizeEvent, func()) {
	ch := make(chan dto.FinalizeEvent, 1)

	r.mu.Lock()
	id := r.next
	r.next++
	set, ok := r.waiters[key]
	if !ok {
		set = make(map[uint64]chan dto.FinalizeEvent)
		r.waiters[key] = set
	}
	set[id] = ch
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		set, ok := r.waiters[key]
		if !ok {
			return
		}
		delete(set, id)
		if len(set) == 0 {
			delete(r.waiters, key)
		}
	}
	return ch, cancel
}

func (r *Registry) Notify(_ context.Context, key string, event dto.FinalizeEvent) error {
	r.mu.Lock()
	set := r.waiters[key]
	delete(r.waiters, key)
	r.mu.Unlock()

	// each channel left the map under the lock, so it gets exactly one send
	for _, ch := range set {
		ch <- event
		close(ch)
	}
	return nil
}

// Waiting returns the number of subscribers registered for key.
func (r *Registry) Waiting(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waiters[key])
}
