package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/terra-clan/studyhub/internal/kv"
	"github.com/terra-clan/studyhub/internal/metrics"
)

// DefaultIdleTTL is how long an unused, fully persisted store stays loaded
const DefaultIdleTTL = 30 * time.Minute

// Registry hands out one Store per learner, loading it on first use
type Registry struct {
	mu        sync.RWMutex
	kv        kv.Store
	observers []Observer
	stores    map[string]*Store
	idleTTL   time.Duration
	now       func() time.Time
}

// NewRegistry creates a registry backed by store
func NewRegistry(store kv.Store, observers ...Observer) *Registry {
	return &Registry{
		kv:        store,
		observers: observers,
		stores:    make(map[string]*Store),
		idleTTL:   DefaultIdleTTL,
		now:       time.Now,
	}
}

// SetIdleTTL changes how long clean stores stay loaded; ttl <= 0 keeps
// the current value
func (r *Registry) SetIdleTTL(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	r.mu.Lock()
	r.idleTTL = ttl
	r.mu.Unlock()
}

// Get returns the learner's store, opening it from the kv store if needed
func (r *Registry) Get(ctx context.Context, learnerID string) (*Store, error) {
	r.mu.RLock()
	s, ok := r.stores[learnerID]
	r.mu.RUnlock()
	if ok {
		s.touch()
		return s, nil
	}

	loaded, err := Open(ctx, learnerID, r.kv, r.observers...)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Another request may have opened it meanwhile; keep the first one.
	if s, ok := r.stores[learnerID]; ok {
		s.touch()
		return s, nil
	}
	loaded.now = r.now
	loaded.lastUsed = r.now()
	r.stores[learnerID] = loaded
	metrics.LoadedLearners.Set(float64(len(r.stores)))
	return loaded, nil
}

// Evict unloads stores that are fully persisted and unused for longer than
// the idle TTL. Dirty stores stay so FlushAll can still retry them. An
// evicted learner is reloaded from the kv store on the next Get.
func (r *Registry) Evict() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.idleTTL)
	evicted := 0
	for id, s := range r.stores {
		if s.idle(cutoff) {
			delete(r.stores, id)
			evicted++
		}
	}
	metrics.LoadedLearners.Set(float64(len(r.stores)))

	if evicted > 0 {
		slog.Debug("evicted idle progress stores", "count", evicted, "remaining", len(r.stores))
	}
	return evicted
}

// Len returns the number of loaded learners
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stores)
}

// Dirty returns the stores with writes still pending
func (r *Registry) Dirty() []*Store {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var dirty []*Store
	for _, s := range r.stores {
		if s.Dirty() {
			dirty = append(dirty, s)
		}
	}
	return dirty
}

// FlushAll retries every dirty store and reports how many succeeded and
// how many are still dirty
func (r *Registry) FlushAll(ctx context.Context) (flushed, failed int) {
	for _, s := range r.Dirty() {
		if err := s.Flush(ctx); err != nil {
			failed++
			continue
		}
		flushed++
	}
	metrics.DirtyStores.Set(float64(failed))
	return flushed, failed
}

// Ping checks the backing kv store
func (r *Registry) Ping(ctx context.Context) error {
	return r.kv.Ping(ctx)
}
