// FILE: registry.go
package log

import (
	"sync"
	"weak"

	"github.com/lumenforge/tagpipe/sink"
)

// Handle is the caller-owned strong reference to a registered sink.
// The dispatcher observes the sink only through a weak.Pointer derived
// from the same value — once every Handle referencing a sink is
// dropped and collected, the dispatcher's weak reference stops
// resolving and the entry is reaped on a later drain.
type Handle struct {
	s sink.Sink
}

// Sink returns the concrete sink this Handle owns, so a caller that
// went through one of the Dispatcher.Register* convenience
// constructors can still reach sink-specific methods (AddFilter,
// SetDiskThresholdFraction, ...) via a type assertion — e.g.
// h.Sink().(*sink.RotatingFileSink). Returns nil once Close has run.
func (h *Handle) Sink() sink.Sink {
	return h.s
}

// Close releases the sink immediately rather than waiting on the
// registry's lazy sweep. Safe to call multiple times.
func (h *Handle) Close() error {
	if h.s == nil {
		return nil
	}
	err := h.s.Close()
	h.s = nil
	return err
}

// registryEntry holds the registry's weak reference to one registered
// sink; the strong reference lives in the caller's Handle.
type registryEntry struct {
	weakRef weak.Pointer[sink.Sink]
}

// registry holds every live sink the dispatcher fans batches out to.
// Readers are the dispatcher's per-drain fan-out; writers are
// registration and the periodic expired-entry sweep, matching
// spec.md §5's reader/writer lock policy for the sink registry.
type registry struct {
	mu      sync.RWMutex
	entries []registryEntry
}

func newRegistry() *registry {
	return &registry{}
}

// register stores a weak reference to s and returns the caller's
// owning Handle.
func (r *registry) register(s sink.Sink) *Handle {
	h := &Handle{s: s}

	// weak.Make takes a pointer to the interface value, so the registry
	// observes liveness of the interface itself — i.e. of the Handle's
	// hold on it — not of the concrete sink struct in isolation.
	wp := weak.Make(&h.s)

	r.mu.Lock()
	r.entries = append(r.entries, registryEntry{weakRef: wp})
	r.mu.Unlock()

	return h
}

// liveSinks resolves every weak reference, returning the sinks that
// are still alive and the count of references found expired. Matches
// the dispatcher's per-drain "attempt upgrade" step.
func (r *registry) liveSinks() (live []sink.Sink, expired int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if ptr := e.weakRef.Value(); ptr != nil && *ptr != nil {
			live = append(live, *ptr)
		} else {
			expired++
		}
	}
	return live, expired
}

// sweep removes every entry whose weak reference no longer resolves.
func (r *registry) sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.entries[:0]
	for _, e := range r.entries {
		if ptr := e.weakRef.Value(); ptr != nil && *ptr != nil {
			kept = append(kept, e)
		}
	}
	r.entries = kept
}

// count reports how many entries (live or not yet swept) are registered.
func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
