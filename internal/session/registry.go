package session

import (
	"errors"
	"sync"
)

// ErrNotFound is returned when a session id does not resolve.
var ErrNotFound = errors.New("session not found")

// ErrEnded is returned when frames or control updates arrive for a session
// that has already been finalized.
var ErrEnded = errors.New("session has ended")

// Registry is the concurrency-safe owned table of sessions: insert on start,
// mark ended on finalize. Ended sessions keep only their terminal summary;
// all worker resources are released before the ended flag is set.
type Registry struct {
	mu    sync.RWMutex
	store Store
}

// NewRegistry constructs a registry backed by a default in-memory store.
func NewRegistry() *Registry {
	return NewRegistryWithStore(NewInMemoryStore())
}

// NewRegistryWithStore constructs a registry that uses the given Store.
func NewRegistryWithStore(store Store) *Registry {
	return &Registry{store: store}
}

// Insert registers a newly started session.
func (r *Registry) Insert(st *State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store.Set(st)
}

// Resolve returns the session state for id.
func (r *Registry) Resolve(id ID) (*State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.Get(id)
}

// MarkEnded records the terminal summary and drops the worker wiring.
// Caller must have already stopped and drained the session's worker.
func (r *Registry) MarkEnded(id ID, summary *Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.store.Get(id)
	if !ok || st.Ended {
		return
	}
	st.Ended = true
	st.EndedAt = summary.EndedAt
	st.Summary = summary
	st.runtime = nil
}

// Terminal returns the frozen summary of an ended session. The second
// return is false while the session is still active or unknown.
func (r *Registry) Terminal(id ID) (*Summary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.store.Get(id)
	if !ok || !st.Ended {
		return nil, false
	}
	return st.Summary, true
}

// Runtime returns the session's worker wiring. ok is false for unknown ids;
// ended sessions return a nil runtime.
func (r *Registry) Runtime(id ID) (rt *runtime, ok, ended bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, found := r.store.Get(id)
	if !found {
		return nil, false, false
	}
	return st.runtime, true, st.Ended
}

// Snapshot returns the live view of a session.
func (r *Registry) Snapshot(id ID) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.store.Get(id)
	if !ok {
		return Snapshot{}, false
	}
	return snapshotLocked(st), true
}

// List returns live views of every known session.
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.store.ListIDs()
	out := make([]Snapshot, 0, len(ids))
	for _, id := range ids {
		if st, ok := r.store.Get(id); ok {
			out = append(out, snapshotLocked(st))
		}
	}
	return out
}

// ActiveCount returns the number of sessions that have not ended. Used for
// metrics.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, id := range r.store.ListIDs() {
		if st, ok := r.store.Get(id); ok && !st.Ended {
			n++
		}
	}
	return n
}

func snapshotLocked(st *State) Snapshot {
	return Snapshot{
		SessionID: string(st.ID),
		Exercise:  string(st.Exercise),
		StartedAt: st.StartedAt,
		Ended:     st.Ended,
		Metrics:   st.Pipeline.Snapshot(),
	}
}
