package cbvtrc

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// State is the lifecycle state of a registry.
type State int

const (
	// StateUnattached registries are not associated with a request, and
	// reject inserts.
	StateUnattached State = iota

	// StateActive registries accept inserts.
	StateActive

	// StateFinalized registries are read-only.
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateUnattached:
		return "unattached"
	case StateActive:
		return "active"
	case StateFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// DefaultStart is the order assigned to the first entry of a registry.
const DefaultStart = 1

// Registry is an ordered collection of entries for a single request, keyed by
// call order. It's safe for concurrent use, although calls within a request
// are expected to happen on a single goroutine.
type Registry struct {
	mtx     sync.Mutex
	start   int
	state   State
	entries map[int]*Entry
	open    int
}

// NewRegistry returns an unattached registry whose first entry will have the
// given order.
func NewRegistry(start int) *Registry {
	return &Registry{
		start:   start,
		entries: map[int]*Entry{},
	}
}

// Start returns the order of the first entry.
func (r *Registry) Start() int {
	return r.start // immutable
}

// Attach transitions an unattached registry to active. It's a no-op in any
// other state.
func (r *Registry) Attach() {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if r.state == StateUnattached {
		r.state = StateActive
	}
}

// Finalize makes the registry read-only.
func (r *Registry) Finalize() {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.state = StateFinalized
}

// State returns the current lifecycle state.
func (r *Registry) State() State {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.state
}

// Insert the entry under its order. It returns false, and does nothing, if the
// registry isn't active, or already has an entry with the same order.
func (r *Registry) Insert(e *Entry) bool {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.insert(e)
}

func (r *Registry) insert(e *Entry) bool {
	if r.state != StateActive {
		return false
	}
	if _, ok := r.entries[e.Order]; ok {
		return false
	}
	r.entries[e.Order] = e
	return true
}

// Begin records the start of a call. The entry gets the next order, and the
// number of open calls as its depth. It's inserted, its parents are resolved,
// and it becomes an open call. Begin returns false, and does nothing, if the
// entry can't be inserted. Every successful Begin must be paired with End.
//
// Open calls are counted per registry, so a view built during another view's
// call nests beneath that call.
func (r *Registry) Begin(e *Entry) bool {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	order := r.start + len(r.entries)
	if _, ok := r.entries[order]; ok || r.state != StateActive {
		return false
	}

	e.Order, e.Depth = order, r.open
	r.entries[order] = e
	r.resolveParents(order)
	r.open++
	return true
}

// End closes the most recently begun call.
func (r *Registry) End() {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if r.open > 0 {
		r.open--
	}
}

// Open returns the number of calls which have begun and not yet ended.
func (r *Registry) Open() int {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.open
}

// Get returns the entry with the given order, if it exists.
func (r *Registry) Get(order int) (*Entry, bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	e, ok := r.entries[order]
	return e, ok
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return len(r.entries)
}

// Entries returns all entries in ascending order.
func (r *Registry) Entries() []*Entry {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	entries := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Order < entries[j].Order
	})

	return entries
}

// ResolveParents computes the parent chain of the entry with the given order,
// and marks its direct parent, if any, as a parent. Entries must be resolved in
// ascending order, as each resolution depends on the chains of earlier entries.
//
// If the previous entry is shallower, it is the direct parent. Otherwise, the
// nearest earlier entry which is already a parent and is shallower than the
// current entry is the direct parent. If neither exists, the entry is a root.
func (r *Registry) ResolveParents(order int) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.resolveParents(order)
}

func (r *Registry) resolveParents(order int) {
	current, ok := r.entries[order]
	if !ok || order <= r.start {
		return
	}

	prior, ok := r.entries[order-1]
	if !ok {
		return // prior call wasn't logged, treat as root
	}

	if prior.Depth < current.Depth {
		prior.IsParent = true
		current.ParentChain = chainOf(prior)
		return
	}

	for o := order - 1; o >= r.start; o-- {
		candidate, ok := r.entries[o]
		if !ok {
			continue
		}
		if candidate.IsParent && candidate.Depth < current.Depth {
			current.ParentChain = chainOf(candidate)
			return
		}
	}
}

func chainOf(parent *Entry) []string {
	chain := make([]string, 0, len(parent.ParentChain)+1)
	chain = append(chain, parent.ParentChain...)
	chain = append(chain, parent.ID())
	return chain
}

// MarshalJSON renders the registry as its ordered entries.
func (r *Registry) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Entries())
}

// UnmarshalJSON decodes a list of entries into a finalized registry.
func (r *Registry) UnmarshalJSON(data []byte) error {
	var entries []*Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}

	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.entries = make(map[int]*Entry, len(entries))
	r.start = DefaultStart
	r.state = StateFinalized
	for i, e := range entries {
		if i == 0 {
			r.start = e.Order
		}
		r.entries[e.Order] = e
	}

	return nil
}
