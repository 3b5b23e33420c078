package circuit

import (
	"sort"
	"sync"
	"time"
)

// Registry owns one Circuit per sending identity.
//
// Circuits are created lazily on first reference and never evicted; a reset
// closes a circuit but keeps it registered. State is process-local: a
// restart silently returns every identity to closed, and multi-instance
// deployments track independent circuits per instance. That limitation is
// accepted; do not add cross-process sharing here without a shared store.
type Registry struct {
	mu       sync.Mutex
	circuits map[string]*Circuit
	opts     Options

	// now is injectable for deterministic tests; propagated to new circuits.
	now func() time.Time
}

func NewRegistry(opts Options) *Registry {
	return &Registry{
		circuits: make(map[string]*Circuit),
		opts:     opts,
		now:      time.Now,
	}
}

// GetOrCreate returns the circuit for identityID, creating it on first use.
// The label is only applied at creation time.
func (r *Registry) GetOrCreate(identityID, label string) *Circuit {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getOrCreateLocked(identityID, label)
}

func (r *Registry) getOrCreateLocked(identityID, label string) *Circuit {
	if c, ok := r.circuits[identityID]; ok {
		return c
	}
	c := New(identityID, label, r.opts)
	c.now = r.now
	r.circuits[identityID] = c
	return c
}

// CanUse reports whether the identity is currently eligible for an attempt.
func (r *Registry) CanUse(identityID string) bool {
	return r.GetOrCreate(identityID, "").CanExecute()
}

func (r *Registry) RegisterSuccess(identityID string) {
	r.GetOrCreate(identityID, "").RegisterSuccess()
}

func (r *Registry) RegisterFailure(identityID string, code int, message string) {
	r.GetOrCreate(identityID, "").RegisterFailure(code, message)
}

// AllStatuses returns a snapshot of every known circuit keyed by identity.
func (r *Registry) AllStatuses() map[string]Status {
	r.mu.Lock()
	circuits := make([]*Circuit, 0, len(r.circuits))
	for _, c := range r.circuits {
		circuits = append(circuits, c)
	}
	r.mu.Unlock()

	// Snapshot outside the registry lock; each circuit has its own mutex.
	out := make(map[string]Status, len(circuits))
	for _, c := range circuits {
		s := c.Status()
		out[s.IdentityID] = s
	}
	return out
}

// OpenIdentities lists identities whose circuit is currently open, sorted
// for stable operator output.
func (r *Registry) OpenIdentities() []string {
	var out []string
	for id, s := range r.AllStatuses() {
		if s.State == StateOpen {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Reset closes the circuit for identityID. Returns false if the identity
// has never been referenced.
func (r *Registry) Reset(identityID string) bool {
	r.mu.Lock()
	c, ok := r.circuits[identityID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	c.Reset()
	return true
}

// ResetAll closes every registered circuit and returns how many were reset.
func (r *Registry) ResetAll() int {
	r.mu.Lock()
	circuits := make([]*Circuit, 0, len(r.circuits))
	for _, c := range r.circuits {
		circuits = append(circuits, c)
	}
	r.mu.Unlock()

	for _, c := range circuits {
		c.Reset()
	}
	return len(circuits)
}
