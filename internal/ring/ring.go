// Package ring implements a bounded, newest-first ring buffer of recently
// played track metadata.
package ring

import (
	"sync"

	"github.com/jiftoo/radio/internal/probe"
)

// Ring is a fixed-capacity buffer of probe.Metadata, newest-first.
type Ring struct {
	mu       sync.RWMutex
	entries  []probe.Metadata
	capacity int
}

// New creates a Ring with the given capacity. Capacity must be >= 1.
func New(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{
		entries:  make([]probe.Metadata, 0, capacity),
		capacity: capacity,
	}
}

// Push prepends m to the ring, evicting the oldest entry if the ring is at
// capacity.
func (r *Ring) Push(m probe.Metadata) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, probe.Metadata{})
	copy(r.entries[1:], r.entries[:len(r.entries)-1])
	r.entries[0] = m

	if len(r.entries) > r.capacity {
		r.entries = r.entries[:r.capacity]
	}
}

// Snapshot returns a contiguous newest-first copy of the ring's contents.
func (r *Ring) Snapshot() []probe.Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]probe.Metadata, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of entries currently held.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
