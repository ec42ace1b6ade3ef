package ecs

import (
	"math/bits"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/multierr"
)

// Mask is a set of component kinds, one bit per kind.
type Mask uint64

// MaxKinds is the number of kinds a Registry can hold. The top bit is never
// assigned so InvalidMask cannot collide with a real entity bitmask.
const MaxKinds = 63

// InvalidMask is returned by bitmask queries on ids outside the table.
const InvalidMask Mask = ^Mask(0)

// Valid reports whether m is a real bitmask rather than InvalidMask.
func (m Mask) Valid() bool { return m != InvalidMask }

// Contains reports whether every bit of other is set in m.
func (m Mask) Contains(other Mask) bool { return m&other == other }

// Count returns the number of kinds in m.
func (m Mask) Count() int { return bits.OnesCount64(uint64(m)) }

// Registry assigns each distinct Kind the next unused power of two. Masks
// never change once assigned and are never reused. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	masks map[Kind]Mask
	kinds []Kind // bit order
}

func NewRegistry() *Registry {
	r := &Registry{
		masks: make(map[Kind]Mask, MaxKinds),
		kinds: make([]Kind, 0, MaxKinds),
	}
	// Status always owns bit 0 so every registry agrees on it.
	if _, err := r.MaskOf(StatusKind); err != nil {
		panic(err)
	}
	return r
}

var defaultRegistry = NewRegistry()

// DefaultRegistry is the process-wide registry used by worlds that are not
// given their own. It lives for the whole process.
func DefaultRegistry() *Registry { return defaultRegistry }

// MaskOf returns the mask for kind, assigning one on first use.
func (r *Registry) MaskOf(kind Kind) (Mask, error) {
	if kind == "" {
		return 0, ErrInvalidKind
	}
	r.mu.RLock()
	m, ok := r.masks[kind]
	r.mu.RUnlock()
	if ok {
		return m, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.masks[kind]; ok {
		return m, nil
	}
	if len(r.kinds) >= MaxKinds {
		return 0, eris.Wrapf(ErrKindCapacity, "register %q: %d kinds already assigned", kind, len(r.kinds))
	}
	m = Mask(1) << uint(len(r.kinds))
	r.masks[kind] = m
	r.kinds = append(r.kinds, kind)
	return m, nil
}

// Lookup returns the mask for kind without assigning one.
func (r *Registry) Lookup(kind Kind) (Mask, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.masks[kind]
	return m, ok
}

// Register assigns masks to kinds in the given order. Registering every
// known kind at startup keeps mask values identical across runs no matter
// which goroutine touches a kind first. Every failing kind is reported.
func (r *Registry) Register(kinds ...Kind) error {
	var err error
	for _, k := range kinds {
		if _, kerr := r.MaskOf(k); kerr != nil {
			err = multierr.Append(err, eris.Wrapf(kerr, "register kind %q", k))
		}
	}
	return err
}

// Combine ORs the masks of kinds together, assigning as needed.
func (r *Registry) Combine(kinds ...Kind) (Mask, error) {
	var out Mask
	for _, k := range kinds {
		m, err := r.MaskOf(k)
		if err != nil {
			return 0, err
		}
		out |= m
	}
	return out, nil
}

// Kinds returns the registered kinds in bit order.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Kind, len(r.kinds))
	copy(out, r.kinds)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.kinds)
}

// MaskOf resolves kind against the default registry.
func MaskOf(kind Kind) (Mask, error) {
	return defaultRegistry.MaskOf(kind)
}

// MaskFor resolves the kind declared by T against the default registry.
func MaskFor[T Component]() (Mask, error) {
	return defaultRegistry.MaskOf(KindFor[T]())
}

// rowOf converts a single-kind mask to its table row.
func rowOf(m Mask) int {
	return bits.TrailingZeros64(uint64(m))
}
