package ecs

import (
	"slices"

	"github.com/rotisserie/eris"
)

// EntityProcessor is the per-entity half of a host system.
type EntityProcessor interface {
	ProcessEntity(c *Composition)
}

type systemState uint8

const (
	stateConstructing systemState = iota
	stateIdle
	stateProcessing
)

// SystemBase keeps a cache of compositions for every published entity that
// matches a (required, excluded) signature, reconciled from World lifecycle
// events. Host systems embed *SystemBase, implement Update and
// ProcessEntity, and pass themselves as the processor:
//
//	type Movement struct{ *ecs.SystemBase }
//
//	func NewMovement(w *ecs.World) (*Movement, error) {
//		m := &Movement{}
//		base, err := ecs.NewSystemBase(w, m, []ecs.Kind{"position", "velocity"}, nil)
//		if err != nil {
//			return nil, err
//		}
//		m.SystemBase = base
//		return m, nil
//	}
//
// While ProcessEntities runs, admissions and evictions are buffered and
// applied after the pass: removals first, then insertions.
type SystemBase struct {
	world    *World
	proc     EntityProcessor
	layout   *Layout
	required Mask
	excluded Mask

	compositions map[EntityID]*Composition
	order        []EntityID // ascending, mirrors compositions

	state         systemState
	pendingAdd    map[EntityID]*Composition
	pendingRemove map[EntityID]struct{}
	detached      bool

	cancel func()
}

// NewSystemBase builds the signature from interest and exclude, subscribes
// to w's lifecycle events and admits every matching entity that is already
// published.
func NewSystemBase(w *World, proc EntityProcessor, interest []Kind, exclude []Kind) (*SystemBase, error) {
	if proc == nil {
		return nil, eris.New("ecs: system needs an entity processor")
	}
	required, err := w.Mask(interest...)
	if err != nil {
		return nil, eris.Wrap(err, "build system signature")
	}
	excluded, err := w.Mask(exclude...)
	if err != nil {
		return nil, eris.Wrap(err, "build system exclusion")
	}

	s := &SystemBase{
		world:         w,
		proc:          proc,
		layout:        newLayout(interest),
		required:      required,
		excluded:      excluded,
		compositions:  make(map[EntityID]*Composition),
		pendingAdd:    make(map[EntityID]*Composition),
		pendingRemove: make(map[EntityID]struct{}),
		state:         stateConstructing,
	}
	s.cancel = w.Observe(s)
	for _, id := range w.EntitiesMatching(required, excluded) {
		s.insert(id)
	}
	s.state = stateIdle
	return s, nil
}

func (s *SystemBase) World() *World    { return s.world }
func (s *SystemBase) Required() Mask   { return s.required }
func (s *SystemBase) Excluded() Mask   { return s.excluded }
func (s *SystemBase) Layout() *Layout  { return s.layout }
func (s *SystemBase) Len() int         { return len(s.order) }
func (s *SystemBase) Processing() bool { return s.state == stateProcessing }

func (s *SystemBase) Contains(id EntityID) bool {
	_, ok := s.compositions[id]
	return ok
}

// Composition returns the cached composition for id.
func (s *SystemBase) Composition(id EntityID) (*Composition, bool) {
	c, ok := s.compositions[id]
	return c, ok
}

// Compositions returns the cache in ascending entity order.
func (s *SystemBase) Compositions() []*Composition {
	out := make([]*Composition, len(s.order))
	for i, id := range s.order {
		out[i] = s.compositions[id]
	}
	return out
}

// Matches reports whether a bitmask satisfies this system's signature.
func (s *SystemBase) Matches(mask Mask) bool {
	return Matches(mask, s.required, s.excluded)
}

// ProcessEntities calls ProcessEntity once for every composition cached when
// the pass starts. Cache edits caused during the pass show up next pass.
func (s *SystemBase) ProcessEntities() {
	if s.state != stateIdle {
		return
	}
	s.state = stateProcessing
	defer s.finishPass()

	for _, id := range s.order {
		if s.detached {
			return
		}
		s.proc.ProcessEntity(s.compositions[id])
	}
}

func (s *SystemBase) finishPass() {
	s.state = stateIdle
	if s.detached {
		s.clearCache()
		return
	}
	for id := range s.pendingRemove {
		s.evict(id)
	}
	clear(s.pendingRemove)
	for id, c := range s.pendingAdd {
		s.admit(id, c)
	}
	clear(s.pendingAdd)
}

// Detach unsubscribes from lifecycle events and empties the cache. Called
// from ProcessEntity, it ends the pass after the current entity.
func (s *SystemBase) Detach() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.detached = true
	if s.state == stateProcessing {
		return
	}
	s.clearCache()
}

func (s *SystemBase) clearCache() {
	clear(s.compositions)
	s.order = s.order[:0]
	clear(s.pendingAdd)
	clear(s.pendingRemove)
}

// OnEntityEvent reconciles the cache with one lifecycle event.
func (s *SystemBase) OnEntityEvent(ev EntityEvent) {
	switch ev.Kind {
	case EntityAdded:
		if s.Matches(ev.Mask) {
			s.insert(ev.ID)
		}
	case EntityRemoved:
		if s.cached(ev.ID) {
			s.remove(ev.ID)
		}
	case EntityChanged:
		contains := s.cached(ev.ID)
		ofInterest := ev.Mask.Contains(s.required)
		exclude := Excluded(ev.Mask, s.excluded)
		switch {
		case contains && !ofInterest:
			s.remove(ev.ID)
		case contains && exclude:
			s.remove(ev.ID)
		case !contains && ofInterest && !exclude:
			s.insert(ev.ID)
		}
	}
}

// cached reports membership as it will be once buffered edits apply.
func (s *SystemBase) cached(id EntityID) bool {
	if _, ok := s.pendingAdd[id]; ok {
		return true
	}
	if _, ok := s.pendingRemove[id]; ok {
		return false
	}
	_, ok := s.compositions[id]
	return ok
}

func (s *SystemBase) insert(id EntityID) {
	c := s.materialize(id)
	if s.state == stateProcessing {
		s.pendingAdd[id] = c
		return
	}
	s.admit(id, c)
}

func (s *SystemBase) remove(id EntityID) {
	if s.state == stateProcessing {
		delete(s.pendingAdd, id)
		if _, live := s.compositions[id]; live {
			s.pendingRemove[id] = struct{}{}
		}
		return
	}
	s.evict(id)
}

func (s *SystemBase) admit(id EntityID, c *Composition) {
	if _, ok := s.compositions[id]; !ok {
		i, _ := slices.BinarySearch(s.order, id)
		s.order = slices.Insert(s.order, i, id)
	}
	s.compositions[id] = c
}

func (s *SystemBase) evict(id EntityID) {
	if _, ok := s.compositions[id]; !ok {
		return
	}
	delete(s.compositions, id)
	if i, found := slices.BinarySearch(s.order, id); found {
		s.order = slices.Delete(s.order, i, i+1)
	}
}

func (s *SystemBase) materialize(id EntityID) *Composition {
	c := &Composition{
		EntityID: id,
		layout:   s.layout,
		fields:   make([]Component, len(s.layout.kinds)),
	}
	for i, k := range s.layout.kinds {
		c.fields[i], _ = s.world.GetComponent(id, k)
	}
	return c
}
