package ecs

// Layout is the field order shared by every composition of one system,
// built once from the system's interest kinds.
type Layout struct {
	kinds []Kind
	index map[Kind]int
}

func newLayout(kinds []Kind) *Layout {
	l := &Layout{
		kinds: make([]Kind, 0, len(kinds)),
		index: make(map[Kind]int, len(kinds)),
	}
	for _, k := range kinds {
		if _, dup := l.index[k]; dup {
			continue
		}
		l.index[k] = len(l.kinds)
		l.kinds = append(l.kinds, k)
	}
	return l
}

func (l *Layout) Kinds() []Kind { return l.kinds }

// Composition joins an entity with references to its components of
// interest, captured when the system admitted the entity. Mutating a
// referenced component is visible here; replacing or detaching it is not
// until the system reconciles the entity again.
type Composition struct {
	EntityID EntityID
	layout   *Layout
	fields   []Component
}

// Get returns the component captured for kind.
func (c *Composition) Get(kind Kind) (Component, bool) {
	i, ok := c.layout.index[kind]
	if !ok || c.fields[i] == nil {
		return nil, false
	}
	return c.fields[i], true
}

// At returns the component at position i of the layout.
func (c *Composition) At(i int) Component { return c.fields[i] }

func (c *Composition) Kinds() []Kind { return c.layout.kinds }

// Field returns the component of type T captured in c.
func Field[T Component](c *Composition) (T, bool) {
	var zero T
	v, ok := c.Get(KindFor[T]())
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// MustField is Field for kinds the system requires, where absence is a bug.
func MustField[T Component](c *Composition) T {
	v, ok := Field[T](c)
	if !ok {
		panic("ecs: composition of entity has no " + string(KindFor[T]()))
	}
	return v
}
