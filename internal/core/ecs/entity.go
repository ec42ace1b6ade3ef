package ecs

// EntityID names a column of the entity table. It carries no generation:
// a destroyed slot is handed out again by the next CreateEntity.
type EntityID uint32

// Entity is a chaining handle over a World. The first failing call is kept
// and every later call on the handle becomes a no-op; check Err once the
// chain is done.
//
//	e := w.CreateEntity().
//		AddComponent(&Position{}).
//		AddComponent(&Velocity{X: 1}).
//		AddToWorld()
//	if err := e.Err(); err != nil { ... }
type Entity struct {
	ID    EntityID
	world *World
	err   error
}

func (e *Entity) AddComponent(c Component) *Entity {
	if e.err == nil {
		e.err = e.world.AddComponent(e.ID, c)
	}
	return e
}

func (e *Entity) RemoveComponent(kind Kind) *Entity {
	if e.err == nil {
		e.err = e.world.RemoveComponent(e.ID, kind)
	}
	return e
}

// AddToWorld publishes the entity so systems can see it.
func (e *Entity) AddToWorld() *Entity {
	if e.err == nil {
		e.err = e.world.AddToWorld(e.ID)
	}
	return e
}

func (e *Entity) Destroy() error {
	if e.err != nil {
		return e.err
	}
	return e.world.DestroyEntity(e.ID)
}

func (e *Entity) Err() error { return e.err }

func (e *Entity) Bitmask() Mask { return e.world.EntityBitmask(e.ID) }
