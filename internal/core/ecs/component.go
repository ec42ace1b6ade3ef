package ecs

import "reflect"

// Kind names a component type. Two values with the same Kind occupy the
// same cell of an entity, so kinds must be unique across the process.
type Kind string

// Component is implemented by every data struct stored in the world.
//
// Declare ComponentKind on a pointer receiver that does not dereference the
// receiver, so KindFor can resolve the kind from a nil value:
//
//	func (*Position) ComponentKind() ecs.Kind { return "position" }
type Component interface {
	ComponentKind() Kind
}

// StatusKind is attached to every entity by CreateEntity.
const StatusKind Kind = "ecs.status"

// Status marks an entity as live. CleanupSystem destroys entities whose
// Alive flag has been cleared.
type Status struct {
	Alive bool
}

func (*Status) ComponentKind() Kind { return StatusKind }

// KindFor returns the kind declared by T without needing an instance.
func KindFor[T Component]() Kind {
	var zero T
	return zero.ComponentKind()
}

// kindOf validates an arbitrary value against the Component contract.
func kindOf(v any) (Kind, error) {
	if v == nil {
		return "", ErrNilComponent
	}
	c, ok := v.(Component)
	if !ok {
		return "", ErrNotComponent
	}
	if rv := reflect.ValueOf(c); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return "", ErrNilComponent
	}
	k := c.ComponentKind()
	if k == "" {
		return "", ErrInvalidKind
	}
	return k, nil
}
