package ecs

import "github.com/rotisserie/eris"

var (
	ErrInvalidEntity = eris.New("ecs: entity id out of range")
	ErrNilComponent  = eris.New("ecs: component is nil")
	ErrInvalidKind   = eris.New("ecs: invalid component kind")
	ErrNotComponent  = eris.New("ecs: value does not implement Component")
	ErrKindCapacity  = eris.New("ecs: component kind capacity exceeded")
)
