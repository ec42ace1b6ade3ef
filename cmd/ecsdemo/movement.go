package main

import (
	"time"

	"github.com/fishworks/ecs/internal/core/ecs"
)

type Position struct{ X, Y float64 }

func (*Position) ComponentKind() ecs.Kind { return "demo.position" }

type Velocity struct{ X, Y float64 }

func (*Velocity) ComponentKind() ecs.Kind { return "demo.velocity" }

// Frozen entities keep their position and never age.
type Frozen struct{}

func (*Frozen) ComponentKind() ecs.Kind { return "demo.frozen" }

// MovementSystem integrates velocity into position.
type MovementSystem struct {
	*ecs.SystemBase
	dt float64
}

func NewMovementSystem(w *ecs.World) (*MovementSystem, error) {
	s := &MovementSystem{}
	base, err := ecs.NewSystemBase(w, s,
		[]ecs.Kind{ecs.KindFor[*Position](), ecs.KindFor[*Velocity]()},
		[]ecs.Kind{ecs.KindFor[*Frozen]()},
	)
	if err != nil {
		return nil, err
	}
	s.SystemBase = base
	return s, nil
}

func (s *MovementSystem) Name() string { return "movement" }

func (s *MovementSystem) Update(dt time.Duration) { s.dt = dt.Seconds() }

func (s *MovementSystem) ProcessEntity(c *ecs.Composition) {
	p := ecs.MustField[*Position](c)
	v := ecs.MustField[*Velocity](c)
	p.X += v.X * s.dt
	p.Y += v.Y * s.dt
}
