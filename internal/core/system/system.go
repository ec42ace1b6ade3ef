package system

import "time"

// Phase defines execution ordering within a single tick. Systems that do not
// declare a phase run in PhaseUpdate.
type Phase int

const (
	PhasePreUpdate  Phase = iota // 0: react to last tick's messages
	PhaseUpdate                  // 1: simulation logic
	PhasePostUpdate              // 2: derived state
	PhaseCleanup                 // 3: destroy dead entities
)

// System is driven once per tick: Update first, then ProcessEntities.
type System interface {
	Update(dt time.Duration)
	ProcessEntities()
}

// Phased is implemented by systems that need a phase other than PhaseUpdate.
type Phased interface {
	Phase() Phase
}

// PhaseOf returns the phase s runs in.
func PhaseOf(s System) Phase {
	if p, ok := s.(Phased); ok {
		return p.Phase()
	}
	return PhaseUpdate
}
