package system

import (
	"sort"
	"time"
)

type entry struct {
	sys    System
	active bool
}

// Runner executes active systems in phase order each tick. Systems sharing
// a phase run in registration order.
type Runner struct {
	systems []entry
	sorted  bool
}

func NewRunner() *Runner {
	return &Runner{
		systems: make([]entry, 0, 16),
	}
}

// Register adds a system. Inactive systems are kept but not driven until
// SetActive turns them on.
func (r *Runner) Register(s System, active bool) {
	r.systems = append(r.systems, entry{sys: s, active: active})
	r.sorted = false
}

// SetActive toggles whether s is driven. It reports false if s was never
// registered.
func (r *Runner) SetActive(s System, active bool) bool {
	for i := range r.systems {
		if r.systems[i].sys == s {
			r.systems[i].active = active
			return true
		}
	}
	return false
}

func (r *Runner) Tick(dt time.Duration) {
	r.ensureSorted()
	for _, e := range r.systems {
		if !e.active {
			continue
		}
		e.sys.Update(dt)
		e.sys.ProcessEntities()
	}
}

// TickPhase drives only the active systems of one phase.
func (r *Runner) TickPhase(phase Phase, dt time.Duration) {
	r.ensureSorted()
	for _, e := range r.systems {
		if e.active && PhaseOf(e.sys) == phase {
			e.sys.Update(dt)
			e.sys.ProcessEntities()
		}
	}
}

// Systems returns every registered system in execution order.
func (r *Runner) Systems() []System {
	r.ensureSorted()
	out := make([]System, len(r.systems))
	for i, e := range r.systems {
		out[i] = e.sys
	}
	return out
}

func (r *Runner) Len() int { return len(r.systems) }

func (r *Runner) ensureSorted() {
	if !r.sorted {
		sort.SliceStable(r.systems, func(i, j int) bool {
			return PhaseOf(r.systems[i].sys) < PhaseOf(r.systems[j].sys)
		})
		r.sorted = true
	}
}
