package system

import (
	"time"

	"github.com/fishworks/ecs/internal/core/ecs"
	coresys "github.com/fishworks/ecs/internal/core/system"
	"go.uber.org/zap"
)

// CleanupSystem reaps entities whose Status says they are dead and flushes
// the world's deferred destruction queue. Phase 3 (Cleanup).
type CleanupSystem struct {
	*ecs.SystemBase
	log    *zap.Logger
	reaped int
}

func NewCleanupSystem(world *ecs.World, log *zap.Logger) (*CleanupSystem, error) {
	s := &CleanupSystem{log: log}
	base, err := ecs.NewSystemBase(world, s, []ecs.Kind{ecs.StatusKind}, nil)
	if err != nil {
		return nil, err
	}
	s.SystemBase = base
	return s, nil
}

func (s *CleanupSystem) Name() string         { return "cleanup" }
func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

// Update flushes entities queued with MarkForDestruction since the last tick.
func (s *CleanupSystem) Update(_ time.Duration) {
	s.World().FlushDestroyQueue()
}

// ProcessEntity destroys the entity once its Alive flag is cleared. The
// cache eviction is buffered until the pass ends.
func (s *CleanupSystem) ProcessEntity(c *ecs.Composition) {
	st, ok := ecs.Field[*ecs.Status](c)
	if !ok || st.Alive {
		return
	}
	if err := s.World().DestroyEntity(c.EntityID); err != nil {
		s.log.Warn("reap failed", zap.Uint32("entity", uint32(c.EntityID)), zap.Error(err))
		return
	}
	s.reaped++
	s.log.Debug("entity reaped", zap.Uint32("entity", uint32(c.EntityID)))
}

// Reaped returns how many dead entities this system has destroyed.
func (s *CleanupSystem) Reaped() int { return s.reaped }
