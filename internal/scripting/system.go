package scripting

import (
	"time"

	"github.com/fishworks/ecs/internal/core/ecs"
	coresys "github.com/fishworks/ecs/internal/core/system"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// ScriptSystem is a host system whose behavior lives in Lua. Each tick it
// calls <name>_update(dt) with dt in seconds, then <name>_process(id) for
// every cached entity. Either function may be left undefined.
type ScriptSystem struct {
	*ecs.SystemBase
	engine *Engine
	name   string
	phase  coresys.Phase
	log    *zap.Logger

	update  *lua.LFunction
	process *lua.LFunction
}

func NewScriptSystem(engine *Engine, name string, interest, exclude []ecs.Kind) (*ScriptSystem, error) {
	s := &ScriptSystem{
		engine:  engine,
		name:    name,
		phase:   coresys.PhaseUpdate,
		log:     engine.log.With(zap.String("system", name)),
		update:  engine.function(name + "_update"),
		process: engine.function(name + "_process"),
	}
	base, err := ecs.NewSystemBase(engine.world, s, interest, exclude)
	if err != nil {
		return nil, err
	}
	s.SystemBase = base
	if s.update == nil && s.process == nil {
		s.log.Warn("script system has no lua functions")
	}
	return s, nil
}

func (s *ScriptSystem) Name() string { return s.name }

func (s *ScriptSystem) Phase() coresys.Phase { return s.phase }

// SetPhase moves the system to another phase. Call before AddSystem.
func (s *ScriptSystem) SetPhase(p coresys.Phase) { s.phase = p }

func (s *ScriptSystem) Update(dt time.Duration) {
	if s.update == nil {
		return
	}
	if err := s.engine.call(s.update, lua.LNumber(dt.Seconds())); err != nil {
		s.log.Error("lua update failed", zap.Error(err))
	}
}

func (s *ScriptSystem) ProcessEntity(c *ecs.Composition) {
	if s.process == nil {
		return
	}
	if err := s.engine.call(s.process, lua.LNumber(c.EntityID)); err != nil {
		s.log.Error("lua process failed", zap.Uint32("entity", uint32(c.EntityID)), zap.Error(err))
	}
}
