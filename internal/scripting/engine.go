package scripting

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/fishworks/ecs/internal/core/ecs"
	"github.com/fishworks/ecs/internal/core/event"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM shared by every ScriptSystem of a
// world. Single-goroutine access only (simulation loop).
type Engine struct {
	vm    *lua.LState
	world *ecs.World
	log   *zap.Logger
}

// NewEngine creates a Lua engine bound to w, installs the world API and
// loads every .lua file in scriptsDir. A missing directory loads nothing.
func NewEngine(scriptsDir string, w *ecs.World, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState()
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, world: w, log: log}
	e.installAPI()

	if err := e.loadDir(scriptsDir); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load scripts: %w", err)
	}
	return e, nil
}

func (e *Engine) Close() { e.vm.Close() }

// DoString runs a chunk of Lua source in the engine's VM.
func (e *Engine) DoString(src string) error {
	return e.vm.DoString(src)
}

// loadDir loads all .lua files in a directory in name order.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// function returns the global Lua function name, or nil if it is not
// defined.
func (e *Engine) function(name string) *lua.LFunction {
	fn, _ := e.vm.GetGlobal(name).(*lua.LFunction)
	return fn
}

func (e *Engine) call(fn *lua.LFunction, args ...lua.LValue) error {
	return e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, args...)
}

// installAPI exposes the world to scripts:
//
//	has_component(id, kind) -> bool
//	remove_component(id, kind)
//	kill(id) -> bool
//	destroy_entity(id)
//	send_message(kind, body)
//	log(msg)
func (e *Engine) installAPI() {
	e.vm.SetGlobal("has_component", e.vm.NewFunction(e.luaHasComponent))
	e.vm.SetGlobal("remove_component", e.vm.NewFunction(e.luaRemoveComponent))
	e.vm.SetGlobal("kill", e.vm.NewFunction(e.luaKill))
	e.vm.SetGlobal("destroy_entity", e.vm.NewFunction(e.luaDestroyEntity))
	e.vm.SetGlobal("send_message", e.vm.NewFunction(e.luaSendMessage))
	e.vm.SetGlobal("log", e.vm.NewFunction(e.luaLog))
}

func checkEntity(L *lua.LState, n int) ecs.EntityID {
	v := L.CheckInt64(n)
	if v < 0 || v > math.MaxUint32 {
		L.ArgError(n, "entity id out of range")
	}
	return ecs.EntityID(v)
}

func (e *Engine) luaHasComponent(L *lua.LState) int {
	id := checkEntity(L, 1)
	kind := ecs.Kind(L.CheckString(2))
	L.Push(lua.LBool(e.world.Has(id, kind)))
	return 1
}

func (e *Engine) luaRemoveComponent(L *lua.LState) int {
	id := checkEntity(L, 1)
	kind := ecs.Kind(L.CheckString(2))
	if err := e.world.RemoveComponent(id, kind); err != nil {
		L.RaiseError("remove_component: %v", err)
	}
	return 0
}

func (e *Engine) luaKill(L *lua.LState) int {
	L.Push(lua.LBool(e.world.Kill(checkEntity(L, 1))))
	return 1
}

func (e *Engine) luaDestroyEntity(L *lua.LState) int {
	if err := e.world.DestroyEntity(checkEntity(L, 1)); err != nil {
		L.RaiseError("destroy_entity: %v", err)
	}
	return 0
}

func (e *Engine) luaSendMessage(L *lua.LState) int {
	kind := L.CheckString(1)
	body := L.OptString(2, "")
	e.world.SendMessage(event.NewText(kind, body))
	return 0
}

func (e *Engine) luaLog(L *lua.LState) int {
	e.log.Info("lua", zap.String("msg", L.CheckString(1)))
	return 0
}
