package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/sotamapper/internal/mapdata"
	"github.com/cory-johannsen/sotamapper/internal/player"
)

// StateChangedHook is the Lua global called for every player state change.
const StateChangedHook = "on_player_state_changed"

// Manager owns one sandboxed LState loaded from a script directory and
// dispatches hooks to it.
//
// Manager is safe for concurrent use; calls into the VM are serialized.
type Manager struct {
	mu        sync.Mutex
	state     *lua.LState
	instLimit int
	logger    *zap.Logger

	// LookupMap backs engine.map_info. nil makes map_info return nil.
	LookupMap func(name string) (*mapdata.Record, bool)
}

// NewManager creates a Manager with no scripts loaded.
//
// Precondition: logger must be non-nil; instLimit >= 0 (0 uses
// DefaultInstructionLimit).
// Postcondition: Returns a non-nil Manager; panics on a nil logger.
func NewManager(logger *zap.Logger, instLimit int) *Manager {
	if logger == nil {
		panic("scripting.NewManager: logger must not be nil")
	}
	return &Manager{logger: logger, instLimit: instLimit}
}

// LoadDir creates a fresh VM, registers the engine module, then executes
// every *.lua file in dir in lexicographic order. The previous VM, if any, is
// replaced only when every file loads.
//
// Precondition: dir must be a readable directory.
// Postcondition: returns an error on a read or Lua load failure, leaving the
// previous VM in place.
func (m *Manager) LoadDir(dir string) error {
	L := NewSandboxedState()
	m.RegisterModules(L)

	entries, err := os.ReadDir(dir)
	if err != nil {
		L.Close()
		return fmt.Errorf("scripting: reading script dir %q: %w", dir, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	for _, path := range luaFiles {
		if err := RunLimited(L, m.instLimit, func() error { return L.DoFile(path) }); err != nil {
			L.Close()
			return fmt.Errorf("scripting: loading %q: %w", path, err)
		}
	}

	m.mu.Lock()
	old := m.state
	m.state = L
	m.mu.Unlock()
	if old != nil {
		old.Close()
	}
	m.logger.Info("scripts loaded", zap.String("dir", dir), zap.Int("files", len(luaFiles)))
	return nil
}

// CallHook calls the named Lua global function. Returns (LNil, nil) if no
// scripts are loaded or the hook is not defined. Lua runtime errors,
// including an exhausted instruction budget, are logged at Warn level and
// never propagated.
//
// Precondition: args must be valid lua.LValue instances.
// Postcondition: Returns the first return value of the hook, or LNil.
func (m *Manager) CallHook(hook string, args ...lua.LValue) (lua.LValue, error) {
	return m.callHook(hook, func(*lua.LState) []lua.LValue { return args }), nil
}

// OnPlayerStateChanged implements player.Notifier by calling
// on_player_state_changed(t) where t carries area, map, x, y and z, each nil
// when unknown.
func (m *Manager) OnPlayerStateChanged(s player.State) {
	m.callHook(StateChangedHook, func(L *lua.LState) []lua.LValue {
		return []lua.LValue{stateTable(L, s)}
	})
}

// callHook builds the arguments with the VM that will run the hook.
func (m *Manager) callHook(hook string, args func(L *lua.LState) []lua.LValue) lua.LValue {
	m.mu.Lock()
	defer m.mu.Unlock()

	L := m.state
	if L == nil {
		m.logger.Debug("scripting: no scripts loaded", zap.String("hook", hook))
		return lua.LNil
	}

	fn := L.GetGlobal(hook)
	if fn == lua.LNil {
		return lua.LNil
	}

	err := RunLimited(L, m.instLimit, func() error {
		return L.CallByParam(lua.P{
			Fn:      fn,
			NRet:    1,
			Protect: true,
		}, args(L)...)
	})
	if err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("hook", hook),
			zap.Error(err),
		)
		return lua.LNil
	}

	ret := L.Get(-1)
	L.Pop(1)
	return ret
}

func stateTable(L *lua.LState, s player.State) *lua.LTable {
	t := L.NewTable()
	if v, ok := s.AreaName.Get(); ok {
		L.SetField(t, "area", lua.LString(v))
	}
	if v, ok := s.MapName.Get(); ok {
		L.SetField(t, "map", lua.LString(v))
	}
	if loc, ok := s.Loc.Get(); ok {
		L.SetField(t, "x", lua.LNumber(loc.X))
		L.SetField(t, "y", lua.LNumber(loc.Y))
		L.SetField(t, "z", lua.LNumber(loc.Z))
	}
	return t
}

// Close releases the VM. Later hook calls are no-ops.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != nil {
		m.state.Close()
		m.state = nil
	}
}
