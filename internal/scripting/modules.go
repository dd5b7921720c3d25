package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cory-johannsen/sotamapper/internal/mapdata"
)

// RegisterModules registers the engine table into L:
//
//	engine.log(msg)         info log through zap
//	engine.warn(msg)        warn log through zap
//	engine.map_info(name)   {name, items, coord_system} or nil
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: engine global is defined in L.
func (m *Manager) RegisterModules(L *lua.LState) {
	engine := L.NewTable()
	L.SetField(engine, "log", L.NewFunction(m.luaLog(zap.InfoLevel)))
	L.SetField(engine, "warn", L.NewFunction(m.luaLog(zap.WarnLevel)))
	L.SetField(engine, "map_info", L.NewFunction(m.luaMapInfo))
	L.SetGlobal("engine", engine)
}

func (m *Manager) luaLog(level zapcore.Level) lua.LGFunction {
	return func(L *lua.LState) int {
		msg := L.CheckString(1)
		if ce := m.logger.Check(level, msg); ce != nil {
			ce.Write(zap.String("origin", "lua"))
		}
		return 0
	}
}

func (m *Manager) luaMapInfo(L *lua.LState) int {
	name := L.CheckString(1)
	if m.LookupMap == nil {
		L.Push(lua.LNil)
		return 1
	}
	rec, ok := m.LookupMap(name)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(mapTable(L, rec))
	return 1
}

func mapTable(L *lua.LState, rec *mapdata.Record) *lua.LTable {
	t := L.NewTable()
	L.SetField(t, "name", lua.LString(rec.Name))
	L.SetField(t, "items", lua.LNumber(rec.Len()))
	L.SetField(t, "coord_system", lua.LString(rec.CoordSystem.String()))
	return t
}
