// Package scripting runs user Lua hooks against player state changes in a
// sandboxed GopherLua VM.
package scripting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// DefaultInstructionLimit is the maximum number of Lua opcodes allowed per
// script load or hook call when no limit is configured.
const DefaultInstructionLimit = 100_000

// MaxRepBytes caps the result of string.rep inside the sandbox.
const MaxRepBytes = 1 << 20

// ErrInstructionLimit is returned by RunLimited when the call ran out of
// instructions.
var ErrInstructionLimit = errors.New("lua instruction limit exceeded")

// strippedGlobals are base library functions that load code, reach outside
// the sandbox, or alter function environments.
var strippedGlobals = []string{
	"dofile", "loadfile", "load", "loadstring",
	"require", "module", "collectgarbage",
	"setfenv", "getfenv", "newproxy",
}

// opBudget is a context whose Done is polled by GopherLua once per opcode.
// It cancels itself when the budget reaches zero.
type opBudget struct {
	context.Context
	cancel context.CancelFunc
	left   atomic.Int64
}

func newOpBudget(limit int) *opBudget {
	ctx, cancel := context.WithCancel(context.Background())
	b := &opBudget{Context: ctx, cancel: cancel}
	b.left.Store(int64(limit))
	return b
}

func (b *opBudget) Done() <-chan struct{} {
	if b.left.Add(-1) <= 0 {
		b.cancel()
	}
	return b.Context.Done()
}

func (b *opBudget) exhausted() bool {
	return b.left.Load() <= 0
}

// NewSandboxedState creates a GopherLua LState with only the base, table,
// string and math libraries, without strippedGlobals, and with a bounded
// string.rep.
//
// Postcondition: Returns a non-nil LState without an instruction budget;
// run code through RunLimited. The caller must call L.Close() when done.
func NewSandboxedState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range strippedGlobals {
		L.SetGlobal(name, lua.LNil)
	}
	if str, ok := L.GetGlobal("string").(*lua.LTable); ok {
		L.SetField(str, "rep", L.NewFunction(boundedRep))
	}
	return L
}

func boundedRep(L *lua.LState) int {
	s := L.CheckString(1)
	n := L.CheckInt(2)
	if n <= 0 || s == "" {
		L.Push(lua.LString(""))
		return 1
	}
	if len(s) > MaxRepBytes/n {
		L.RaiseError("string.rep: result exceeds %d bytes", MaxRepBytes)
		return 0
	}
	L.Push(lua.LString(strings.Repeat(s, n)))
	return 1
}

// RunLimited runs fn with L limited to at most instLimit opcodes. The budget
// is fresh for every call, so a long-lived VM never exhausts it across calls.
//
// Precondition: instLimit >= 0; 0 uses DefaultInstructionLimit.
// Postcondition: L has no context attached when RunLimited returns; an
// exhausted budget yields an error wrapping ErrInstructionLimit.
func RunLimited(L *lua.LState, instLimit int, fn func() error) error {
	if instLimit <= 0 {
		instLimit = DefaultInstructionLimit
	}
	budget := newOpBudget(instLimit)
	defer budget.cancel()
	L.SetContext(budget)
	defer L.RemoveContext()

	err := fn()
	if err != nil && budget.exhausted() {
		return fmt.Errorf("%w after %d instructions: %v", ErrInstructionLimit, instLimit, err)
	}
	return err
}
