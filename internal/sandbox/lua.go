package sandbox

import (
	"context"
	"fmt"
	"io"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// Lua executes submitted Lua source in an embedded interpreter with a
// restricted library surface. print() is redirected to the output sink
// and a global input() routes through the relay.
type Lua struct{}

// NewLua creates the default interpreter.
func NewLua() *Lua {
	return &Lua{}
}

func (i *Lua) Run(ctx context.Context, source string, stdout io.Writer, input InputFunc) error {
	L := lua.NewState(lua.Options{
		SkipOpenLibs: true, // no libraries unless opened below
	})
	defer L.Close()

	openSafeLibs(L)

	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		top := L.GetTop()
		parts := make([]string, top)
		for n := 1; n <= top; n++ {
			parts[n-1] = L.ToStringMeta(L.Get(n)).String()
		}
		io.WriteString(stdout, strings.Join(parts, "\t")+"\n")
		return 0
	}))

	// write() emits its arguments without a trailing newline, so code
	// can build up a line across calls.
	L.SetGlobal("write", L.NewFunction(func(L *lua.LState) int {
		top := L.GetTop()
		for n := 1; n <= top; n++ {
			io.WriteString(stdout, L.ToStringMeta(L.Get(n)).String())
		}
		return 0
	}))

	L.SetGlobal("input", L.NewFunction(func(L *lua.LState) int {
		prompt := L.OptString(1, "")
		L.Push(lua.LString(input(prompt)))
		return 1
	}))

	if ctx != nil {
		L.SetContext(ctx)
	}

	fn, err := L.LoadString(source)
	if err != nil {
		return fmt.Errorf("loading script: %w", err)
	}

	L.Push(fn)
	return L.PCall(0, lua.MultRet, nil)
}

// openSafeLibs loads only libraries that cannot touch the host: base,
// table, string and math. os, io, debug and package stay closed.
func openSafeLibs(L *lua.LState) {
	lua.OpenBase(L)

	// Remove base functions that load arbitrary code or files.
	L.SetGlobal("loadfile", lua.LNil)
	L.SetGlobal("dofile", lua.LNil)
	L.SetGlobal("load", lua.LNil)
	L.SetGlobal("loadstring", lua.LNil)
	L.SetGlobal("require", lua.LNil)

	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}
