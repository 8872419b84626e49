package lua

import (
	"io"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// Sandbox restricts Lua execution to safe operations.
type Sandbox struct {
	L      *lua.LState
	output io.Writer

	// modules lists the names require resolves.
	modules map[string]bool
}

// NewSandbox creates a new sandbox for the Lua state.
func NewSandbox(L *lua.LState, output io.Writer) *Sandbox {
	return &Sandbox{
		L:      L,
		output: output,
		modules: map[string]bool{
			"string": true,
			"table":  true,
			"math":   true,
		},
	}
}

// Install sets up the sandbox restrictions.
func (s *Sandbox) Install() {
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		s.L.SetGlobal(name, lua.LNil)
	}

	s.installPrint()
	s.installSafeRequire()
}

// Allow lets require resolve a preloaded module.
func (s *Sandbox) Allow(name string) {
	s.modules[name] = true
}

// installPrint redirects print to the sandbox output.
func (s *Sandbox) installPrint() {
	s.L.SetGlobal("print", s.L.NewFunction(func(L *lua.LState) int {
		n := L.GetTop()
		parts := make([]string, n)
		for i := 1; i <= n; i++ {
			parts[i-1] = L.ToStringMeta(L.Get(i)).String()
		}
		_, _ = io.WriteString(s.output, strings.Join(parts, "\t")+"\n")
		return 0
	}))
}

// installSafeRequire clears the module search paths and replaces require
// with one that only resolves allowed modules.
func (s *Sandbox) installSafeRequire() {
	if pkg, ok := s.L.GetGlobal("package").(*lua.LTable); ok {
		s.L.SetField(pkg, "path", lua.LString(""))
		s.L.SetField(pkg, "cpath", lua.LString(""))
	}

	originalRequire := s.L.GetGlobal("require")

	s.L.SetGlobal("require", s.L.NewFunction(func(L *lua.LState) int {
		modName := L.CheckString(1)
		if !s.modules[modName] {
			L.RaiseError("module %q is not available", modName)
			return 0
		}

		L.Push(originalRequire)
		L.Push(lua.LString(modName))
		L.Call(1, 1)
		return 1
	}))
}
