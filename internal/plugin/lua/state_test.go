package lua

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	glua "github.com/yuin/gopher-lua"
)

func TestNewState(t *testing.T) {
	state, err := NewState()
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	defer state.Close()

	if state.IsClosed() {
		t.Error("NewState() returned closed state")
	}
	if state.LuaState() == nil {
		t.Error("NewState() LuaState() is nil")
	}
}

func TestStateDoString(t *testing.T) {
	state, err := NewState()
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	defer state.Close()

	if err := state.DoString(`x = 1 + 1`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}

	num, ok := state.GetGlobal("x").(glua.LNumber)
	if !ok || float64(num) != 2 {
		t.Errorf("x = %v, want 2", state.GetGlobal("x"))
	}
}

func TestStateDoStringSyntaxError(t *testing.T) {
	state, err := NewState()
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	defer state.Close()

	if err := state.DoString(`invalid lua code !!!`); err == nil {
		t.Error("DoString() with invalid code should return error")
	}
}

func TestStateDoFile(t *testing.T) {
	state, err := NewState()
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	defer state.Close()

	path := filepath.Join(t.TempDir(), "script.lua")
	if err := os.WriteFile(path, []byte(`answer = 6 * 7`), 0644); err != nil {
		t.Fatal(err)
	}

	if err := state.DoFile(path); err != nil {
		t.Fatalf("DoFile() error = %v", err)
	}
	if v := state.GetGlobal("answer"); v.String() != "42" {
		t.Errorf("answer = %v, want 42", v)
	}
}

func TestStateCall(t *testing.T) {
	state, err := NewState()
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	defer state.Close()

	if err := state.DoString(`function add(a, b) return a + b, "ok" end`); err != nil {
		t.Fatal(err)
	}

	results, err := state.Call("add", glua.LNumber(2), glua.LNumber(3))
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if len(results) != 2 || results[0].String() != "5" || results[1].String() != "ok" {
		t.Errorf("Call() = %v", results)
	}

	if _, err := state.Call("missing"); err == nil {
		t.Error("Call() of missing function should fail")
	}

	state.SetGlobal("notfn", glua.LNumber(1))
	if _, err := state.Call("notfn"); err == nil {
		t.Error("Call() of a number should fail")
	}
}

func TestStateSandbox(t *testing.T) {
	state, err := NewState()
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	defer state.Close()

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "io", "os", "debug"} {
		if v := state.GetGlobal(name); v != glua.LNil {
			t.Errorf("%s should not be available, got %s", name, v.Type())
		}
	}

	if err := state.DoString(`local s = require("string")`); err != nil {
		t.Errorf("require(string) error = %v", err)
	}
	if err := state.DoString(`require("os")`); err == nil {
		t.Error("require(os) should fail")
	}
}

func TestStatePrint(t *testing.T) {
	var out bytes.Buffer
	state, err := NewState(WithOutput(&out))
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	defer state.Close()

	if err := state.DoString(`print("a", 1, true)`); err != nil {
		t.Fatal(err)
	}
	if got := out.String(); got != "a\t1\ttrue\n" {
		t.Errorf("print wrote %q", got)
	}
}

func TestStatePreload(t *testing.T) {
	state, err := NewState()
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	defer state.Close()

	state.Preload("greet", func(L *glua.LState) int {
		mod := L.NewTable()
		L.SetField(mod, "name", glua.LString("gitbuf"))
		L.Push(mod)
		return 1
	})

	if err := state.DoString(`name = require("greet").name`); err != nil {
		t.Fatalf("require(greet) error = %v", err)
	}
	if v := state.GetGlobal("name"); v.String() != "gitbuf" {
		t.Errorf("name = %v", v)
	}
}

func TestStateExecutionTimeout(t *testing.T) {
	state, err := NewState(WithExecutionTimeout(50 * time.Millisecond))
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	defer state.Close()

	err = state.DoString(`while true do end`)
	if !errors.Is(err, ErrExecutionTimeout) {
		t.Fatalf("expected ErrExecutionTimeout, got %v", err)
	}

	// The state stays usable after a timeout.
	if err := state.DoString(`x = 1`); err != nil {
		t.Errorf("DoString() after timeout error = %v", err)
	}
}

func TestStateClose(t *testing.T) {
	state, err := NewState()
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}

	if err := state.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := state.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if !state.IsClosed() {
		t.Error("IsClosed() = false after Close()")
	}

	if err := state.DoString(`x = 1`); !errors.Is(err, ErrStateClosed) {
		t.Errorf("DoString() on closed state = %v", err)
	}
	if _, err := state.Call("f"); !errors.Is(err, ErrStateClosed) {
		t.Errorf("Call() on closed state = %v", err)
	}
	if v := state.GetGlobal("x"); v != glua.LNil {
		t.Errorf("GetGlobal() on closed state = %v", v)
	}
	if !strings.Contains(ErrStateClosed.Error(), "closed") {
		t.Error("unexpected error text")
	}
}
