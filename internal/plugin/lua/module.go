package lua

import (
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/gitbuf/internal/integration/async"
	"github.com/dshills/gitbuf/internal/integration/git"
)

// ModuleName is the name scripts require the module by.
const ModuleName = "git"

const (
	resultTypeName  = "gitbuf.result"
	sessionTypeName = "gitbuf.session"
)

// Module exposes async calls and commits to Lua.
type Module struct {
	caller    *async.Caller
	committer func() (*git.Committer, error)
}

// NewModule creates the git module. committer may be nil, in which case
// git.commit fails with ErrNoCommitter.
func NewModule(caller *async.Caller, committer func() (*git.Committer, error)) *Module {
	return &Module{caller: caller, committer: committer}
}

// Register preloads the module into s.
func (m *Module) Register(s *State) {
	s.Preload(ModuleName, m.Loader)
}

// Loader is the lua.LGFunction that builds the module table.
func (m *Module) Loader(L *lua.LState) int {
	registerResultType(L)
	registerSessionType(L)

	mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"system_async": m.systemAsync,
		"wait":         m.wait,
		"wait_for":     m.waitFor,
		"wait_all":     m.waitAll,
		"commit":       m.commit,
	})
	L.Push(mod)
	return 1
}

// git.system_async(cmd [, opts]) -> result | nil, err
//
// cmd is a command line in shell word syntax or an argv table. opts accepts
// split_lines, merge, env, dir, stdin and name. merge joins raw chunks as
// they are, but joins split lines with "\n" because their terminators were
// stripped.
func (m *Module) systemAsync(L *lua.LState) int {
	b := NewBridge(L)
	opts := checkOptions(L, b, 2)

	var (
		r   *async.Result
		err error
	)
	switch cmd := L.Get(1).(type) {
	case lua.LString:
		r, err = m.caller.SystemAsyncString(string(cmd), opts)
	case *lua.LTable:
		r, err = m.caller.SystemAsync(b.TableToStrings(cmd), opts)
	default:
		L.ArgError(1, "string or table expected")
		return 0
	}

	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}

	L.Push(newUserData(L, r, resultTypeName))
	return 1
}

func checkOptions(L *lua.LState, b *Bridge, n int) async.Options {
	var opts async.Options

	t := L.OptTable(n, nil)
	if t == nil {
		return opts
	}

	opts.SplitLines = b.GetTableBool(t, "split_lines")
	opts.MergeOutput = b.GetTableBool(t, "merge")
	opts.Dir, _ = b.GetTableString(t, "dir")
	opts.Name, _ = b.GetTableString(t, "name")
	if stdin, ok := b.GetTableString(t, "stdin"); ok {
		opts.Stdin = []byte(stdin)
	}
	if env, ok := b.GetTableTable(t, "env"); ok {
		opts.Env = b.TableToStringMap(env)
	}
	return opts
}

// git.wait(result [, timeout_ms]) -> bool
func (m *Module) wait(L *lua.LState) int {
	r := checkResult(L, 1)
	timeout := checkTimeout(L, 2)

	L.Push(lua.LBool(async.Wait(r, timeout)))
	return 1
}

// git.wait_for(result, timeout_ms, predicate) -> bool
//
// predicate is called with the result and runs on the script's goroutine.
func (m *Module) waitFor(L *lua.LState) int {
	r := checkResult(L, 1)
	timeout := checkTimeout(L, 2)
	pred := L.CheckFunction(3)
	ud := L.Get(1)

	var predErr error
	ok := async.WaitFor(r, timeout, func(*async.Result) bool {
		if err := L.CallByParam(lua.P{Fn: pred, NRet: 1, Protect: true}, ud); err != nil {
			predErr = err
			return true
		}
		ret := L.Get(-1)
		L.Pop(1)
		return lua.LVAsBool(ret)
	})
	if predErr != nil {
		L.RaiseError("wait_for predicate: %v", predErr)
		return 0
	}

	L.Push(lua.LBool(ok))
	return 1
}

// git.wait_all(results [, timeout_ms]) -> bool
func (m *Module) waitAll(L *lua.LState) int {
	t := L.CheckTable(1)
	timeout := checkTimeout(L, 2)

	var rs []*async.Result
	for i := 1; i <= t.Len(); i++ {
		ud, ok := t.RawGetInt(i).(*lua.LUserData)
		if !ok {
			L.ArgError(1, "list of results expected")
			return 0
		}
		r, ok := ud.Value.(*async.Result)
		if !ok {
			L.ArgError(1, "list of results expected")
			return 0
		}
		rs = append(rs, r)
	}

	L.Push(lua.LBool(async.WaitAll(rs, timeout)))
	return 1
}

// git.commit([opts]) -> session | nil, err
//
// opts accepts amend.
func (m *Module) commit(L *lua.LState) int {
	b := NewBridge(L)

	var opts git.CommitOptions
	if t := L.OptTable(1, nil); t != nil {
		opts.Amend = b.GetTableBool(t, "amend")
	}

	if m.committer == nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(ErrNoCommitter.Error()))
		return 2
	}

	c, err := m.committer()
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}

	s, err := c.Commit(opts)
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}

	L.Push(newUserData(L, s, sessionTypeName))
	return 1
}

// checkTimeout reads an optional timeout in milliseconds. nil and negative
// values mean no deadline. The result never outlives the state's execution
// deadline.
func checkTimeout(L *lua.LState, n int) time.Duration {
	d := time.Duration(-1)
	if v, ok := L.Get(n).(lua.LNumber); ok && v >= 0 {
		d = time.Duration(float64(v) * float64(time.Millisecond))
	} else if L.Get(n) != lua.LNil && !ok {
		L.ArgError(n, "timeout in milliseconds expected")
	}

	if ctx := L.Context(); ctx != nil {
		if dl, ok := ctx.Deadline(); ok {
			remaining := time.Until(dl)
			if remaining < 0 {
				remaining = 0
			}
			if d < 0 || remaining < d {
				d = remaining
			}
		}
	}
	return d
}

func newUserData(L *lua.LState, v any, typeName string) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = v
	L.SetMetatable(ud, L.GetTypeMetatable(typeName))
	return ud
}

func checkResult(L *lua.LState, n int) *async.Result {
	ud := L.CheckUserData(n)
	if r, ok := ud.Value.(*async.Result); ok {
		return r
	}
	L.ArgError(n, "result expected")
	return nil
}

func checkSession(L *lua.LState, n int) *git.Session {
	ud := L.CheckUserData(n)
	if s, ok := ud.Value.(*git.Session); ok {
		return s
	}
	L.ArgError(n, "commit session expected")
	return nil
}

func registerResultType(L *lua.LState) {
	mt := L.NewTypeMetatable(resultTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"id": func(L *lua.LState) int {
			L.Push(lua.LString(checkResult(L, 1).ID()))
			return 1
		},
		"argv": func(L *lua.LState) int {
			L.Push(NewBridge(L).StringsToTable(checkResult(L, 1).Argv()))
			return 1
		},
		"done": func(L *lua.LState) int {
			L.Push(lua.LBool(checkResult(L, 1).Done()))
			return 1
		},
		"cancelled": func(L *lua.LState) int {
			L.Push(lua.LBool(checkResult(L, 1).Cancelled()))
			return 1
		},
		"status": func(L *lua.LState) int {
			L.Push(lua.LString(checkResult(L, 1).Status().String()))
			return 1
		},
		"output": func(L *lua.LState) int {
			L.Push(NewBridge(L).StringsToTable(checkResult(L, 1).Output()))
			return 1
		},
		"err_output": func(L *lua.LState) int {
			L.Push(NewBridge(L).StringsToTable(checkResult(L, 1).ErrOutput()))
			return 1
		},
		"exit_code": func(L *lua.LState) int {
			L.Push(lua.LNumber(checkResult(L, 1).ExitCode()))
			return 1
		},
		"elapsed": func(L *lua.LState) int {
			L.Push(lua.LNumber(checkResult(L, 1).Elapsed().Seconds()))
			return 1
		},
		"send": func(L *lua.LState) int {
			r := checkResult(L, 1)
			return pushErr(L, r.Send([]byte(L.CheckString(2))))
		},
		"stop": func(L *lua.LState) int {
			return pushErr(L, checkResult(L, 1).Stop())
		},
		"cancel": func(L *lua.LState) int {
			return pushErr(L, checkResult(L, 1).Cancel())
		},
	}))
	L.SetField(mt, "__tostring", L.NewFunction(func(L *lua.LState) int {
		r := checkResult(L, 1)
		L.Push(lua.LString("result(" + r.ID() + ", " + r.Status().String() + ")"))
		return 1
	}))
}

func registerSessionType(L *lua.LState) {
	mt := L.NewTypeMetatable(sessionTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"editmsg_path": func(L *lua.LState) int {
			L.Push(lua.LString(checkSession(L, 1).EditmsgPath()))
			return 1
		},
		"temp_path": func(L *lua.LState) int {
			L.Push(lua.LString(checkSession(L, 1).TempPath()))
			return 1
		},
		"state": func(L *lua.LState) int {
			L.Push(lua.LString(checkSession(L, 1).State().String()))
			return 1
		},
		"job": func(L *lua.LState) int {
			s := checkSession(L, 1)
			if s.Job() == nil {
				L.Push(lua.LNil)
				return 1
			}
			L.Push(newUserData(L, s.Job(), resultTypeName))
			return 1
		},
		"release": func(L *lua.LState) int {
			L.Push(lua.LBool(checkSession(L, 1).Release()))
			return 1
		},
		// wait blocks until the session is back to idle.
		"wait": func(L *lua.LState) int {
			s := checkSession(L, 1)
			timeout := checkTimeout(L, 2)

			var deadline <-chan time.Time
			if timeout >= 0 {
				timer := time.NewTimer(timeout)
				defer timer.Stop()
				deadline = timer.C
			}
			select {
			case <-s.Done():
				L.Push(lua.LTrue)
			case <-deadline:
				L.Push(lua.LFalse)
			}
			return 1
		},
		"err": func(L *lua.LState) int {
			return pushErr(L, checkSession(L, 1).Err())
		},
	}))
}

// pushErr pushes nil on success and the error message otherwise.
func pushErr(L *lua.LState, err error) int {
	if err != nil {
		L.Push(lua.LString(err.Error()))
	} else {
		L.Push(lua.LNil)
	}
	return 1
}
