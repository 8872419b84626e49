package lua

import (
	lua "github.com/yuin/gopher-lua"
)

// Bridge converts between Go and Lua values.
type Bridge struct {
	L *lua.LState
}

// NewBridge creates a new Bridge for the given Lua state.
func NewBridge(L *lua.LState) *Bridge {
	return &Bridge{L: L}
}

// StringsToTable converts a string slice to a Lua array.
func (b *Bridge) StringsToTable(s []string) *lua.LTable {
	t := b.L.CreateTable(len(s), 0)
	for _, v := range s {
		t.Append(lua.LString(v))
	}
	return t
}

// TableToStrings converts a Lua array to a string slice. Non-string
// elements are converted with tostring semantics.
func (b *Bridge) TableToStrings(t *lua.LTable) []string {
	n := t.Len()
	out := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, b.L.ToStringMeta(t.RawGetInt(i)).String())
	}
	return out
}

// TableToStringMap converts the string keys of a Lua table to a map.
func (b *Bridge) TableToStringMap(t *lua.LTable) map[string]string {
	out := make(map[string]string)
	t.ForEach(func(k, v lua.LValue) {
		if ks, ok := k.(lua.LString); ok {
			out[string(ks)] = b.L.ToStringMeta(v).String()
		}
	})
	return out
}

// GetTableString returns a string field from a table.
func (b *Bridge) GetTableString(t *lua.LTable, key string) (string, bool) {
	if s, ok := t.RawGetString(key).(lua.LString); ok {
		return string(s), true
	}
	return "", false
}

// GetTableBool returns a boolean field from a table. Missing fields are
// false.
func (b *Bridge) GetTableBool(t *lua.LTable, key string) bool {
	return lua.LVAsBool(t.RawGetString(key))
}

// GetTableTable returns a table field from a table.
func (b *Bridge) GetTableTable(t *lua.LTable, key string) (*lua.LTable, bool) {
	tbl, ok := t.RawGetString(key).(*lua.LTable)
	return tbl, ok
}
