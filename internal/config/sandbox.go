package config

import (
	lua "github.com/yuin/gopher-lua"
)

// blockedGlobals are base library functions a declarative config has no use
// for: code loading, raw table access past metatables and GC control.
var blockedGlobals = []string{
	"require",
	"dofile",
	"loadfile",
	"load",
	"loadstring",
	"module",
	"rawget",
	"rawset",
	"rawequal",
	"getfenv",
	"setfenv",
	"collectgarbage",
	"newproxy",
}

// sandboxLuaVM removes blocked globals and any library that reaches outside
// the VM. It is safe to call on a fully opened state.
func sandboxLuaVM(L *lua.LState) {
	for _, lib := range []string{lua.OsLibName, lua.IoLibName, lua.LoadLibName, lua.DebugLibName, lua.ChannelLibName, lua.CoroutineLibName} {
		L.SetGlobal(lib, lua.LNil)
	}
	for _, name := range blockedGlobals {
		L.SetGlobal(name, lua.LNil)
	}
}

// newSandboxedVM creates a Lua state with only the base, table, string and
// math libraries, then sandboxes it.
func newSandboxedVM() *lua.LState {
	L := lua.NewState(lua.Options{
		SkipOpenLibs:        true,
		CallStackSize:       callStackLimit,
		RegistrySize:        registryLimit,
		IncludeGoStackTrace: false,
	})

	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}

	sandboxLuaVM(L)
	return L
}
