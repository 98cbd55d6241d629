package platform

import (
	"strings"
	"testing"

	lua "github.com/yuin/gopher-lua"
)

func evalPlatform(t *testing.T, info *Info, code string) lua.LValue {
	t.Helper()

	L := lua.NewState()
	defer L.Close()

	if err := InjectPlatformTable(L, info); err != nil {
		t.Fatalf("InjectPlatformTable() error = %v", err)
	}
	if err := L.DoString(code); err != nil {
		t.Fatalf("DoString(%q) error = %v", code, err)
	}
	return L.Get(-1)
}

func TestInjectPlatformTable(t *testing.T) {
	linux := &Info{OS: "linux", Arch: "amd64", ArchRaw: "amd64", Distro: "ubuntu", Family: FamilyDebian, Version: "22.04"}
	windows := &Info{OS: "windows", Arch: "amd64", ArchRaw: "amd64"}

	tests := []struct {
		name string
		info *Info
		code string
		want lua.LValue
	}{
		{"os", linux, `return platform.os`, lua.LString("linux")},
		{"arch", linux, `return platform.arch`, lua.LString("amd64")},
		{"is_linux", linux, `return platform.is_linux`, lua.LTrue},
		{"is_windows", linux, `return platform.is_windows`, lua.LFalse},
		{"serial_autodetect linux", linux, `return platform.serial_autodetect`, lua.LTrue},
		{"serial_autodetect windows", windows, `return platform.serial_autodetect`, lua.LFalse},
		{"tool linux", linux, `return platform.tool`, lua.LString("ktool")},
		{"tool windows", windows, `return platform.tool`, lua.LString("ktool.exe")},
		{"distro id", linux, `return platform.distro.id`, lua.LString("ubuntu")},
		{"distro family", linux, `return platform.distro.family`, lua.LString("debian")},
		{"no distro on windows", windows, `return platform.distro`, lua.LNil},
		{"when true", linux, `return platform.when(platform.is_linux, "/dev/ttyUSB0")`, lua.LString("/dev/ttyUSB0")},
		{"when false", windows, `return platform.when(platform.is_linux, "/dev/ttyUSB0")`, lua.LNil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evalPlatform(t, tt.info, tt.code)
			if got.Type() != tt.want.Type() || got.String() != tt.want.String() {
				t.Errorf("%s = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestPlatformTable_ReadOnly(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{"overwrite field", `platform.os = "plan9"`},
		{"add field", `platform.port = "COM3"`},
		{"replace metatable", `setmetatable(platform, {})`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			L := lua.NewState()
			defer L.Close()

			if err := InjectPlatformTable(L, &Info{OS: "linux"}); err != nil {
				t.Fatalf("InjectPlatformTable() error = %v", err)
			}
			err := L.DoString(tt.code)
			if err == nil {
				t.Fatal("expected error writing to platform table")
			}
			if tt.name != "replace metatable" && !strings.Contains(err.Error(), "read-only") {
				t.Errorf("error = %v, want read-only", err)
			}
		})
	}
}
