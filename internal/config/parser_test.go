package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ZebulonRouseFrantzich/kinstall/internal/platform"
)

// mockDetector is a test implementation of platform.Detector.
type mockDetector struct {
	info *platform.Info
	err  error
}

func (m *mockDetector) Detect(ctx context.Context) (*platform.Info, error) {
	return m.info, m.err
}

func TestParser_ParseString_Minimal(t *testing.T) {
	cfg, err := NewParser(nil).ParseString(context.Background(), `kinstall = { device = "dock" }`)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}

	want := Default()
	want.Device = "dock"
	if *cfg != *want {
		t.Errorf("config = %+v, want defaults with device=dock %+v", cfg, want)
	}
}

func TestParser_ParseString_Full(t *testing.T) {
	luaCode := `
		kinstall = {
			destdir = "/srv/krux",
			version = "v24.03.0",
			device = "wonder_mk",
			baudrate = 115200,
			port = "/dev/ttyACM0",
			tool = "/opt/ktool/ktool",
			release_base_url = "https://mirror.example.com/krux",
			pubkey_url = "https://mirror.example.com/krux.pem",
			completion_delay = 0.5,
			timeouts = { download = 120, stall = 15, device = 0 },
			log_level = "debug",
		}
	`

	cfg, err := NewParser(nil).ParseString(context.Background(), luaCode)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}

	want := Config{
		DestDir:         "/srv/krux",
		Version:         "v24.03.0",
		Device:          "wonder_mk",
		Baudrate:        115200,
		Port:            "/dev/ttyACM0",
		Tool:            "/opt/ktool/ktool",
		ReleaseBaseURL:  "https://mirror.example.com/krux",
		PubkeyURL:       "https://mirror.example.com/krux.pem",
		CompletionDelay: 500 * time.Millisecond,
		Timeouts: Timeouts{
			Download: 2 * time.Minute,
			Stall:    15 * time.Second,
			Device:   0,
		},
		LogLevel: "debug",
	}
	if *cfg != want {
		t.Errorf("config =\n%+v\nwant\n%+v", *cfg, want)
	}
}

func TestParser_ParseString_PartialTimeouts(t *testing.T) {
	cfg, err := NewParser(nil).ParseString(context.Background(), `kinstall = { timeouts = { stall = 5 } }`)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	if cfg.Timeouts.Stall != 5*time.Second {
		t.Errorf("Stall = %v, want 5s", cfg.Timeouts.Stall)
	}
	if cfg.Timeouts.Download != DefaultDownloadTimeout || cfg.Timeouts.Device != DefaultDeviceTimeout {
		t.Errorf("unset timeouts changed: %+v", cfg.Timeouts)
	}
}

func TestParser_ParseString_Errors(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		message string
	}{
		{"syntax error", `kinstall = {`, "Lua syntax error"},
		{"missing table", `x = 1`, "missing or invalid 'kinstall' table"},
		{"table is a string", `kinstall = "amigo"`, "missing or invalid 'kinstall' table"},
		{"device not a string", `kinstall = { device = 7 }`, "invalid 'device' field"},
		{"baudrate not a number", `kinstall = { baudrate = "fast" }`, "invalid 'baudrate' field"},
		{"baudrate fractional", `kinstall = { baudrate = 1.5 }`, "invalid 'baudrate' field"},
		{"timeouts not a table", `kinstall = { timeouts = 5 }`, "invalid 'timeouts' field"},
		{"timeout not a number", `kinstall = { timeouts = { stall = "soon" } }`, "invalid 'timeouts.stall' field"},
		{"runtime error", `error("boom")`, "Lua syntax error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser(nil).ParseString(context.Background(), tt.code)
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("error = %v, want *ParseError", err)
			}
			if parseErr.Message != tt.message {
				t.Errorf("Message = %q, want %q", parseErr.Message, tt.message)
			}
		})
	}
}

func TestParser_ParseString_Timeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewParser(nil).ParseString(ctx, `while true do end`)
	if err == nil {
		t.Fatal("expected an error for a runaway config")
	}
}

func TestParser_PlatformTable(t *testing.T) {
	luaCode := `
		kinstall = {
			port = platform.when(platform.is_linux, "/dev/ttyUSB1"),
			tool = platform.tool,
		}
	`

	tests := []struct {
		name     string
		info     *platform.Info
		wantPort string
		wantTool string
	}{
		{"linux", &platform.Info{OS: "linux", Arch: "amd64"}, "/dev/ttyUSB1", "ktool"},
		{"windows", &platform.Info{OS: "windows", Arch: "amd64"}, "", "ktool.exe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := NewParser(&mockDetector{info: tt.info}).ParseString(context.Background(), luaCode)
			if err != nil {
				t.Fatalf("ParseString() error = %v", err)
			}
			if cfg.Port != tt.wantPort {
				t.Errorf("Port = %q, want %q", cfg.Port, tt.wantPort)
			}
			if cfg.Tool != tt.wantTool {
				t.Errorf("Tool = %q, want %q", cfg.Tool, tt.wantTool)
			}
		})
	}
}

func TestParser_DetectorError(t *testing.T) {
	detectErr := errors.New("no host")
	_, err := NewParser(&mockDetector{err: detectErr}).ParseString(context.Background(), `kinstall = {}`)
	if !errors.Is(err, detectErr) {
		t.Errorf("error = %v, want wrapped detector error", err)
	}
}

func TestParser_ParseFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "kinstall.lua")
	if err := os.WriteFile(path, []byte(`kinstall = { device = "cube" }`), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := NewParser(nil).ParseFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if cfg.Device != "cube" {
		t.Errorf("Device = %q, want cube", cfg.Device)
	}

	big := filepath.Join(dir, "big.lua")
	if err := os.WriteFile(big, []byte("-- "+strings.Repeat("x", MaxConfigSize)), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err = NewParser(nil).ParseFile(context.Background(), big)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) || parseErr.Message != "config file too large" {
		t.Errorf("error = %v, want config file too large", err)
	}
}

func TestFormatError(t *testing.T) {
	err := &ParseError{
		Message: "Lua syntax error",
		Detail:  "<string>:1: unexpected symbol\nstack traceback:\n\t[G]: ?",
	}

	if got := FormatError(err, false); got != "Lua syntax error: <string>:1: unexpected symbol" {
		t.Errorf("FormatError(false) = %q", got)
	}
	if got := FormatError(err, true); !strings.Contains(got, "Details:\n") || !strings.Contains(got, "stack traceback") {
		t.Errorf("FormatError(true) = %q", got)
	}

	plain := errors.New("open config: permission denied")
	if got := FormatError(plain, false); got != plain.Error() {
		t.Errorf("FormatError(plain) = %q", got)
	}
}
