package platform

import (
	"context"
	"runtime"
	"testing"
)

func TestRealDetector_Detect(t *testing.T) {
	info, err := NewDetector().Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}

	if info.OS != runtime.GOOS {
		t.Errorf("OS = %v, want %v", info.OS, runtime.GOOS)
	}
	if info.ArchRaw != runtime.GOARCH {
		t.Errorf("ArchRaw = %v, want %v", info.ArchRaw, runtime.GOARCH)
	}
	if info.Arch == "" {
		t.Error("Arch should not be empty")
	}
	if !info.IsLinux() && info.Distro != "" {
		t.Errorf("Distro = %q on %s, want empty", info.Distro, info.OS)
	}
}

func TestRealDetector_NonLinuxSkipsDistro(t *testing.T) {
	d := &RealDetector{goos: "windows", goarch: "x86_64"}

	info, err := d.Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if info.Arch != "amd64" {
		t.Errorf("Arch = %q, want amd64", info.Arch)
	}
	if info.Distro != "" || info.Family != "" {
		t.Errorf("distro fields set on windows: %+v", info)
	}
}

func TestInfo_HostHelpers(t *testing.T) {
	tests := []struct {
		os         string
		autodetect bool
		tool       string
	}{
		{"linux", true, "ktool"},
		{"darwin", false, "ktool"},
		{"windows", false, "ktool.exe"},
	}

	for _, tt := range tests {
		t.Run(tt.os, func(t *testing.T) {
			info := &Info{OS: tt.os}
			if got := info.SerialAutodetect(); got != tt.autodetect {
				t.Errorf("SerialAutodetect() = %v, want %v", got, tt.autodetect)
			}
			if got := info.ToolName("ktool"); got != tt.tool {
				t.Errorf("ToolName() = %q, want %q", got, tt.tool)
			}
		})
	}
}

func TestInfo_ToolNameKeepsExtension(t *testing.T) {
	info := &Info{OS: "windows"}
	if got := info.ToolName(`C:\tools\KTOOL.EXE`); got != `C:\tools\KTOOL.EXE` {
		t.Errorf("ToolName() = %q", got)
	}
}
