// Package platform detects the host kinstall runs on and exposes it to
// kinstall.lua as a read-only table.
//
// Detection uses runtime for OS and architecture and gopsutil for Linux
// distribution details. A failed distribution lookup is not fatal: configs
// that only branch on the OS keep working.
package platform

import (
	"context"
	"strings"
)

// Linux distribution families.
const (
	FamilyDebian  = "debian"
	FamilyRHEL    = "rhel"
	FamilyFedora  = "fedora"
	FamilySUSE    = "suse"
	FamilyArch    = "arch"
	FamilyAlpine  = "alpine"
	FamilyUnknown = "unknown"
)

// Info describes the host.
type Info struct {
	OS      string // runtime.GOOS
	Arch    string // normalized: amd64, arm64, 386, arm
	ArchRaw string // value reported by the runtime
	Distro  string // Linux only, e.g. "ubuntu"
	Family  string // Linux only, one of the Family constants
	Version string // Linux only, e.g. "22.04"
}

// IsLinux returns true if the host is Linux.
func (i *Info) IsLinux() bool {
	return i.OS == "linux"
}

// IsMacOS returns true if the host is macOS.
func (i *Info) IsMacOS() bool {
	return i.OS == "darwin"
}

// IsWindows returns true if the host is Windows.
func (i *Info) IsWindows() bool {
	return i.OS == "windows"
}

// SerialAutodetect reports whether a device's serial port can be found
// without a configured port. Discovery reads /sys/class/tty.
func (i *Info) SerialAutodetect() bool {
	return i.IsLinux()
}

// ToolName returns the executable name for the programmer tool base on this
// host, adding ".exe" on Windows.
func (i *Info) ToolName(base string) string {
	if i.IsWindows() && !strings.HasSuffix(strings.ToLower(base), ".exe") {
		return base + ".exe"
	}
	return base
}

// Detector is the interface for platform detection.
type Detector interface {
	Detect(ctx context.Context) (*Info, error)
}
