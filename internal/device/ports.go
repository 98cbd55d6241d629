package device

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// PortFinder locates the serial port of an attached device by matching the
// USB vendor and product ids exposed through sysfs.
type PortFinder struct {
	sysfsRoot string
	devDir    string
}

// NewPortFinder creates a finder reading the live /sys tree.
func NewPortFinder() *PortFinder {
	return &PortFinder{sysfsRoot: "/sys", devDir: "/dev"}
}

// NewPortFinderAt creates a finder over an alternate sysfs root (for tests).
func NewPortFinderAt(sysfsRoot, devDir string) *PortFinder {
	return &PortFinder{sysfsRoot: sysfsRoot, devDir: devDir}
}

// Find returns the first serial port whose USB bridge matches d.
// It returns an error wrapping ErrNoDevice when nothing matches.
func (f *PortFinder) Find(d Device) (string, error) {
	spec, err := Lookup(d)
	if err != nil {
		return "", err
	}

	if f.sysfsRoot == "/sys" && runtime.GOOS != "linux" {
		return "", fmt.Errorf("%w: automatic port discovery is only available on Linux, set a port explicitly", ErrNoDevice)
	}

	ports, err := f.List(spec.USB)
	if err != nil {
		return "", err
	}
	if len(ports) == 0 {
		return "", fmt.Errorf("%w: no %s port with USB id %s", ErrNoDevice, d, spec.USB)
	}

	// Dual-channel bridges expose two ports; the K210 sits on the first.
	return ports[0], nil
}

// List returns all serial ports whose USB bridge matches id, sorted by name.
func (f *PortFinder) List(id USBID) ([]string, error) {
	ttyDir := filepath.Join(f.sysfsRoot, "class", "tty")
	entries, err := os.ReadDir(ttyDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", ttyDir, err)
	}

	var ports []string
	for _, entry := range entries {
		name := entry.Name()
		devicePath, err := filepath.EvalSymlinks(filepath.Join(ttyDir, name, "device"))
		if err != nil {
			// Virtual terminals have no backing device.
			continue
		}

		found, ok := usbIDFor(devicePath)
		if !ok {
			continue
		}

		if strings.EqualFold(found.Vendor, id.Vendor) && strings.EqualFold(found.Product, id.Product) {
			ports = append(ports, filepath.Join(f.devDir, name))
		}
	}

	sort.Strings(ports)
	return ports, nil
}

// usbIDFor walks up from a tty's device directory to the USB device node
// carrying idVendor and idProduct.
func usbIDFor(devicePath string) (USBID, bool) {
	dir := devicePath
	for i := 0; i < 4; i++ {
		vendor, verr := os.ReadFile(filepath.Join(dir, "idVendor"))
		product, perr := os.ReadFile(filepath.Join(dir, "idProduct"))
		if verr == nil && perr == nil {
			return USBID{
				Vendor:  strings.TrimSpace(string(vendor)),
				Product: strings.TrimSpace(string(product)),
			}, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return USBID{}, false
}
