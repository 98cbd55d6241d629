package device

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParse(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			d, err := Parse(name)
			if err != nil {
				t.Fatalf("expected %s to be valid: %v", name, err)
			}
			if d.String() != name {
				t.Errorf("got %s, want %s", d, name)
			}
		})
	}

	invalid := []string{"", "AMIGO", "amigo ", "maixpy_amigo", "trezor", "m5stickv2"}
	for _, name := range invalid {
		t.Run("invalid_"+name, func(t *testing.T) {
			_, err := Parse(name)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != "device" {
				t.Errorf("expected field 'device', got %q", verr.Field)
			}
		})
	}
}

func TestLookupBoards(t *testing.T) {
	tests := []struct {
		device Device
		board  string
	}{
		{Amigo, "goE"},
		{M5StickV, "goE"},
		{Dock, "dan"},
		{WonderMK, "goE"},
	}

	for _, tt := range tests {
		t.Run(tt.device.String(), func(t *testing.T) {
			spec, err := Lookup(tt.device)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if spec.Board != tt.board {
				t.Errorf("board mismatch: got %s, want %s", spec.Board, tt.board)
			}
		})
	}
}

func TestNamesReturnsCopy(t *testing.T) {
	names := Names()
	if len(names) != 10 {
		t.Fatalf("got %d devices, want 10: %v", len(names), names)
	}
	for i := range names {
		names[i] = "toaster"
	}

	if _, err := Lookup(Device("toaster")); err == nil {
		t.Error("mutating Names() result added a device")
	}
	if got := Names(); got[0] == "toaster" || len(got) != 10 {
		t.Errorf("Names() changed after mutation: %v", got)
	}
}

func TestFirmwareDir(t *testing.T) {
	if got := FirmwareDir(Amigo); got != "maixpy_amigo" {
		t.Errorf("got %s", got)
	}
}

// fakeUSBTTY builds a sysfs-like tree with a tty backed by a USB interface.
func fakeUSBTTY(t *testing.T, root, tty, busPath string, id USBID) {
	t.Helper()

	usbDev := filepath.Join(root, "devices", busPath)
	iface := filepath.Join(usbDev, busPath+":1.0")
	ttyNode := filepath.Join(iface, tty)
	if err := os.MkdirAll(ttyNode, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(usbDev, "idVendor"), []byte(id.Vendor+"\n"), 0644); err != nil {
		t.Fatalf("write idVendor: %v", err)
	}
	if err := os.WriteFile(filepath.Join(usbDev, "idProduct"), []byte(id.Product+"\n"), 0644); err != nil {
		t.Fatalf("write idProduct: %v", err)
	}

	classDir := filepath.Join(root, "class", "tty", tty)
	if err := os.MkdirAll(classDir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.Symlink(ttyNode, filepath.Join(classDir, "device")); err != nil {
		t.Fatalf("symlink: %v", err)
	}
}

func TestPortFinder(t *testing.T) {
	root := t.TempDir()
	fakeUSBTTY(t, root, "ttyUSB1", "1-2", USBID{Vendor: "0403", Product: "6010"})
	fakeUSBTTY(t, root, "ttyUSB0", "1-1", USBID{Vendor: "0403", Product: "6010"})
	fakeUSBTTY(t, root, "ttyUSB2", "1-3", USBID{Vendor: "1a86", Product: "7523"})

	// A virtual console without a device link must be skipped.
	if err := os.MkdirAll(filepath.Join(root, "class", "tty", "tty0"), 0755); err != nil {
		t.Fatal(err)
	}

	finder := NewPortFinderAt(root, "/dev")

	tests := []struct {
		name    string
		device  Device
		want    string
		wantErr error
	}{
		{name: "amigo_first_ftdi_port", device: Amigo, want: "/dev/ttyUSB0"},
		{name: "dock_ch340", device: Dock, want: "/dev/ttyUSB2"},
		{name: "m5stickv_not_attached", device: M5StickV, wantErr: ErrNoDevice},
		{name: "wonder_mk_not_attached", device: WonderMK, wantErr: ErrNoDevice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := finder.Find(tt.device)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPortFinderMissingSysfs(t *testing.T) {
	finder := NewPortFinderAt(filepath.Join(t.TempDir(), "missing"), "/dev")
	if _, err := finder.Find(Amigo); !errors.Is(err, ErrNoDevice) {
		t.Errorf("expected ErrNoDevice, got %v", err)
	}
}

func TestPortFinderInvalidDevice(t *testing.T) {
	finder := NewPortFinderAt(t.TempDir(), "/dev")
	_, err := finder.Find(Device("nope"))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}
