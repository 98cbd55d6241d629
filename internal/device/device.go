// Package device describes the signing devices the installer supports: the
// fixed allow-list of identifiers, the K210 board each one uses, and the USB
// bridge that exposes its serial port.
package device

import (
	"fmt"
	"sort"
)

// Device identifies a supported hardware signing device.
type Device string

// Supported devices.
const (
	M5StickV Device = "m5stickv"
	Amigo    Device = "amigo"
	AmigoTFT Device = "amigo_tft"
	AmigoIPS Device = "amigo_ips"
	Dock     Device = "dock"
	Bit      Device = "bit"
	Yahboom  Device = "yahboom"
	Cube     Device = "cube"
	WonderMK Device = "wonder_mk"
	TZT      Device = "tzt"
)

// String returns the string representation of the device
func (d Device) String() string {
	return string(d)
}

// USBID is a USB vendor:product pair.
type USBID struct {
	Vendor  string
	Product string
}

func (u USBID) String() string {
	return u.Vendor + ":" + u.Product
}

// Spec holds the programming parameters for a device.
type Spec struct {
	// Board is the ktool board name passed with -B.
	Board string
	// USB is the bridge chip that exposes the device's serial port.
	USB USBID
}

var (
	ftdi2232 = USBID{Vendor: "0403", Product: "6010"}
	ftdi232  = USBID{Vendor: "0403", Product: "6001"}
	ch340    = USBID{Vendor: "1a86", Product: "7523"}
	ch9102   = USBID{Vendor: "1a86", Product: "55d4"}
)

// valid is the allow-list of devices. Callers go through Parse, Lookup
// and Names so the set cannot change at run time.
var valid = map[Device]Spec{
	M5StickV: {Board: "goE", USB: ftdi232},
	Amigo:    {Board: "goE", USB: ftdi2232},
	AmigoTFT: {Board: "goE", USB: ftdi2232},
	AmigoIPS: {Board: "goE", USB: ftdi2232},
	Bit:      {Board: "goE", USB: ftdi2232},
	Cube:     {Board: "goE", USB: ftdi2232},
	TZT:      {Board: "goE", USB: ftdi2232},
	Dock:     {Board: "dan", USB: ch340},
	Yahboom:  {Board: "goE", USB: ch340},
	WonderMK: {Board: "goE", USB: ch9102},
}

// Parse validates name against the allow-list.
func Parse(name string) (Device, error) {
	d := Device(name)
	if _, ok := valid[d]; !ok {
		return "", &ValidationError{
			Field:  "device",
			Value:  name,
			Reason: "not a supported device",
		}
	}
	return d, nil
}

// Lookup returns the programming parameters of a supported device.
func Lookup(d Device) (Spec, error) {
	spec, ok := valid[d]
	if !ok {
		return Spec{}, &ValidationError{Field: "device", Value: d.String(), Reason: "not a supported device"}
	}
	return spec, nil
}

// Names returns the supported device identifiers in sorted order.
func Names() []string {
	names := make([]string, 0, len(valid))
	for d := range valid {
		names = append(names, d.String())
	}
	sort.Strings(names)
	return names
}

// FirmwareDir returns the directory inside a release archive that holds the
// firmware for d, e.g. "maixpy_amigo".
func FirmwareDir(d Device) string {
	return fmt.Sprintf("maixpy_%s", d)
}
