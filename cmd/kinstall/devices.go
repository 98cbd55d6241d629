package main

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/gosuri/uitable"

	"github.com/ZebulonRouseFrantzich/kinstall/internal/device"
)

// portLister is the part of device.PortFinder used for listing.
type portLister interface {
	List(id device.USBID) ([]string, error)
}

// runDevices handles the `kinstall devices` subcommand
func runDevices(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	if f.Help {
		fmt.Println("Usage: kinstall devices")
		fmt.Println()
		fmt.Println("Lists supported devices and, on Linux, serial ports that match them.")
		return nil
	}

	var lister portLister
	if runtime.GOOS == "linux" {
		lister = device.NewPortFinder()
	}
	return printDevices(os.Stdout, lister)
}

// printDevices writes one row per supported device. A nil lister skips
// port discovery.
func printDevices(w io.Writer, lister portLister) error {
	table := uitable.New()
	table.AddRow("DEVICE", "BOARD", "USB", "PORTS")

	for _, name := range device.Names() {
		spec, err := device.Lookup(device.Device(name))
		if err != nil {
			return err
		}

		ports := "-"
		if lister != nil {
			found, err := lister.List(spec.USB)
			if err != nil {
				return err
			}
			if len(found) > 0 {
				ports = strings.Join(found, ",")
			}
		}

		table.AddRow(name, spec.Board, spec.USB.String(), ports)
	}

	_, err := fmt.Fprintln(w, table)
	return err
}
