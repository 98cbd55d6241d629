package main

import (
	"fmt"
	"os"
)

// Version will be set at build time via -ldflags
var Version = "v0.1.0"

func main() {
	if len(os.Args) > 1 {
		var err error
		switch os.Args[1] {
		case "--version", "version":
			fmt.Printf("kinstall %s\n", Version)
			fmt.Println("Krux firmware installer")
			return
		case "--help", "-h", "help":
			printUsage()
			return
		case "flash":
			err = runFlash(os.Args[2:])
		case "wipe":
			err = runWipe(os.Args[2:])
		case "fetch":
			err = runFetch(os.Args[2:])
		case "verify":
			err = runVerify(os.Args[2:])
		case "devices":
			err = runDevices(os.Args[2:])
		case "config":
			err = runConfig(os.Args[2:])
		default:
			fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n\n", os.Args[1])
			printUsage()
			os.Exit(1)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	printUsage()
}

func printUsage() {
	fmt.Println("kinstall - download, verify and flash Krux firmware")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  kinstall --version                 Show version information")
	fmt.Println("  kinstall flash [options]           Download, verify and flash a release")
	fmt.Println("  kinstall wipe [options]            Erase the device's flash")
	fmt.Println("  kinstall fetch [options]           Download, verify and unpack a release")
	fmt.Println("  kinstall verify [options] <zip>    Verify a downloaded release archive")
	fmt.Println("  kinstall devices                   List supported devices and detected ports")
	fmt.Println("  kinstall config [init]             Show or create the config file")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -d, --device <name>     Device identifier (see 'kinstall devices')")
	fmt.Println("  -v, --version <tag>     Release version, e.g. v24.11.1")
	fmt.Println("  -p, --port <path>       Serial port (skips discovery)")
	fmt.Println("  -b, --baudrate <n>      Programmer baudrate")
	fmt.Println("      --destdir <dir>     Download directory")
	fmt.Println("      --tool <path>       Programmer executable")
	fmt.Println("      --config <file>     Config file (default $KINSTALL_CONFIG)")
	fmt.Println("  -f, --force             Re-download files already present")
	fmt.Println("  -y, --yes               Do not ask before wiping")
	fmt.Println("      --debug             Debug logging")
}
