package main

import (
	"fmt"
	"strconv"
	"strings"
)

// cliFlags holds options shared by every command. Zero values mean "not
// given" and leave the config file value in place.
type cliFlags struct {
	Config   string
	Device   string
	Version  string
	Port     string
	Baudrate int
	DestDir  string
	Tool     string

	// verify
	Checksum  string
	Signature string
	PubKey    string

	Force bool
	Yes   bool
	Debug bool
	Help  bool

	Args []string
}

// parseFlags accepts "--name value", "--name=value" and the short aliases
// listed in the usage text. Anything else not starting with "-" is
// positional.
func parseFlags(args []string) (*cliFlags, error) {
	f := &cliFlags{}

	strs := map[string]*string{
		"--config":    &f.Config,
		"--device":    &f.Device,
		"-d":          &f.Device,
		"--version":   &f.Version,
		"-v":          &f.Version,
		"--port":      &f.Port,
		"-p":          &f.Port,
		"--destdir":   &f.DestDir,
		"--tool":      &f.Tool,
		"--checksum":  &f.Checksum,
		"--signature": &f.Signature,
		"--pubkey":    &f.PubKey,
	}
	bools := map[string]*bool{
		"--force": &f.Force,
		"-f":      &f.Force,
		"--yes":   &f.Yes,
		"-y":      &f.Yes,
		"--debug": &f.Debug,
		"--help":  &f.Help,
		"-h":      &f.Help,
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			f.Args = append(f.Args, args[i+1:]...)
			break
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			f.Args = append(f.Args, arg)
			continue
		}

		name, value, hasValue := strings.Cut(arg, "=")

		if b, ok := bools[name]; ok {
			if hasValue {
				return nil, fmt.Errorf("flag %s does not take a value", name)
			}
			*b = true
			continue
		}

		if !hasValue {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("flag %s requires a value", name)
			}
			i++
			value = args[i]
		}

		if name == "--baudrate" || name == "-b" {
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("invalid baudrate %q", value)
			}
			f.Baudrate = n
			continue
		}

		s, ok := strs[name]
		if !ok {
			return nil, fmt.Errorf("unknown flag: %s", name)
		}
		*s = value
	}

	return f, nil
}
