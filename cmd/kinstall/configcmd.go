package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ZebulonRouseFrantzich/kinstall/internal/config"
	"github.com/ZebulonRouseFrantzich/kinstall/internal/platform"
)

// runConfig handles `kinstall config`, `kinstall config init` and
// `kinstall config path`.
func runConfig(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	if f.Help {
		printConfigHelp()
		return nil
	}

	path := f.Config
	if path == "" {
		if path, err = config.DefaultPath(); err != nil {
			return err
		}
	}

	action := ""
	if len(f.Args) > 0 {
		action = f.Args[0]
	}

	switch action {
	case "path":
		fmt.Println(path)
		return nil

	case "init":
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Printf("Created %s\n", path)
		return nil

	case "", "show":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		env, err := setup(ctx, f, platform.NewDetector())
		if err != nil {
			return err
		}
		code, err := config.NewGenerator().Generate(env.cfg)
		if err != nil {
			return err
		}
		fmt.Printf("-- effective configuration (%s)\n", path)
		fmt.Print(code)
		return nil

	default:
		printConfigHelp()
		return fmt.Errorf("unknown config action: %s", action)
	}
}

func printConfigHelp() {
	fmt.Println("Usage: kinstall config [show|init|path] [--config <file>]")
	fmt.Println()
	fmt.Println("  show   Print the effective configuration (default)")
	fmt.Println("  init   Write a default config file")
	fmt.Println("  path   Print the config file location")
}
