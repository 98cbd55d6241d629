package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ZebulonRouseFrantzich/kinstall/internal/config"
	"github.com/ZebulonRouseFrantzich/kinstall/internal/logging"
	"github.com/ZebulonRouseFrantzich/kinstall/internal/platform"
)

// staticDetector hands the already detected host to the config parser.
type staticDetector struct {
	info *platform.Info
}

func (d staticDetector) Detect(context.Context) (*platform.Info, error) {
	return d.info, nil
}

// runtimeEnv is everything a command needs after flags and config are
// resolved.
type runtimeEnv struct {
	cfg    *config.Config
	host   *platform.Info
	logger *slog.Logger
}

func setup(ctx context.Context, f *cliFlags, detector platform.Detector) (*runtimeEnv, error) {
	host, err := detector.Detect(ctx)
	if err != nil {
		return nil, err
	}

	cfg, err := config.NewLoader(config.NewParser(staticDetector{info: host})).Load(ctx, f.Config)
	if err != nil {
		return nil, fmt.Errorf("load config: %s", config.FormatError(err, f.Debug))
	}

	applyFlags(cfg, f)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// The bare default resolves per host; explicit names and paths are kept.
	if cfg.Tool == config.DefaultTool {
		cfg.Tool = host.ToolName(cfg.Tool)
	}

	level := cfg.LogLevel
	if f.Debug {
		level = "debug"
	}
	logger := logging.Setup(level)
	logger.Debug("config_loaded",
		"os", host.OS,
		"destdir", cfg.DestDir,
		"device", cfg.Device,
		"version", cfg.Version,
		"tool", cfg.Tool)

	return &runtimeEnv{cfg: cfg, host: host, logger: logger}, nil
}

// applyFlags overlays command line values onto cfg.
func applyFlags(cfg *config.Config, f *cliFlags) {
	if f.Device != "" {
		cfg.Device = f.Device
	}
	if f.Version != "" {
		cfg.Version = f.Version
	}
	if f.Port != "" {
		cfg.Port = f.Port
	}
	if f.Baudrate > 0 {
		cfg.Baudrate = f.Baudrate
	}
	if f.DestDir != "" {
		cfg.DestDir = f.DestDir
	}
	if f.Tool != "" {
		cfg.Tool = f.Tool
	}
}
