package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ZebulonRouseFrantzich/kinstall/internal/flasher"
	"github.com/ZebulonRouseFrantzich/kinstall/internal/logging"
	"github.com/ZebulonRouseFrantzich/kinstall/internal/platform"
	"github.com/ZebulonRouseFrantzich/kinstall/internal/release"
	"github.com/ZebulonRouseFrantzich/kinstall/internal/workflow"
)

// runFlash handles the `kinstall flash` subcommand
func runFlash(args []string) error {
	return runInstall(workflow.PlanFlash, args)
}

// runWipe handles the `kinstall wipe` subcommand
func runWipe(args []string) error {
	return runInstall(workflow.PlanWipe, args)
}

// runFetch handles the `kinstall fetch` subcommand
func runFetch(args []string) error {
	return runInstall(workflow.PlanFetch, args)
}

func runInstall(plan workflow.Plan, args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	if f.Help {
		printUsage()
		return nil
	}
	if len(f.Args) > 0 {
		return fmt.Errorf("unexpected argument: %s", f.Args[0])
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := setup(ctx, f, platform.NewDetector())
	if err != nil {
		return err
	}

	installer, err := workflow.NewInstaller(installerOptions(plan, env, f))
	if err != nil {
		return err
	}

	env.logger.Debug("installer_starting", "plan", plan.String())
	return installer.Run(ctx)
}

// installerOptions maps the resolved config onto the workflow.
func installerOptions(plan workflow.Plan, env *runtimeEnv, f *cliFlags) workflow.Options {
	cfg := env.cfg

	execOpts := []flasher.ExecOption{flasher.WithExecLogger(logging.WithComponent("flasher"))}
	if cfg.Port != "" {
		execOpts = append(execOpts, flasher.WithPort(cfg.Port))
	}

	return workflow.Options{
		Plan: plan,
		Request: workflow.Request{
			Device:         cfg.Device,
			Version:        cfg.Version,
			ReleaseBaseURL: cfg.ReleaseBaseURL,
			PublicKeyURL:   cfg.PubkeyURL,
		},
		DestDir:         cfg.DestDir,
		Force:           f.Force,
		Baudrate:        cfg.Baudrate,
		DownloadTimeout: cfg.Timeouts.Download,
		DeviceTimeout:   cfg.Timeouts.Device,
		Downloader: release.NewDownloader(
			release.WithStallTimeout(cfg.Timeouts.Stall),
			release.WithCompletionDelay(cfg.CompletionDelay),
			release.WithLogger(logging.WithComponent("download")),
		),
		Verifier:   release.NewVerifier(release.WithVerifierLogger(logging.WithComponent("verify"))),
		Extractor:  release.NewExtractor(),
		Programmer: flasher.NewExecProgrammer(cfg.Tool, execOpts...),
		Reporter:   newStdoutReporter(f.Yes),
		Logger:     logging.WithComponent("workflow"),
	}
}
