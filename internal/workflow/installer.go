package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ZebulonRouseFrantzich/kinstall/internal/flasher"
	"github.com/ZebulonRouseFrantzich/kinstall/internal/loop"
	"github.com/ZebulonRouseFrantzich/kinstall/internal/release"
)

// Plan selects which steps an installer run visits.
type Plan int

const (
	// PlanFlash downloads, verifies and unpacks a release, then flashes it.
	PlanFlash Plan = iota
	// PlanWipe confirms with the user, then erases the device.
	PlanWipe
	// PlanFetch downloads, verifies and unpacks a release without a device.
	PlanFetch
)

// String returns the string representation of the plan
func (p Plan) String() string {
	switch p {
	case PlanFlash:
		return "flash"
	case PlanWipe:
		return "wipe"
	case PlanFetch:
		return "fetch"
	default:
		return "unknown"
	}
}

// Request is what the user asked for.
type Request struct {
	Device         string
	Version        string
	ReleaseBaseURL string
	PublicKeyURL   string
}

// Options configures an Installer.
type Options struct {
	Plan    Plan
	Request Request

	// DestDir receives downloads and the unpacked release.
	DestDir string
	// Force re-downloads files already present in DestDir.
	Force    bool
	Baudrate int

	DownloadTimeout time.Duration
	DeviceTimeout   time.Duration

	Downloader *release.Downloader
	Verifier   *release.Verifier
	Extractor  *release.Extractor
	Programmer flasher.Programmer
	Reporter   Reporter
	Logger     *slog.Logger
}

// Installer runs one plan on its own event loop.
type Installer struct {
	opts    Options
	loop    *loop.Loop
	manager *Manager
	result  chan error

	// device is the executor of the device step last entered. Loop only.
	device *flasher.Executor
}

// NewInstaller wires every step for opts.Plan.
func NewInstaller(opts Options) (*Installer, error) {
	if opts.DestDir == "" {
		return nil, errors.New("installer: destination directory is required")
	}
	if opts.Plan != PlanFetch && opts.Programmer == nil {
		return nil, fmt.Errorf("installer: %s needs a programmer", opts.Plan)
	}
	if opts.Request.ReleaseBaseURL == "" {
		opts.Request.ReleaseBaseURL = release.DefaultBaseURL
	}
	if opts.Request.PublicKeyURL == "" {
		opts.Request.PublicKeyURL = release.DefaultPublicKeyURL
	}
	if opts.Baudrate == 0 {
		opts.Baudrate = flasher.DefaultBaudrate
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Reporter == nil {
		opts.Reporter = NopReporter{}
	}
	if opts.Downloader == nil {
		opts.Downloader = release.NewDownloader(release.WithLogger(opts.Logger))
	}
	if opts.Verifier == nil {
		opts.Verifier = release.NewVerifier(release.WithVerifierLogger(opts.Logger))
	}
	if opts.Extractor == nil {
		opts.Extractor = release.NewExtractor()
	}

	i := &Installer{
		opts:    opts,
		loop:    loop.New(loop.DefaultQueueSize),
		manager: NewManager(opts.Logger),
		result:  make(chan error, 1),
	}

	e := &env{
		manager:         i.manager,
		loop:            i.loop,
		reporter:        opts.Reporter,
		logger:          opts.Logger,
		downloader:      opts.Downloader,
		verifier:        opts.Verifier,
		extractor:       opts.Extractor,
		programmer:      opts.Programmer,
		destDir:         opts.DestDir,
		force:           opts.Force,
		baudrate:        opts.Baudrate,
		downloadTimeout: opts.DownloadTimeout,
		deviceTimeout:   opts.DeviceTimeout,
		finish:          i.finish,
		track:           func(ex *flasher.Executor) { i.device = ex },
	}

	afterUnzip := StepFlash
	if opts.Plan == PlanFetch {
		afterUnzip = StepDone
	}

	steps := []Step{
		newMainStep(e, opts.Plan, opts.Request),
		newDownloadStep(e, StepDownloadRelease, StepMain, StepDownloadChecksum, KeyArchive,
			func(info *release.DownloadInfo) string { return info.URL }),
		newDownloadStep(e, StepDownloadChecksum, StepDownloadRelease, StepDownloadSignature, KeyChecksum,
			func(info *release.DownloadInfo) string { return info.ChecksumURL }),
		newDownloadStep(e, StepDownloadSignature, StepDownloadChecksum, StepDownloadPubkey, KeySignature,
			func(info *release.DownloadInfo) string { return info.SignatureURL }),
		newDownloadStep(e, StepDownloadPubkey, StepDownloadSignature, StepVerify, KeyPublicKey,
			func(info *release.DownloadInfo) string { return info.PublicKeyURL }),
		newVerifyStep(e),
		newUnzipStep(e, afterUnzip),
		newFlashStep(e),
		newWarningStep(e),
		newWipeStep(e),
		newDoneStep(e),
		newErrorStep(e),
	}
	for _, s := range steps {
		if err := i.manager.Register(s); err != nil {
			return nil, err
		}
	}

	return i, nil
}

// Manager returns the installer's step manager.
func (i *Installer) Manager() *Manager {
	return i.manager
}

// Run executes the plan until the done or error step and returns the
// terminal error, or nil on success. Cancelling ctx fails the workflow;
// a device job in flight is left to report its own cancellation, and Run
// returns only after its worker has exited.
func (i *Installer) Run(ctx context.Context) error {
	i.loop.Post(func() {
		if err := i.manager.Start(ctx, StepMain); err != nil {
			i.manager.Fail(err)
		}
	})

	stop := context.AfterFunc(ctx, func() {
		i.loop.Post(func() { i.interrupt(context.Cause(ctx)) })
	})
	defer stop()

	// The loop outlives ctx so the device worker's final result is delivered.
	_ = i.loop.Run(context.Background())

	if i.device != nil {
		i.device.Wait()
	}

	select {
	case res := <-i.result:
		return res
	default:
		return errors.New("installer: loop stopped without a result")
	}
}

// interrupt handles cancellation of the run context. Runs on the loop.
func (i *Installer) interrupt(cause error) {
	if i.device != nil && i.device.Running() {
		i.opts.Logger.Info("installer_interrupted_waiting_for_device",
			"step", i.manager.Current(), "job", i.device.Job().ID)
		return
	}
	i.manager.Fail(cause)
}

// finish records the outcome and stops the loop. Runs on the loop.
func (i *Installer) finish(err error) {
	select {
	case i.result <- err:
	default:
	}
	i.loop.Stop()
}
