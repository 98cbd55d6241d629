package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"time"

	"github.com/ZebulonRouseFrantzich/kinstall/internal/device"
	"github.com/ZebulonRouseFrantzich/kinstall/internal/flasher"
	"github.com/ZebulonRouseFrantzich/kinstall/internal/loop"
	"github.com/ZebulonRouseFrantzich/kinstall/internal/release"
)

// WipeWarning is shown before a wipe is started.
const WipeWarning = "This will erase ALL data on the device, including the firmware. Continue?"

// env is shared by every step of one installer run.
type env struct {
	manager    *Manager
	loop       loop.Poster
	reporter   Reporter
	logger     *slog.Logger
	downloader *release.Downloader
	verifier   *release.Verifier
	extractor  *release.Extractor
	programmer flasher.Programmer

	destDir         string
	force           bool
	baudrate        int
	downloadTimeout time.Duration
	deviceTimeout   time.Duration

	// finish ends the run; nil means success.
	finish func(error)
	// track records a device executor once its worker has started.
	track  func(*flasher.Executor)
}

// post runs fn on the loop, failing the workflow if it returns an error.
func (e *env) post(fn func() error) {
	e.loop.Post(func() {
		if err := fn(); err != nil {
			e.manager.Fail(err)
		}
	})
}

// mainStep validates the request and picks the first step of the plan.
type mainStep struct {
	base
	env     *env
	plan    Plan
	request Request
	params  Params
}

func newMainStep(e *env, plan Plan, req Request) *mainStep {
	return &mainStep{
		base:    base{name: StepMain, preds: []string{StepMain, StepDone, StepError}, dir: DirectionLeft},
		env:     e,
		plan:    plan,
		request: req,
	}
}

func (s *mainStep) Update(key string, value any) error {
	return s.params.set(key, value)
}

func (s *mainStep) Enter(ctx context.Context) error {
	s.env.reporter.StepEntered(s.name)

	dev, err := device.Parse(s.request.Device)
	if err != nil {
		return err
	}
	s.params.Device = dev

	if s.plan == PlanWipe {
		s.env.manager.advance(ctx, &s.params, StepWarningWipe)
		return nil
	}

	info, err := release.ConstructDownloadInfo(s.request.ReleaseBaseURL, s.request.PublicKeyURL, s.request.Version)
	if err != nil {
		return err
	}
	s.params.Info = info
	s.env.manager.advance(ctx, &s.params, StepDownloadRelease)
	return nil
}

// downloadStep fetches one release file through the Download Engine.
type downloadStep struct {
	base
	env    *env
	next   string
	key    string
	url    func(*release.DownloadInfo) string
	params Params
}

func newDownloadStep(e *env, name, prev, next, key string, url func(*release.DownloadInfo) string) *downloadStep {
	return &downloadStep{
		base: base{name: name, preds: []string{prev, name}, dir: DirectionLeft},
		env:  e,
		next: next,
		key:  key,
		url:  url,
	}
}

func (s *downloadStep) Update(key string, value any) error {
	return s.params.set(key, value)
}

func (s *downloadStep) Enter(ctx context.Context) error {
	s.env.reporter.StepEntered(s.name)

	if s.params.Info == nil {
		return fmt.Errorf("%s: no release selected", s.name)
	}

	src := s.url(s.params.Info)
	name, err := fileName(src)
	if err != nil {
		return err
	}
	dest := filepath.Join(s.env.destDir, name)

	sess := release.NewSession(src, dest, release.SessionHooks{
		Progress: func(downloaded, total int64) {
			s.env.loop.Post(func() { s.env.reporter.Progress(s.name, downloaded, total) })
		},
		Status: func(msg string) {
			s.env.loop.Post(func() { s.env.reporter.Status(s.name, msg) })
		},
		Complete: func() {
			s.env.post(func() error {
				if err := s.params.set(s.key, dest); err != nil {
					return err
				}
				s.env.manager.advance(ctx, &s.params, s.next)
				return nil
			})
		},
	})
	sess.Force = s.env.force

	go func() {
		dctx := ctx
		if s.env.downloadTimeout > 0 {
			var cancel context.CancelFunc
			dctx, cancel = context.WithTimeout(ctx, s.env.downloadTimeout)
			defer cancel()
		}
		if err := s.env.downloader.Start(dctx, sess); err != nil {
			s.env.post(func() error { return err })
		}
	}()
	return nil
}

// fileName returns the last path element of a download URL.
func fileName(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", raw, err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		return "", fmt.Errorf("no file name in %s", raw)
	}
	return name, nil
}

// verifyStep runs the checksum and signature stages.
type verifyStep struct {
	base
	env    *env
	params Params
}

func newVerifyStep(e *env) *verifyStep {
	return &verifyStep{
		base: base{name: StepVerify, preds: []string{StepDownloadPubkey, StepVerify}, dir: DirectionLeft},
		env:  e,
	}
}

func (s *verifyStep) Update(key string, value any) error {
	return s.params.set(key, value)
}

func (s *verifyStep) Enter(ctx context.Context) error {
	s.env.reporter.StepEntered(s.name)

	artifact, err := release.NewArtifact(s.params.Archive, s.params.Checksum, s.params.Signature, s.params.PublicKey)
	if err != nil {
		return err
	}

	go func() {
		verr := s.env.verifier.Verify(artifact)
		s.env.post(func() error {
			for _, r := range artifact.Results() {
				if r.Success {
					s.env.reporter.Status(s.name, fmt.Sprintf("%s verified (%s)", r.Stage, r.Method))
				}
			}
			if verr != nil {
				return verr
			}
			s.params.Artifact = artifact
			s.env.manager.advance(ctx, &s.params, StepUnzip)
			return nil
		})
	}()
	return nil
}

// unzipStep extracts the device firmware from the verified archive.
type unzipStep struct {
	base
	env    *env
	next   string
	params Params
}

func newUnzipStep(e *env, next string) *unzipStep {
	return &unzipStep{
		base: base{name: StepUnzip, preds: []string{StepVerify, StepUnzip}, dir: DirectionLeft},
		env:  e,
		next: next,
	}
}

func (s *unzipStep) Update(key string, value any) error {
	return s.params.set(key, value)
}

func (s *unzipStep) Enter(ctx context.Context) error {
	s.env.reporter.StepEntered(s.name)

	artifact, dev := s.params.Artifact, s.params.Device
	go func() {
		firmware, err := s.env.extractor.Unpack(artifact, s.env.destDir, dev)
		s.env.post(func() error {
			if err != nil {
				return err
			}
			s.params.Firmware = firmware
			s.env.reporter.Status(s.name, fmt.Sprintf("%s extracted", firmware))
			if s.next == StepDone {
				s.params.Message = fmt.Sprintf("Firmware for %s is ready at %s", dev, firmware)
			}
			s.env.manager.advance(ctx, &s.params, s.next)
			return nil
		})
	}()
	return nil
}

// deviceStep runs a flash or wipe executor. The executor is built as soon as
// the step has everything it needs so construction errors surface from Update.
type deviceStep struct {
	base
	env      *env
	op       flasher.Operation
	params   Params
	executor *flasher.Executor
}

func newFlashStep(e *env) *deviceStep {
	return &deviceStep{
		base: base{name: StepFlash, preds: []string{StepUnzip, StepFlash}, dir: DirectionLeft},
		env:  e,
		op:   flasher.OpFlash,
	}
}

func newWipeStep(e *env) *deviceStep {
	return &deviceStep{
		base: base{name: StepWipe, preds: []string{StepWarningWipe, StepWipe}, dir: DirectionLeft},
		env:  e,
		op:   flasher.OpWipe,
	}
}

func (s *deviceStep) Update(key string, value any) error {
	if err := s.params.set(key, value); err != nil {
		return err
	}
	if key != KeyDevice && key != KeyFirmware {
		return nil
	}
	return s.build()
}

func (s *deviceStep) build() error {
	if s.params.Device == "" || (s.op == flasher.OpFlash && s.params.Firmware == "") {
		return nil
	}

	opts := flasher.Options{
		Programmer: s.env.programmer,
		Poster:     s.env.loop,
		OnDone: func(job *flasher.Job) {
			msg := fmt.Sprintf("%s %s finished", job.Device, job.Op)
			if err := s.env.manager.Update(StepDone, KeyMessage, msg); err != nil {
				s.env.manager.Fail(err)
				return
			}
			if err := s.env.manager.Goto(s.env.manager.ctx, StepDone); err != nil {
				s.env.manager.Fail(err)
			}
		},
		OnOutput: func(line string) { s.env.reporter.Output(s.name, line) },
		OnFault:  s.env.manager.Fail,
		Logger:   s.env.logger,
		Timeout:  s.env.deviceTimeout,
		LockDir:  s.env.destDir,
		Baudrate: s.env.baudrate,
	}

	var (
		ex  *flasher.Executor
		err error
	)
	if s.op == flasher.OpFlash {
		ex, err = flasher.NewFlasher(s.params.Device, s.params.Firmware, opts)
	} else {
		ex, err = flasher.NewWiper(s.params.Device, s.env.baudrate, opts)
	}
	if err != nil {
		return err
	}
	s.executor = ex
	return nil
}

func (s *deviceStep) Enter(ctx context.Context) error {
	s.env.reporter.StepEntered(s.name)
	if s.executor == nil {
		return fmt.Errorf("%s: device job not configured", s.name)
	}
	s.env.reporter.Status(s.name, "PLEASE DO NOT UNPLUG YOUR DEVICE")
	if err := s.executor.Run(ctx); err != nil {
		return err
	}
	if s.env.track != nil {
		s.env.track(s.executor)
	}
	return nil
}

// warningStep asks the user to confirm a wipe.
type warningStep struct {
	base
	env    *env
	params Params
}

func newWarningStep(e *env) *warningStep {
	return &warningStep{
		base: base{name: StepWarningWipe, preds: []string{StepMain, StepWarningWipe}, dir: DirectionLeft},
		env:  e,
	}
}

func (s *warningStep) Update(key string, value any) error {
	return s.params.set(key, value)
}

func (s *warningStep) Enter(ctx context.Context) error {
	s.env.reporter.StepEntered(s.name)
	go func() {
		ok := s.env.reporter.Confirm(WipeWarning)
		s.env.post(func() error {
			if !ok {
				return ErrAborted
			}
			s.env.manager.advance(ctx, &s.params, StepWipe)
			return nil
		})
	}()
	return nil
}

// doneStep ends a successful run.
type doneStep struct {
	base
	env    *env
	params Params
}

func newDoneStep(e *env) *doneStep {
	return &doneStep{
		base: base{name: StepDone, preds: []string{StepUnzip, StepFlash, StepWipe, StepDone}, dir: DirectionRight},
		env:  e,
	}
}

func (s *doneStep) Update(key string, value any) error {
	if key != KeyMessage && key != KeyCanvas && key != KeyLocale {
		// Carried fields from the previous step are not needed here.
		return nil
	}
	return s.params.set(key, value)
}

func (s *doneStep) Enter(ctx context.Context) error {
	s.env.reporter.StepEntered(s.name)
	s.env.reporter.Finished(s.params.Message)
	s.env.finish(nil)
	return nil
}

// errorStep reports the terminal error. Every step may fail into it.
type errorStep struct {
	base
	env *env
}

func newErrorStep(e *env) *errorStep {
	return &errorStep{
		base: base{name: StepError, preds: []string{AnyStep}, dir: DirectionRight},
		env:  e,
	}
}

func (s *errorStep) Update(key string, value any) error {
	if key == KeyCanvas || key == KeyLocale {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownKey, key)
}

func (s *errorStep) Enter(ctx context.Context) error {
	s.env.reporter.StepEntered(s.name)
	err := s.env.manager.Err()
	if err == nil {
		err = errors.New("workflow entered the error step without a failure")
	}
	s.env.reporter.Failed(err)
	s.env.finish(err)
	return nil
}
