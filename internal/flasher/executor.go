package flasher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZebulonRouseFrantzich/kinstall/internal/device"
	"github.com/ZebulonRouseFrantzich/kinstall/internal/loop"
	"github.com/ZebulonRouseFrantzich/kinstall/internal/session"
	"github.com/ZebulonRouseFrantzich/kinstall/internal/trigger"
)

// DefaultBaudrate is the serial speed used when none is configured.
const DefaultBaudrate = 1500000

var firmwarePattern = regexp.MustCompile(`.*\.kfpkg$`)

// Options configures an Executor. Programmer and Poster are required.
type Options struct {
	Programmer Programmer
	// Poster is the event loop that owns the Job.
	Poster loop.Poster

	// OnDone runs on the loop once, when the success marker is seen.
	OnDone func(*Job)
	// OnOutput runs on the loop for each line kept in the output log.
	OnOutput func(line string)
	// OnFault runs on the loop at most once with a *DeviceCommunicationError
	// or an *UnhandledDeviceFault.
	OnFault func(error)

	Logger *slog.Logger
	// Timeout bounds a whole job. Zero means no limit.
	Timeout time.Duration
	// LockDir, when set, holds the session lock for the job's lifetime.
	LockDir string
	// Baudrate used for flashing. Zero means DefaultBaudrate.
	Baudrate int
}

// Executor runs one flash or wipe Job.
type Executor struct {
	opts   Options
	logger *slog.Logger
	job    *Job

	// Immutable copies the worker may read.
	dev      device.Device
	op       Operation
	firmware string
	baudrate int

	done    *trigger.Trigger
	running atomic.Bool
	killed  atomic.Bool
	wg      sync.WaitGroup

	faulted bool // loop only
}

// NewFlasher creates an executor that writes firmware to dev.
func NewFlasher(dev device.Device, firmware string, opts Options) (*Executor, error) {
	if _, err := device.Lookup(dev); err != nil {
		return nil, err
	}

	if !firmwarePattern.MatchString(firmware) {
		return nil, &device.ValidationError{
			Field:  "firmware",
			Value:  firmware,
			Reason: fmt.Sprintf("does not match %s", firmwarePattern),
		}
	}
	if info, err := os.Stat(firmware); err != nil || info.IsDir() {
		return nil, &device.ValidationError{Field: "firmware", Value: firmware, Reason: "file does not exist"}
	}

	baud := opts.Baudrate
	if baud == 0 {
		baud = DefaultBaudrate
	}
	if baud < 0 {
		return nil, &device.ValidationError{Field: "baudrate", Value: strconv.Itoa(baud), Reason: "must be positive"}
	}

	return newExecutor(newJob(dev, OpFlash, firmware, baud), opts)
}

// NewWiper creates an executor that erases dev at baudrate.
func NewWiper(dev device.Device, baudrate int, opts Options) (*Executor, error) {
	if _, err := device.Lookup(dev); err != nil {
		return nil, err
	}
	if baudrate <= 0 {
		return nil, &device.ValidationError{Field: "baudrate", Value: strconv.Itoa(baudrate), Reason: "must be positive"}
	}
	return newExecutor(newJob(dev, OpWipe, "", baudrate), opts)
}

func newExecutor(job *Job, opts Options) (*Executor, error) {
	if opts.Programmer == nil {
		return nil, errors.New("flasher: programmer is required")
	}
	if opts.Poster == nil {
		return nil, errors.New("flasher: event loop is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Executor{
		opts:     opts,
		logger:   logger.With("job_id", job.ID, "op", job.Op.String(), "device", job.Device.String()),
		job:      job,
		dev:      job.Device,
		op:       job.Op,
		firmware: job.Firmware,
		baudrate: job.Baudrate,
	}
	e.done = trigger.New(func() {
		if opts.OnDone != nil {
			opts.OnDone(job)
		}
	})
	return e, nil
}

// Job returns the job. Its state must be read on the event loop.
func (e *Executor) Job() *Job {
	return e.job
}

// Running reports whether the worker goroutine is active.
func (e *Executor) Running() bool {
	return e.running.Load()
}

// Run starts the worker goroutine. Only one worker may be active per job.
func (e *Executor) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrJobRunning
	}

	var lock *session.Lock
	if e.opts.LockDir != "" {
		l, err := session.AcquireLock(ctx, e.opts.LockDir, e.job.ID)
		if err != nil {
			e.running.Store(false)
			return fmt.Errorf("acquire device lock: %w", err)
		}
		lock = l
	}

	e.logger.Info("device_job_started")
	e.wg.Add(1)
	go e.work(ctx, lock)
	return nil
}

// Wait blocks until the worker goroutine has exited. The worker's final
// message is already queued on the loop when Wait returns.
func (e *Executor) Wait() {
	e.wg.Wait()
}

func (e *Executor) work(parent context.Context, lock *session.Lock) {
	defer e.wg.Done()
	defer e.running.Store(false)
	defer func() {
		if err := lock.Release(); err != nil {
			e.logger.Warn("device_lock_release_failed", "error", err)
		}
	}()

	ctx := parent
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, e.opts.Timeout)
		defer cancel()
	}

	err := e.process(ctx)
	if e.killed.Load() {
		if kerr := e.opts.Programmer.CheckKillExit(); kerr != nil {
			e.logger.Error("programmer_still_running", "error", kerr)
		}
	}
	if err == nil {
		err = ctx.Err()
	}

	fault := Fault{JobID: e.job.ID, Err: err}
	if !e.opts.Poster.Post(func() { e.finish(fault) }) {
		// The loop has already stopped, usually because the job finished.
		e.logger.Debug("device_job_result_dropped", "error", err)
	}
}

// process runs the programmer and converts a panic into an error.
func (e *Executor) process(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("programmer panic: %v\n%s", r, debug.Stack())
		}
	}()

	board, port, err := e.opts.Programmer.Configure(ctx, e.dev)
	if err != nil {
		return fmt.Errorf("configure %s: %w", e.dev, err)
	}

	return e.opts.Programmer.Process(ctx, e.args(board, port), e.sink)
}

// args builds the ktool command line.
func (e *Executor) args(board, port string) []string {
	args := []string{"-B", board, "-b", strconv.Itoa(e.baudrate), "-p", port}
	if e.op == OpWipe {
		return append(args, "-E")
	}
	return append(args, e.firmware)
}

// sink runs on the worker goroutine.
func (e *Executor) sink(line string) {
	line = strings.TrimRight(StripANSI(line), " \t")
	if line == "" {
		return
	}
	e.opts.Poster.Post(func() { e.handleLine(line) })
}

// handleLine classifies one output line. Runs on the loop.
func (e *Executor) handleLine(line string) {
	job := e.job

	switch {
	case strings.Contains(line, FailureMarker) && !job.done:
		if job.failed {
			return
		}
		job.failed = true
		job.failMsg = line
		e.logger.Warn("device_greeting_failed", "line", line)
		// The worker confirms the exit once Process returns.
		e.killed.Store(true)
		if err := e.opts.Programmer.Kill(); err != nil {
			e.logger.Error("programmer_kill_failed", "error", err)
		}

	case strings.Contains(line, e.op.SuccessMarker()) && !job.failed:
		if job.done {
			return
		}
		job.done = true
		e.logger.Info("device_job_done")
		e.done.Fire()

	default:
		job.appendOutput(line)
		if e.opts.OnOutput != nil {
			e.opts.OnOutput(line)
		}
	}
}

// finish handles the worker's final message. Runs on the loop.
func (e *Executor) finish(f Fault) {
	job := e.job

	if job.done {
		if f.Err != nil {
			e.logger.Warn("device_fault_after_done", "error", f.Err)
		}
		return
	}

	err := f.Err
	if err == nil {
		if job.failed {
			err = ErrCancelled
		} else {
			err = ErrNoResult
		}
	}

	e.deliver(e.toError(err))
}

func (e *Executor) toError(err error) error {
	job := e.job
	kind := classify(err, job.failed)

	if job.failed {
		return &DeviceCommunicationError{
			Op:      job.Op,
			Device:  job.Device,
			Kind:    kind,
			Message: job.failMsg,
			Hint:    hintFor(kind),
			Err:     err,
		}
	}
	return &UnhandledDeviceFault{
		Op:     job.Op,
		Device: job.Device,
		Kind:   kind,
		Hint:   hintFor(kind),
		Err:    err,
	}
}

// deliver hands err to OnFault exactly once. Runs on the loop.
func (e *Executor) deliver(err error) {
	if e.faulted {
		e.logger.Debug("device_fault_already_delivered", "error", err)
		return
	}
	e.faulted = true

	e.logger.Error("device_job_failed", "error", err)
	if e.opts.OnFault != nil {
		e.opts.OnFault(err)
	}
}
