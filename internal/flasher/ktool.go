package flasher

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/ZebulonRouseFrantzich/kinstall/internal/device"
)

const (
	// DefaultTool is the programmer executable looked up on PATH.
	DefaultTool = "ktool"
	// DefaultKillTimeout bounds CheckKillExit.
	DefaultKillTimeout = 5 * time.Second

	maxLineLength = 1024 * 1024
)

// Output fragments ktool prints when the serial port cannot be opened.
var noDeviceMarkers = []string{
	"StopIteration",
	"could not open port",
	"No such file or directory: '/dev/",
}

// ExecProgrammer implements Programmer by running the ktool executable.
type ExecProgrammer struct {
	tool        string
	port        string
	finder      *device.PortFinder
	killTimeout time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	proc    *exec.Cmd
	exited  chan struct{}
	killed  atomic.Bool
	noPorts atomic.Bool
}

// ExecOption configures an ExecProgrammer.
type ExecOption func(*ExecProgrammer)

// WithPort skips discovery and uses port for every device.
func WithPort(port string) ExecOption {
	return func(p *ExecProgrammer) { p.port = port }
}

// WithPortFinder replaces the sysfs port finder.
func WithPortFinder(f *device.PortFinder) ExecOption {
	return func(p *ExecProgrammer) { p.finder = f }
}

// WithKillTimeout sets how long CheckKillExit waits.
func WithKillTimeout(d time.Duration) ExecOption {
	return func(p *ExecProgrammer) { p.killTimeout = d }
}

// WithExecLogger sets the logger.
func WithExecLogger(l *slog.Logger) ExecOption {
	return func(p *ExecProgrammer) { p.logger = l }
}

// NewExecProgrammer creates a programmer running tool. An empty tool uses
// DefaultTool.
func NewExecProgrammer(tool string, opts ...ExecOption) *ExecProgrammer {
	if tool == "" {
		tool = DefaultTool
	}
	p := &ExecProgrammer{
		tool:        tool,
		finder:      device.NewPortFinder(),
		killTimeout: DefaultKillTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Configure returns the ktool board name and the serial port for dev.
func (p *ExecProgrammer) Configure(ctx context.Context, dev device.Device) (string, string, error) {
	spec, err := device.Lookup(dev)
	if err != nil {
		return "", "", err
	}

	if p.port != "" {
		return spec.Board, p.port, nil
	}

	port, err := p.finder.Find(dev)
	if err != nil {
		return "", "", err
	}
	p.logger.Debug("serial_port_found", "device", dev.String(), "port", port)
	return spec.Board, port, nil
}

// Process runs ktool with args. Stdout and stderr are merged and split on
// both \n and \r so progress redraws arrive as separate lines.
func (p *ExecProgrammer) Process(ctx context.Context, args []string, sink LineSink) error {
	bin, err := exec.LookPath(p.tool)
	if err != nil {
		return fmt.Errorf("programmer %s not found: %w", p.tool, err)
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Cancel = func() error {
		p.killed.Store(true)
		return killTree(cmd)
	}
	cmd.WaitDelay = p.killTimeout

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	p.mu.Lock()
	if p.proc != nil {
		p.mu.Unlock()
		return ErrJobRunning
	}
	if err := cmd.Start(); err != nil {
		p.mu.Unlock()
		return fmt.Errorf("start %s: %w", p.tool, err)
	}
	exited := make(chan struct{})
	p.proc = cmd
	p.exited = exited
	p.killed.Store(false)
	p.noPorts.Store(false)
	p.mu.Unlock()

	p.logger.Debug("programmer_started", "tool", bin, "args", strings.Join(args, " "), "pid", cmd.Process.Pid)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	scanner.Split(scanLines)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if hasNoDeviceMarker(line) {
			p.noPorts.Store(true)
		}
		sink(line)
	}
	scanErr := scanner.Err()

	waitErr := cmd.Wait()
	close(exited)

	p.mu.Lock()
	p.proc = nil
	p.mu.Unlock()

	switch {
	case p.killed.Load():
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", ErrCancelled, ctxErr)
		}
		return ErrCancelled
	case waitErr != nil && p.noPorts.Load():
		return fmt.Errorf("%s: %w", p.tool, device.ErrNoDevice)
	case waitErr != nil:
		return fmt.Errorf("%s: %w", p.tool, waitErr)
	case scanErr != nil:
		return fmt.Errorf("read %s output: %w", p.tool, scanErr)
	}
	return nil
}

// Kill terminates the running tool and all of its children.
func (p *ExecProgrammer) Kill() error {
	p.mu.Lock()
	cmd := p.proc
	p.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	p.killed.Store(true)
	return killTree(cmd)
}

// CheckKillExit waits for a killed tool to exit. A process left as a zombie
// counts as exited.
func (p *ExecProgrammer) CheckKillExit() error {
	p.mu.Lock()
	cmd, exited := p.proc, p.exited
	p.mu.Unlock()

	if cmd == nil || exited == nil {
		return nil
	}

	select {
	case <-exited:
		return nil
	case <-time.After(p.killTimeout):
	}

	proc, err := process.NewProcess(int32(cmd.Process.Pid))
	if err != nil {
		// Gone entirely.
		return nil
	}
	statuses, err := proc.Status()
	if err == nil && len(statuses) > 0 && statuses[0] == process.Zombie {
		return nil
	}
	if running, _ := proc.IsRunning(); running {
		return fmt.Errorf("%s (pid %d) did not exit after kill", p.tool, cmd.Process.Pid)
	}
	return nil
}

// killTree kills the process and its descendants, children first.
func killTree(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}

	proc, err := process.NewProcess(int32(cmd.Process.Pid))
	if err != nil {
		return ignoreFinished(cmd.Process.Kill())
	}

	killDescendants(proc)
	if err := proc.Kill(); err != nil {
		return ignoreFinished(cmd.Process.Kill())
	}
	return nil
}

func killDescendants(proc *process.Process) {
	children, err := proc.Children()
	if err != nil {
		return
	}
	for _, child := range children {
		killDescendants(child)
		_ = child.Kill()
	}
}

func ignoreFinished(err error) error {
	if err == nil || errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func hasNoDeviceMarker(line string) bool {
	for _, marker := range noDeviceMarkers {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}

// scanLines is bufio.ScanLines that also breaks on a bare \r.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
