package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"
)

// plainStep is the progress granularity when output is not a terminal.
const plainStep = 10

// terminalReporter prints workflow events as plain lines. Download progress
// redraws a single line with \r, or prints one line per plainStep percent
// when plain is set.
type terminalReporter struct {
	out   io.Writer
	in    *bufio.Reader
	yes   bool
	plain bool

	mu         sync.Mutex
	inProgress bool
	lastPct    int
}

func newTerminalReporter(out io.Writer, in io.Reader, yes bool) *terminalReporter {
	return &terminalReporter{out: out, in: bufio.NewReader(in), yes: yes, lastPct: -1}
}

// newStdoutReporter reports on stdout, switching to plain progress lines
// when stdout is redirected.
func newStdoutReporter(yes bool) *terminalReporter {
	r := newTerminalReporter(os.Stdout, os.Stdin, yes)
	r.plain = !term.IsTerminal(int(os.Stdout.Fd()))
	return r
}

// endLine terminates an open progress line. Callers hold mu.
func (r *terminalReporter) endLine() {
	if r.inProgress {
		fmt.Fprintln(r.out)
		r.inProgress = false
	}
	r.lastPct = -1
}

func (r *terminalReporter) StepEntered(name string) {}

func (r *terminalReporter) Progress(step string, downloaded, total int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if total <= 0 {
		if r.plain {
			return
		}
		fmt.Fprintf(r.out, "\r%s: %s", step, formatBytes(downloaded))
		r.inProgress = true
		return
	}

	pct := int(downloaded * 100 / total)
	if r.plain {
		pct -= pct % plainStep
	}
	if pct == r.lastPct {
		return
	}
	r.lastPct = pct
	if r.plain {
		fmt.Fprintf(r.out, "%s: %3d%% (%s / %s)\n", step, pct, formatBytes(downloaded), formatBytes(total))
		return
	}
	fmt.Fprintf(r.out, "\r%s: %3d%% (%s / %s)", step, pct, formatBytes(downloaded), formatBytes(total))
	r.inProgress = true
}

func (r *terminalReporter) Status(step, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endLine()
	fmt.Fprintln(r.out, msg)
}

func (r *terminalReporter) Output(step, line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endLine()
	fmt.Fprintf(r.out, "  %s\n", line)
}

// Confirm prompts on out and reads a yes/no answer from in. EOF declines.
func (r *terminalReporter) Confirm(prompt string) bool {
	r.mu.Lock()
	r.endLine()
	fmt.Fprintln(r.out, prompt)
	if r.yes {
		fmt.Fprintln(r.out, "Continue? [y/N] y")
		r.mu.Unlock()
		return true
	}
	fmt.Fprint(r.out, "Continue? [y/N] ")
	r.mu.Unlock()

	answer, err := r.in.ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// Failed only closes the progress line; main prints the error.
func (r *terminalReporter) Failed(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endLine()
}

func (r *terminalReporter) Finished(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endLine()
	if msg != "" {
		fmt.Fprintln(r.out, msg)
	}
}

func formatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}
