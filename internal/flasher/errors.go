package flasher

import (
	"context"
	"errors"
	"fmt"

	"github.com/ZebulonRouseFrantzich/kinstall/internal/device"
)

// Hint is appended to faults caused by a missing device.
const Hint = "Ensure that you have selected the correct device and that your computer has successfully detected it."

var (
	// ErrJobRunning is returned by Run while the job's worker is active.
	ErrJobRunning = errors.New("device job already running")
	// ErrCancelled is returned by a Programmer whose process was killed.
	ErrCancelled = errors.New("operation cancelled")
	// ErrNoResult is the fault of a tool that exited without printing either marker.
	ErrNoResult = errors.New("programmer exited without reporting a result")
)

// FaultKind buckets worker faults for the user.
type FaultKind int

const (
	FaultUnknown FaultKind = iota
	FaultNoDevice
	FaultCancelled
)

// String returns the string representation of the fault kind
func (k FaultKind) String() string {
	switch k {
	case FaultNoDevice:
		return "no_device"
	case FaultCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Fault is the message a worker posts to the event loop when it ends
// without success.
type Fault struct {
	JobID string
	Err   error
}

// classify picks the bucket for a fault. failed reports whether the failure
// marker was seen before the worker ended.
func classify(err error, failed bool) FaultKind {
	switch {
	case errors.Is(err, device.ErrNoDevice):
		return FaultNoDevice
	case failed,
		errors.Is(err, ErrCancelled),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return FaultCancelled
	default:
		return FaultUnknown
	}
}

func hintFor(kind FaultKind) string {
	if kind == FaultNoDevice {
		return Hint
	}
	return ""
}

// DeviceCommunicationError reports a job ended by the device's failure marker.
type DeviceCommunicationError struct {
	Op      Operation
	Device  device.Device
	Kind    FaultKind
	Message string // the line carrying the marker
	Hint    string
	Err     error
}

func (e *DeviceCommunicationError) Error() string {
	msg := fmt.Sprintf("%s failed: %s", e.Op, e.Message)
	if e.Hint != "" {
		msg += "\n\n" + e.Hint
	}
	return msg
}

func (e *DeviceCommunicationError) Unwrap() error {
	return e.Err
}

// UnhandledDeviceFault reports any other fault raised by the worker.
type UnhandledDeviceFault struct {
	Op     Operation
	Device device.Device
	Kind   FaultKind
	Hint   string
	Err    error
}

func (e *UnhandledDeviceFault) Error() string {
	msg := fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	if e.Hint != "" {
		msg += "\n\n" + e.Hint
	}
	return msg
}

func (e *UnhandledDeviceFault) Unwrap() error {
	return e.Err
}
