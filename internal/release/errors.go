package release

import (
	"errors"
	"fmt"
)

var (
	// ErrStalled is reported when no data arrives within the stall timeout.
	ErrStalled = errors.New("download stalled")
	// ErrUnverified is returned when unpacking an artifact that did not pass
	// both verification stages.
	ErrUnverified = errors.New("artifact has not been verified")
	// ErrFirmwareNotFound is returned when the archive has no firmware for a device.
	ErrFirmwareNotFound = errors.New("firmware not found in archive")
)

// DownloadError reports a network or I/O fault during a download.
type DownloadError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// VerificationError reports which verification stage rejected an artifact.
type VerificationError struct {
	Stage Stage
	Path  string
	Err   error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%s verification failed for %s: %v", e.Stage, e.Path, e.Err)
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}
