package flasher

import (
	"github.com/google/uuid"

	"github.com/ZebulonRouseFrantzich/kinstall/internal/device"
)

// MaxOutputLines is the number of output lines a Job retains.
const MaxOutputLines = 10

// Operation selects what the programmer does to the device.
type Operation int

const (
	// OpFlash writes a kboot.kfpkg firmware package.
	OpFlash Operation = iota
	// OpWipe erases the whole SPI flash.
	OpWipe
)

// String returns the string representation of the operation
func (o Operation) String() string {
	switch o {
	case OpFlash:
		return "flash"
	case OpWipe:
		return "wipe"
	default:
		return "unknown"
	}
}

// FailureMarker is printed by ktool when the device does not answer the
// handshake.
const FailureMarker = "Greeting fail"

// SuccessMarker returns the line fragment that ends a successful operation.
func (o Operation) SuccessMarker() string {
	if o == OpWipe {
		return "SPI Flash erased."
	}
	return "Rebooting..."
}

// Job is the state of one flash or wipe. Its mutable fields are written only
// on the event loop; callers on other goroutines must read them through
// loop.Do.
type Job struct {
	ID       string
	Device   device.Device
	Op       Operation
	Firmware string // flash only
	Baudrate int

	output  []string
	done    bool
	failed  bool
	failMsg string
}

func newJob(dev device.Device, op Operation, firmware string, baudrate int) *Job {
	return &Job{
		ID:       uuid.NewString(),
		Device:   dev,
		Op:       op,
		Firmware: firmware,
		Baudrate: baudrate,
	}
}

// Output returns a copy of the retained output lines, oldest first.
func (j *Job) Output() []string {
	out := make([]string, len(j.output))
	copy(out, j.output)
	return out
}

// Done reports whether the success marker was seen.
func (j *Job) Done() bool { return j.done }

// Failed reports whether the failure marker was seen.
func (j *Job) Failed() bool { return j.failed }

// FailMsg returns the line that carried the failure marker.
func (j *Job) FailMsg() string { return j.failMsg }

func (j *Job) appendOutput(line string) {
	j.output = append(j.output, line)
	if over := len(j.output) - MaxOutputLines; over > 0 {
		j.output = append(j.output[:0], j.output[over:]...)
	}
}
