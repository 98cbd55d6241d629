package device

import (
	"errors"
	"fmt"
)

// ErrNoDevice is returned when no serial port for the selected device is
// attached to this computer.
var ErrNoDevice = errors.New("no device detected")

// ValidationError reports an invalid job parameter such as an unsupported
// device identifier or a bad firmware path. It is raised at construction
// time, never mid-operation.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}
