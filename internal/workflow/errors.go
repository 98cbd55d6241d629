package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrIllegalTransition marks an update or transition from a step that is
	// not a predecessor of the target. It is a programming error.
	ErrIllegalTransition = errors.New("illegal step transition")
	// ErrUnknownStep is returned for names that were never registered.
	ErrUnknownStep = errors.New("unknown step")
	// ErrRegistrySealed is returned by Register after Start.
	ErrRegistrySealed = errors.New("step registry is sealed")
	// ErrDuplicateStep is returned when a name is registered twice.
	ErrDuplicateStep = errors.New("step already registered")
	// ErrUnknownKey is returned by a step for an update key it does not accept.
	ErrUnknownKey = errors.New("unknown update key")
	// ErrAborted is returned when the user declines a confirmation.
	ErrAborted = errors.New("aborted by user")
)

// TransitionError reports a rejected update or transition.
type TransitionError struct {
	From string
	To   string
	Key  string // empty for a transition
}

func (e *TransitionError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("cannot update %s.%s from step %q", e.To, e.Key, e.From)
	}
	return fmt.Sprintf("cannot enter %s from step %q", e.To, e.From)
}

func (e *TransitionError) Unwrap() error {
	return ErrIllegalTransition
}
