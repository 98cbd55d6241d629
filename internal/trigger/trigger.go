// Package trigger provides a one-shot completion signal used to advance the
// installer workflow once background work has finished.
package trigger

import "sync"

// Trigger holds at most one callback and invokes it at most once per arming.
// Firing a disarmed Trigger is a no-op, so it may be fired from
// several code paths.
type Trigger struct {
	mu sync.Mutex
	fn func()
}

// New creates a Trigger armed with fn. A nil fn yields a disarmed Trigger.
func New(fn func()) *Trigger {
	return &Trigger{fn: fn}
}

// Arm registers fn as the callback, replacing any callback not yet fired.
func (t *Trigger) Arm(fn func()) {
	t.mu.Lock()
	t.fn = fn
	t.mu.Unlock()
}

// Armed reports whether a callback is registered and has not fired yet.
func (t *Trigger) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fn != nil
}

// Fire invokes the registered callback and disarms the Trigger.
// It returns false when the Trigger was not armed.
func (t *Trigger) Fire() bool {
	t.mu.Lock()
	fn := t.fn
	t.fn = nil
	t.mu.Unlock()

	if fn == nil {
		return false
	}

	// Called outside the lock so the callback may re-arm.
	fn()
	return true
}
