package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Manager owns the step registry and the current step. It is not safe for
// concurrent use: every method must run on the event loop.
type Manager struct {
	steps   map[string]Step
	order   []string
	current string
	sealed  bool
	ctx     context.Context
	err     error
	logger  *slog.Logger
}

// NewManager creates an empty manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		steps:  make(map[string]Step),
		ctx:    context.Background(),
		logger: logger,
	}
}

// Register adds a step. Names are unique and the registry is fixed once
// Start has been called.
func (m *Manager) Register(s Step) error {
	if m.sealed {
		return fmt.Errorf("register %s: %w", s.Name(), ErrRegistrySealed)
	}
	if _, ok := m.steps[s.Name()]; ok {
		return fmt.Errorf("register %s: %w", s.Name(), ErrDuplicateStep)
	}
	m.steps[s.Name()] = s
	m.order = append(m.order, s.Name())
	return nil
}

// Steps returns the registered step names in registration order.
func (m *Manager) Steps() []string {
	return append([]string(nil), m.order...)
}

// Step returns the registered step called name.
func (m *Manager) Step(name string) (Step, bool) {
	s, ok := m.steps[name]
	return s, ok
}

// Current returns the name of the active step, or "" before Start.
func (m *Manager) Current() string {
	return m.current
}

// Err returns the terminal error recorded by Fail.
func (m *Manager) Err() error {
	return m.err
}

// Start seals the registry and enters the first step without a predecessor
// check.
func (m *Manager) Start(ctx context.Context, first string) error {
	s, ok := m.steps[first]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStep, first)
	}
	m.sealed = true
	m.ctx = ctx
	m.current = first
	m.logger.Debug("workflow_started", "step", first)
	return s.Enter(ctx)
}

// Update applies a keyed update to the step called name. The current step
// must be one of that step's predecessors.
func (m *Manager) Update(name, key string, value any) error {
	s, ok := m.steps[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStep, name)
	}
	if !accepts(s, m.current) {
		err := &TransitionError{From: m.current, To: name, Key: key}
		m.logger.Error("illegal_step_update", "from", m.current, "to", name, "key", key)
		return err
	}
	if err := s.Update(key, value); err != nil {
		return fmt.Errorf("update %s.%s: %w", name, key, err)
	}
	return nil
}

// Goto makes name the current step and enters it.
func (m *Manager) Goto(ctx context.Context, name string) error {
	s, ok := m.steps[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStep, name)
	}
	if !accepts(s, m.current) {
		m.logger.Error("illegal_step_transition", "from", m.current, "to", name)
		return &TransitionError{From: m.current, To: name}
	}

	m.logger.Info("step_entered", "step", name, "from", m.current, "direction", string(s.Direction()))
	m.current = name
	return s.Enter(ctx)
}

// Fail records err as the terminal error and enters the error step. Only
// the first failure is kept.
func (m *Manager) Fail(err error) {
	if err == nil {
		return
	}
	if m.err != nil {
		m.logger.Warn("workflow_already_failed", "error", err)
		return
	}
	m.err = err

	if m.current == StepError {
		return
	}
	if gerr := m.Goto(m.ctx, StepError); gerr != nil {
		m.logger.Error("enter_error_step_failed", "error", errors.Join(err, gerr))
	}
}

// advance forwards p to next and enters it, failing the workflow on any error.
func (m *Manager) advance(ctx context.Context, p *Params, next string) {
	if err := p.forward(m, next); err != nil {
		m.Fail(err)
		return
	}
	if err := m.Goto(ctx, next); err != nil {
		m.Fail(err)
	}
}
