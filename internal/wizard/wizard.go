// Package wizard implements the step-by-step Accessibility permission guide.
//
// The wizard owns the flow state; a View renders it. The App's window is the
// production View: it receives every state change as an event and calls back
// into Next, OpenSettings, Check and Dismiss from the frontend bindings.
package wizard

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/taylor-r-miller/SlowQuit/internal/permissions"
	"github.com/taylor-r-miller/SlowQuit/internal/prefpane"
)

// ErrAlreadyOpen is returned by Show while a previous session is still open.
var ErrAlreadyOpen = errors.New("wizard: already open")

// Step is a page of the wizard.
type Step int

const (
	StepIntro Step = iota
	StepOpenSettings
	StepVerify
	StepDone
)

func (s Step) String() string {
	switch s {
	case StepIntro:
		return "intro"
	case StepOpenSettings:
		return "open-settings"
	case StepVerify:
		return "verify"
	case StepDone:
		return "done"
	}
	return "unknown"
}

// State is what the View renders.
type State struct {
	Step     Step   `json:"step"`
	StepName string `json:"stepName"`
	Granted  bool   `json:"granted"`
	Attempts int    `json:"attempts"`
	Open     bool   `json:"open"`
}

// View renders wizard state. Implementations must not call back into the
// Wizard synchronously from these methods.
type View interface {
	Show(State)
	Update(State)
	Close()
}

// Wizard guides the user through granting Accessibility.
type Wizard struct {
	checker  permissions.Checker
	launcher prefpane.Launcher
	view     View
	logger   *slog.Logger

	mu         sync.Mutex
	state      State
	session    uint64
	completion func(granted bool)
	stop       func() bool
}

// New returns a closed Wizard.
func New(checker permissions.Checker, launcher prefpane.Launcher, view View, logger *slog.Logger) *Wizard {
	return &Wizard{
		checker:  checker,
		launcher: launcher,
		view:     view,
		logger:   logger,
	}
}

// Show opens the wizard. completion is invoked exactly once, on Dismiss or
// when ctx is done, with the permission state queried at that moment.
func (w *Wizard) Show(ctx context.Context, completion func(granted bool)) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state.Open {
		return ErrAlreadyOpen
	}

	w.session++
	session := w.session
	w.completion = completion
	w.state = State{Step: StepIntro, Granted: w.checker.Trusted(), Open: true}
	if w.state.Granted {
		w.state.Step = StepDone
	}
	w.stop = context.AfterFunc(ctx, func() { w.dismiss(session) })

	w.logger.Info("permissions wizard opened", "granted", w.state.Granted)
	w.view.Show(w.snapshot())
	return nil
}

// Next advances one step. On the verify step it re-checks the permission and
// only moves on once it is granted. On the last step it dismisses.
func (w *Wizard) Next() State {
	w.mu.Lock()
	if !w.state.Open {
		defer w.mu.Unlock()
		return w.snapshot()
	}

	switch w.state.Step {
	case StepIntro:
		w.state.Step = StepOpenSettings
	case StepOpenSettings:
		w.state.Step = StepVerify
		w.refresh()
	case StepVerify:
		w.state.Attempts++
		w.refresh()
	case StepDone:
		session := w.session
		w.mu.Unlock()
		w.dismiss(session)
		return w.State()
	}

	st := w.snapshot()
	w.view.Update(st)
	w.mu.Unlock()
	return st
}

// OpenSettings opens the Accessibility pane and moves to the verify step.
func (w *Wizard) OpenSettings(ctx context.Context) State {
	w.OpenAccessibilityPreferences(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.state.Open {
		return w.snapshot()
	}
	if w.state.Step != StepDone {
		w.state.Step = StepVerify
	}
	w.refresh()
	st := w.snapshot()
	w.view.Update(st)
	return st
}

// Check refreshes the granted flag.
func (w *Wizard) Check() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.state.Open {
		return w.snapshot()
	}
	w.refresh()
	st := w.snapshot()
	w.view.Update(st)
	return st
}

// Dismiss closes the wizard and resolves the completion. Dismissing a closed
// wizard does nothing.
func (w *Wizard) Dismiss() {
	w.mu.Lock()
	session := w.session
	w.mu.Unlock()
	w.dismiss(session)
}

func (w *Wizard) dismiss(session uint64) {
	w.mu.Lock()
	if !w.state.Open || w.session != session {
		w.mu.Unlock()
		return
	}

	granted := w.HasAccessibilityPermissions()
	w.state.Open = false
	w.state.Granted = granted
	completion := w.completion
	w.completion = nil
	if w.stop != nil {
		w.stop()
		w.stop = nil
	}
	w.view.Close()
	w.mu.Unlock()

	w.logger.Info("permissions wizard dismissed", "granted", granted)
	if completion != nil {
		completion(granted)
	}
}

// State returns the current state.
func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshot()
}

// HasAccessibilityPermissions queries the OS. It has no side effects.
func (w *Wizard) HasAccessibilityPermissions() bool {
	return w.checker.Trusted()
}

// OpenAccessibilityPreferences opens the Accessibility pane. Failures are
// logged only.
func (w *Wizard) OpenAccessibilityPreferences(ctx context.Context) {
	if err := w.launcher.OpenAccessibility(ctx); err != nil {
		w.logger.Warn("failed to open accessibility preferences", "error", err)
	}
}

// refresh must be called with mu held.
func (w *Wizard) refresh() {
	w.state.Granted = w.checker.Trusted()
	if w.state.Granted && w.state.Step == StepVerify {
		w.state.Step = StepDone
	}
}

func (w *Wizard) snapshot() State {
	st := w.state
	st.StepName = st.Step.String()
	return st
}
