// Package dialogs presents the alerts and permission flows of the app.
//
// Both permission flows resolve a Completion exactly once. They share a
// single-flight guard: a request made while a flow is on screen joins that
// flow and receives its result instead of opening a second window.
package dialogs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/taylor-r-miller/SlowQuit/internal/autostart"
	"github.com/taylor-r-miller/SlowQuit/internal/permissions"
	"github.com/taylor-r-miller/SlowQuit/internal/prefpane"
	"github.com/taylor-r-miller/SlowQuit/internal/prefs"
)

// Completion receives the outcome of a permission flow.
type Completion func(granted bool)

// WizardRunner opens the permissions wizard. *wizard.Wizard implements it.
type WizardRunner interface {
	Show(ctx context.Context, completion func(granted bool)) error
}

// flightKey is shared by both flows so they exclude each other.
const flightKey = "accessibility"

// Options wires Dialogs to its collaborators.
type Options struct {
	Presenter Presenter
	Checker   permissions.Checker
	Launcher  prefpane.Launcher
	Wizard    WizardRunner
	Prefs     *prefs.Store
	AutoStart autostart.Manager
	// ExecPath is registered as the login item.
	ExecPath string
	// MaxRetries bounds unconfirmed "granted" answers in the simple dialog.
	MaxRetries int
	Logger     *slog.Logger
}

// Dialogs presents alerts and permission flows.
type Dialogs struct {
	presenter  Presenter
	checker    permissions.Checker
	launcher   prefpane.Launcher
	wizard     WizardRunner
	prefs      *prefs.Store
	autostart  autostart.Manager
	execPath   string
	maxRetries int
	logger     *slog.Logger

	flights singleflight.Group
}

// New returns Dialogs wired to opts.
func New(opts Options) *Dialogs {
	maxRetries := opts.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Dialogs{
		presenter:  opts.Presenter,
		checker:    opts.Checker,
		launcher:   opts.Launcher,
		wizard:     opts.Wizard,
		prefs:      opts.Prefs,
		autostart:  opts.AutoStart,
		execPath:   opts.ExecPath,
		maxRetries: maxRetries,
		logger:     opts.Logger,
	}
}

// AskAboutAutoStart asks once whether to launch at login, applies the answer
// and records it so the question is not repeated.
func (d *Dialogs) AskAboutAutoStart(ctx context.Context) error {
	p, err := d.prefs.Load()
	if err != nil {
		return err
	}
	if p.AutoStartAsked {
		d.logger.Debug("auto start already decided", "enabled", p.AutoStart)
		return nil
	}

	button, err := d.presenter.Present(ctx, Message{
		Kind:    Question,
		Title:   title,
		Text:    autoStartText,
		Buttons: []string{ButtonNotNow, ButtonStartAtLogin},
		Default: ButtonStartAtLogin,
		Cancel:  ButtonNotNow,
	})
	if err != nil {
		return fmt.Errorf("auto start prompt: %w", err)
	}

	return d.SetAutoStart(button == ButtonStartAtLogin)
}

// AutoStartEnabled reports whether the login item is installed. Platforms
// without login items report false.
func (d *Dialogs) AutoStartEnabled() (bool, error) {
	installed, err := d.autostart.IsInstalled()
	if errors.Is(err, autostart.ErrUnsupported) {
		return false, nil
	}
	return installed, err
}

// SetAutoStart installs or removes the login item and records the choice,
// so the startup question is not asked afterwards.
func (d *Dialogs) SetAutoStart(enable bool) error {
	var err error
	if enable {
		err = d.autostart.Install(d.execPath)
	} else {
		err = d.autostart.Uninstall()
	}
	switch {
	case errors.Is(err, autostart.ErrUnsupported):
		d.logger.Info("auto start unsupported on this platform")
		enable = false
	case err != nil:
		d.logger.Error("failed to change auto start", "enable", enable, "error", err)
		return err
	}

	if _, err := d.prefs.Update(func(p *prefs.Preferences) {
		p.AutoStartAsked = true
		p.AutoStart = enable
	}); err != nil {
		d.logger.Error("failed to save auto start choice", "error", err)
		return err
	}
	d.logger.Info("auto start decided", "enabled", enable)
	return nil
}

// InformHotkeyRegistrationFailure tells the user the hotkey could not be
// registered. cause, if any, is shown as detail.
func (d *Dialogs) InformHotkeyRegistrationFailure(ctx context.Context, cause error) {
	text := hotkeyFailureText
	if cause != nil {
		d.logger.Error("hotkey registration failed", "error", cause)
		text += "\n\nDetails: " + cause.Error()
	}
	d.inform(ctx, Error, text)
}

// InformAccessibilityRequirement explains why Accessibility is needed.
func (d *Dialogs) InformAccessibilityRequirement(ctx context.Context) {
	d.inform(ctx, Info, requirementText)
}

func (d *Dialogs) inform(ctx context.Context, kind Kind, text string) {
	_, err := d.presenter.Present(ctx, Message{
		Kind:    kind,
		Title:   title,
		Text:    text,
		Buttons: []string{ButtonOK},
		Default: ButtonOK,
	})
	if err != nil {
		d.logger.Warn("failed to present notice", "error", err)
	}
}

// ShowAccessibilityPermissionsDialog runs the simple dialog flow and returns
// immediately. completion gets true only once the OS confirms the grant; a
// "granted" answer the OS does not confirm re-presents the dialog.
func (d *Dialogs) ShowAccessibilityPermissionsDialog(ctx context.Context, completion Completion) {
	d.present(ctx, "dialog", completion, d.runPermissionsDialog)
}

// ShowAccessibilityPermissionsWizard runs the wizard and returns immediately.
// completion receives the wizard's result.
func (d *Dialogs) ShowAccessibilityPermissionsWizard(ctx context.Context, completion Completion) {
	d.present(ctx, "wizard", completion, d.runWizard)
}

// OpenAccessibilityPreferences opens the Accessibility pane. Failures are
// logged only.
func (d *Dialogs) OpenAccessibilityPreferences(ctx context.Context) {
	if err := d.launcher.OpenAccessibility(ctx); err != nil {
		d.logger.Warn("failed to open accessibility preferences", "error", err)
	}
}

func (d *Dialogs) present(ctx context.Context, flow string, completion Completion, run func(context.Context) bool) {
	ch := d.flights.DoChan(flightKey, func() (any, error) {
		d.logger.Info("permission flow started", "flow", flow)
		granted := run(ctx)
		d.logger.Info("permission flow finished", "flow", flow, "granted", granted)
		return granted, nil
	})

	go func() {
		res := <-ch
		granted, _ := res.Val.(bool)
		if res.Shared {
			d.logger.Debug("permission request shared an active flow", "flow", flow, "granted", granted)
		}
		if completion != nil {
			completion(granted)
		}
	}()
}

func (d *Dialogs) runPermissionsDialog(ctx context.Context) bool {
	text := permissionsDialogText
	unconfirmed := 0
	for ctx.Err() == nil {
		button, err := d.presenter.Present(ctx, Message{
			Kind:    Warning,
			Title:   title,
			Text:    text,
			Buttons: []string{ButtonCancel, ButtonGranted, ButtonOpenSettings},
			Default: ButtonOpenSettings,
			Cancel:  ButtonCancel,
		})
		if err != nil {
			d.logger.Warn("failed to present permissions dialog", "error", err)
			return false
		}

		switch button {
		case ButtonOpenSettings:
			d.OpenAccessibilityPreferences(ctx)
			text = afterOpenText
		case ButtonGranted:
			if d.checker.Trusted() {
				return true
			}
			unconfirmed++
			d.logger.Warn("user reported access granted but it is not enabled", "attempt", unconfirmed)
			if unconfirmed >= d.maxRetries {
				return false
			}
			text = notDetectedText
		default:
			return false
		}
	}
	return false
}

func (d *Dialogs) runWizard(ctx context.Context) bool {
	done := make(chan bool, 1)
	if err := d.wizard.Show(ctx, func(granted bool) { done <- granted }); err != nil {
		d.logger.Warn("failed to open permissions wizard", "error", err)
		return d.checker.Trusted()
	}
	return <-done
}
