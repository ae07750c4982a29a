package dialogs

import (
	"context"

	"github.com/taylor-r-miller/SlowQuit/internal/osascript"
)

// ScriptPresenter shows alerts with `display dialog`. It needs no app window
// and backs headless mode.
type ScriptPresenter struct {
	runner *osascript.Runner
}

// NewScriptPresenter returns a presenter backed by runner.
func NewScriptPresenter(runner *osascript.Runner) *ScriptPresenter {
	return &ScriptPresenter{runner: runner}
}

func (p *ScriptPresenter) Present(ctx context.Context, m Message) (string, error) {
	buttons := m.Buttons
	if len(buttons) == 0 {
		buttons = []string{ButtonOK}
	}
	return p.runner.Dialog(ctx, osascript.DialogOptions{
		Title:   m.Title,
		Message: m.Text,
		Buttons: buttons,
		Default: m.Default,
		Cancel:  m.Cancel,
		Icon:    scriptIcon(m.Kind),
	})
}

func scriptIcon(k Kind) osascript.Icon {
	switch k {
	case Warning:
		return osascript.IconCaution
	case Error:
		return osascript.IconStop
	case Info:
		return osascript.IconNote
	}
	return osascript.IconNone
}
