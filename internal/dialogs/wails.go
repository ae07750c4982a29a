package dialogs

import (
	"context"

	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// WailsPresenter shows alerts through the Wails runtime. The ctx passed to
// Present must derive from the context Wails hands to OnStartup.
type WailsPresenter struct{}

func (WailsPresenter) Present(ctx context.Context, m Message) (string, error) {
	return runtime.MessageDialog(ctx, runtime.MessageDialogOptions{
		Type:          wailsType(m.Kind),
		Title:         m.Title,
		Message:       m.Text,
		Buttons:       m.Buttons,
		DefaultButton: m.Default,
		CancelButton:  m.Cancel,
	})
}

func wailsType(k Kind) runtime.DialogType {
	switch k {
	case Warning:
		return runtime.WarningDialog
	case Error:
		return runtime.ErrorDialog
	case Question:
		return runtime.QuestionDialog
	}
	return runtime.InfoDialog
}
