// Package osascript runs AppleScript through the osascript tool. It backs the
// headless dialog presenter used when no app window exists.
package osascript

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrUserCanceled reports that the user pressed the dialog's cancel button.
var ErrUserCanceled = errors.New("osascript: user canceled")

// userCanceledCode is the AppleScript error number for "User canceled."
const userCanceledCode = "(-128)"

// Runner executes AppleScript source.
type Runner struct {
	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewRunner returns a Runner that shells out to osascript.
func NewRunner() *Runner {
	return &Runner{run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return exec.CommandContext(ctx, name, args...).CombinedOutput()
	}}
}

// Run executes script and returns its trimmed output.
func (r *Runner) Run(ctx context.Context, script string) (string, error) {
	output, err := r.run(ctx, "osascript", "-e", script)
	out := strings.TrimSpace(string(output))
	if err != nil {
		if strings.Contains(out, userCanceledCode) {
			return "", ErrUserCanceled
		}
		return "", fmt.Errorf("failed to run osascript: %w: %s", err, out)
	}
	return out, nil
}

// Icon selects the dialog icon.
type Icon string

const (
	IconNone    Icon = ""
	IconNote    Icon = "note"
	IconCaution Icon = "caution"
	IconStop    Icon = "stop"
)

// DialogOptions describes a `display dialog` invocation.
type DialogOptions struct {
	Title   string
	Message string
	Buttons []string
	Default string
	Cancel  string
	Icon    Icon
}

// Script renders the AppleScript for the dialog.
func (o DialogOptions) Script() string {
	var b strings.Builder
	b.WriteString("display dialog ")
	b.WriteString(Quote(o.Message))
	if o.Title != "" {
		b.WriteString(" with title ")
		b.WriteString(Quote(o.Title))
	}
	if len(o.Buttons) > 0 {
		quoted := make([]string, len(o.Buttons))
		for i, btn := range o.Buttons {
			quoted[i] = Quote(btn)
		}
		b.WriteString(" buttons {")
		b.WriteString(strings.Join(quoted, ", "))
		b.WriteString("}")
	}
	if o.Default != "" {
		b.WriteString(" default button ")
		b.WriteString(Quote(o.Default))
	}
	if o.Cancel != "" {
		b.WriteString(" cancel button ")
		b.WriteString(Quote(o.Cancel))
	}
	if o.Icon != IconNone {
		b.WriteString(" with icon ")
		b.WriteString(string(o.Icon))
	}
	return b.String()
}

// Dialog shows a modal dialog and returns the label of the pressed button.
// Pressing the cancel button returns opts.Cancel and no error.
func (r *Runner) Dialog(ctx context.Context, opts DialogOptions) (string, error) {
	out, err := r.Run(ctx, opts.Script())
	if errors.Is(err, ErrUserCanceled) && opts.Cancel != "" {
		return opts.Cancel, nil
	}
	if err != nil {
		return "", err
	}

	const prefix = "button returned:"
	for _, field := range strings.Split(out, ",") {
		field = strings.TrimSpace(field)
		if strings.HasPrefix(field, prefix) {
			return strings.TrimPrefix(field, prefix), nil
		}
	}
	return "", fmt.Errorf("unexpected dialog result: %q", out)
}

// Quote returns s as an AppleScript string literal.
func Quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
