// Package prefpane opens panes of macOS System Settings.
package prefpane

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/pkg/browser"
)

// ErrUnsupported is returned on platforms without System Settings.
var ErrUnsupported = errors.New("prefpane: system settings only available on macOS")

// Pane identifies a Privacy & Security pane.
type Pane string

const (
	// Security is the Privacy & Security root.
	Security      Pane = ""
	Accessibility Pane = "Privacy_Accessibility"
)

const securityURL = "x-apple.systempreferences:com.apple.preference.security"

// URL returns the x-apple.systempreferences URL for the pane.
func (p Pane) URL() string {
	if p == Security {
		return securityURL
	}
	return securityURL + "?" + string(p)
}

// Launcher opens the Accessibility pane. The Dialogs and the Wizard share one.
type Launcher interface {
	OpenAccessibility(ctx context.Context) error
}

// SystemLauncher opens panes with the default URL handler.
type SystemLauncher struct {
	logger *slog.Logger
	goos   string
	open   func(url string) error
}

// NewSystemLauncher returns a Launcher backed by the OS URL handler.
func NewSystemLauncher(logger *slog.Logger) *SystemLauncher {
	return &SystemLauncher{
		logger: logger,
		goos:   runtime.GOOS,
		open:   browser.OpenURL,
	}
}

// OpenAccessibility opens the Accessibility pane and falls back to the
// Privacy & Security root when the deep link is rejected.
func (l *SystemLauncher) OpenAccessibility(ctx context.Context) error {
	return l.Open(ctx, Accessibility)
}

// Open opens the given pane.
func (l *SystemLauncher) Open(ctx context.Context, pane Pane) error {
	if l.goos != "darwin" {
		return ErrUnsupported
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := l.open(pane.URL())
	if err == nil {
		return nil
	}
	if pane == Security {
		return fmt.Errorf("open %s: %w", pane.URL(), err)
	}

	l.logger.Warn("deep link rejected, opening privacy root", "pane", string(pane), "error", err)
	if err := l.open(Security.URL()); err != nil {
		return fmt.Errorf("open %s: %w", Security.URL(), err)
	}
	return nil
}
