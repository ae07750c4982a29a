// Package autostart registers the app to launch at login.
package autostart

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"howett.net/plist"
)

// ErrUnsupported is returned where no LaunchAgent mechanism exists.
var ErrUnsupported = errors.New("autostart: launch at login only available on macOS")

// Manager installs and removes the login item.
type Manager interface {
	IsInstalled() (bool, error)
	Install(execPath string) error
	Uninstall() error
}

// LaunchAgent manages ~/Library/LaunchAgents/<label>.plist.
type LaunchAgent struct {
	label string
	dir   string
	goos  string
}

// NewLaunchAgent returns a LaunchAgent in the user's LaunchAgents directory.
func NewLaunchAgent(label string) (*LaunchAgent, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to locate home dir: %w", err)
	}
	return &LaunchAgent{
		label: label,
		dir:   filepath.Join(home, "Library", "LaunchAgents"),
		goos:  runtime.GOOS,
	}, nil
}

// Path returns the plist location.
func (a *LaunchAgent) Path() string {
	return filepath.Join(a.dir, a.label+".plist")
}

func (a *LaunchAgent) IsInstalled() (bool, error) {
	if a.goos != "darwin" {
		return false, ErrUnsupported
	}
	_, err := os.Stat(a.Path())
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat launch agent: %w", err)
	}
	return true, nil
}

// Install writes a plist that runs execPath at login. An existing plist is
// replaced.
func (a *LaunchAgent) Install(execPath string) error {
	if a.goos != "darwin" {
		return ErrUnsupported
	}
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create launch agents dir: %w", err)
	}
	data, err := encodePlist(a.label, execPath)
	if err != nil {
		return fmt.Errorf("failed to encode launch agent: %w", err)
	}
	if err := os.WriteFile(a.Path(), data, 0o644); err != nil {
		return fmt.Errorf("failed to write launch agent: %w", err)
	}
	return nil
}

// Uninstall removes the plist. Removing a missing plist is not an error.
func (a *LaunchAgent) Uninstall() error {
	if a.goos != "darwin" {
		return ErrUnsupported
	}
	if err := os.Remove(a.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove launch agent: %w", err)
	}
	return nil
}

// launchAgent is the launchd job definition written for the login item.
type launchAgent struct {
	Label            string   `plist:"Label"`
	ProgramArguments []string `plist:"ProgramArguments"`
	RunAtLoad        bool     `plist:"RunAtLoad"`
	ProcessType      string   `plist:"ProcessType"`
}

func encodePlist(label, execPath string) ([]byte, error) {
	return plist.MarshalIndent(launchAgent{
		Label:            label,
		ProgramArguments: []string{execPath},
		RunAtLoad:        true,
		ProcessType:      "Interactive",
	}, plist.XMLFormat, "\t")
}
