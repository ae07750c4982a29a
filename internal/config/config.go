// Package config loads the application settings file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"
)

// AppName names the per-user support directory.
const AppName = "SlowQuit"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Permission flows offered when Accessibility is missing at startup.
const (
	FlowWizard = "wizard"
	FlowDialog = "dialog"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config holds all runtime configuration.
type Config struct {
	PermissionFlow string          `yaml:"permission_flow" json:"permission_flow" validate:"oneof=wizard dialog" jsonschema:"enum=wizard,enum=dialog,description=Flow shown when Accessibility is missing at startup"`
	LogLevel       string          `yaml:"log_level" json:"log_level" validate:"oneof=debug info warn error" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Hotkey         HotkeyConfig    `yaml:"hotkey" json:"hotkey"`
	Dialog         DialogConfig    `yaml:"dialog" json:"dialog"`
	AutoStart      AutoStartConfig `yaml:"autostart" json:"autostart"`
}

// HotkeyConfig describes the global shortcut and its registration retries.
type HotkeyConfig struct {
	Shortcut   string        `yaml:"shortcut" json:"shortcut" validate:"required" jsonschema:"description=Modifiers and key joined by '+',example=cmd+q"`
	Attempts   int           `yaml:"attempts" json:"attempts" validate:"min=1,max=10"`
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay" validate:"gt=0" jsonschema:"type=string,description=Initial backoff between attempts (Go duration),example=1s"`
}

// DialogConfig tunes the simple permission dialog.
type DialogConfig struct {
	// MaxRetries bounds how many unconfirmed "granted" answers are accepted
	// before the dialog gives up.
	MaxRetries int `yaml:"max_retries" json:"max_retries" validate:"min=1,max=10"`
}

// AutoStartConfig names the LaunchAgent used for start at login.
type AutoStartConfig struct {
	Label string `yaml:"label" json:"label" validate:"required,hostname_rfc1123"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		PermissionFlow: FlowWizard,
		LogLevel:       "info",
		Hotkey: HotkeyConfig{
			Shortcut:   "cmd+q",
			Attempts:   3,
			RetryDelay: time.Second,
		},
		Dialog: DialogConfig{
			MaxRetries: 3,
		},
		AutoStart: AutoStartConfig{
			Label: "com.slowquit.agent",
		},
	}
}

// SupportDir returns the per-user directory holding config and preferences.
func SupportDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config dir: %w", err)
	}
	return filepath.Join(dir, AppName), nil
}

// DefaultPath returns the location of config.yaml.
func DefaultPath() (string, error) {
	dir, err := SupportDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()

	if err := Decode(f, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode reads YAML from r into cfg and validates the result. Unknown keys
// are rejected.
func Decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg.Validate()
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Schema returns the JSON schema of the config file, for editor support.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(&Config{})

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}
