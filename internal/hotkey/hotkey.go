// Package hotkey registers the global quit shortcut.
package hotkey

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.design/x/hotkey"
)

// ErrInvalidShortcut is returned for shortcuts that cannot be parsed.
var ErrInvalidShortcut = errors.New("invalid shortcut")

// Shortcut is a parsed modifier+key combination.
type Shortcut struct {
	Text string
	Mods []hotkey.Modifier
	Key  hotkey.Key
}

func (s Shortcut) String() string { return s.Text }

var keys = map[string]hotkey.Key{
	"a": hotkey.KeyA, "b": hotkey.KeyB, "c": hotkey.KeyC, "d": hotkey.KeyD,
	"e": hotkey.KeyE, "f": hotkey.KeyF, "g": hotkey.KeyG, "h": hotkey.KeyH,
	"i": hotkey.KeyI, "j": hotkey.KeyJ, "k": hotkey.KeyK, "l": hotkey.KeyL,
	"m": hotkey.KeyM, "n": hotkey.KeyN, "o": hotkey.KeyO, "p": hotkey.KeyP,
	"q": hotkey.KeyQ, "r": hotkey.KeyR, "s": hotkey.KeyS, "t": hotkey.KeyT,
	"u": hotkey.KeyU, "v": hotkey.KeyV, "w": hotkey.KeyW, "x": hotkey.KeyX,
	"y": hotkey.KeyY, "z": hotkey.KeyZ,
	"space":  hotkey.KeySpace,
	"return": hotkey.KeyReturn,
	"escape": hotkey.KeyEscape,
	"tab":    hotkey.KeyTab,
}

// Parse reads shortcuts such as "cmd+q" or "ctrl+shift+space". At least one
// modifier is required; a bare key would swallow normal typing.
func Parse(text string) (Shortcut, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(text)), "+")
	if len(parts) < 2 {
		return Shortcut{}, fmt.Errorf("%w %q: need modifier+key", ErrInvalidShortcut, text)
	}

	sc := Shortcut{Text: text}
	seen := make(map[string]bool)
	for _, name := range parts[:len(parts)-1] {
		name = strings.TrimSpace(name)
		mod, ok := modifiers[name]
		if !ok {
			return Shortcut{}, fmt.Errorf("%w %q: unknown modifier %q", ErrInvalidShortcut, text, name)
		}
		if seen[name] {
			return Shortcut{}, fmt.Errorf("%w %q: duplicate modifier %q", ErrInvalidShortcut, text, name)
		}
		seen[name] = true
		sc.Mods = append(sc.Mods, mod)
	}

	name := strings.TrimSpace(parts[len(parts)-1])
	key, ok := keys[name]
	if !ok {
		return Shortcut{}, fmt.Errorf("%w %q: unknown key %q", ErrInvalidShortcut, text, name)
	}
	sc.Key = key
	return sc, nil
}

// Binding is a registrable global hotkey. *hotkey.Hotkey implements it.
type Binding interface {
	Register() error
	Unregister() error
	Keydown() <-chan hotkey.Event
}

// Registrar registers bindings, retrying with exponential backoff.
type Registrar struct {
	attempts int
	delay    time.Duration
	logger   *slog.Logger

	newBinding func(Shortcut) Binding
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewRegistrar returns a Registrar that makes up to attempts tries, waiting
// delay before the second one and doubling after each failure.
func NewRegistrar(attempts int, delay time.Duration, logger *slog.Logger) *Registrar {
	if attempts < 1 {
		attempts = 1
	}
	return &Registrar{
		attempts: attempts,
		delay:    delay,
		logger:   logger,
		newBinding: func(sc Shortcut) Binding {
			return hotkey.New(sc.Mods, sc.Key)
		},
		sleep: sleepContext,
	}
}

// Register registers sc and returns the live binding, or the last
// registration error once all attempts are used.
func (r *Registrar) Register(ctx context.Context, sc Shortcut) (Binding, error) {
	hk := r.newBinding(sc)
	delay := r.delay

	var err error
	for attempt := 0; attempt < r.attempts; attempt++ {
		if err = hk.Register(); err == nil {
			r.logger.Info("global hotkey registered", "shortcut", sc.String(), "attempt", attempt+1)
			return hk, nil
		}

		r.logger.Warn("hotkey registration failed", "shortcut", sc.String(), "attempt", attempt+1, "error", err)
		if attempt == r.attempts-1 {
			break
		}
		if serr := r.sleep(ctx, delay); serr != nil {
			return nil, serr
		}
		delay *= 2
	}
	return nil, fmt.Errorf("register %s after %d attempts: %w", sc, r.attempts, err)
}

// Listen calls fn for every keydown until ctx is done or the binding's
// channel closes.
func Listen(ctx context.Context, b Binding, fn func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-b.Keydown():
			if !ok {
				return
			}
			fn()
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
