//go:build !darwin

package hotkey

import "golang.design/x/hotkey"

// Only the modifiers every backend of golang.design/x/hotkey shares.
var modifiers = map[string]hotkey.Modifier{
	"ctrl":    hotkey.ModCtrl,
	"control": hotkey.ModCtrl,
	"shift":   hotkey.ModShift,
}
