//go:build darwin

package hotkey

import "golang.design/x/hotkey"

var modifiers = map[string]hotkey.Modifier{
	"cmd":     hotkey.ModCmd,
	"command": hotkey.ModCmd,
	"ctrl":    hotkey.ModCtrl,
	"control": hotkey.ModCtrl,
	"option":  hotkey.ModOption,
	"alt":     hotkey.ModOption,
	"shift":   hotkey.ModShift,
}
