//go:build darwin

package hotkey

import "golang.design/x/hotkey"

var modifierTable = map[string]hotkey.Modifier{
	"ctrl":   hotkey.ModCtrl,
	"shift":  hotkey.ModShift,
	"alt":    hotkey.ModOption,
	"option": hotkey.ModOption,
	"cmd":    hotkey.ModCmd,
	"super":  hotkey.ModCmd,
	"meta":   hotkey.ModCmd,
}
