//go:build linux

package paste

func keystrokeCommand() command {
	return command{name: "xdotool", args: []string{"key", "--clearmodifiers", "ctrl+v"}}
}

func refreshCommand() command {
	return command{name: "xdotool", args: []string{"getactivewindow"}}
}
