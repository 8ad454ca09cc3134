//go:build darwin

package paste

func keystrokeCommand() command {
	return command{
		name: "osascript",
		args: []string{"-e", `tell application "System Events" to keystroke "v" using command down`},
	}
}

func refreshCommand() command {
	return command{
		name: "osascript",
		args: []string{"-e", `tell application "System Events" to get name of first application process whose frontmost is true`},
	}
}
