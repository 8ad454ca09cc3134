//go:build darwin

package sysaudio

func muteCommand() command {
	return command{name: "osascript", args: []string{"-e", "set volume output muted true"}}
}

func unmuteCommand() command {
	return command{name: "osascript", args: []string{"-e", "set volume output muted false"}}
}
