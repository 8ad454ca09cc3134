//go:build linux

package sysaudio

func muteCommand() command {
	return command{name: "pactl", args: []string{"set-sink-mute", "@DEFAULT_SINK@", "1"}}
}

func unmuteCommand() command {
	return command{name: "pactl", args: []string{"set-sink-mute", "@DEFAULT_SINK@", "0"}}
}
