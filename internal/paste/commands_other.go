//go:build !darwin && !linux

package paste

func keystrokeCommand() command { return command{} }

func refreshCommand() command { return command{} }
