//go:build !darwin && !linux

package sysaudio

func muteCommand() command { return command{} }

func unmuteCommand() command { return command{} }
