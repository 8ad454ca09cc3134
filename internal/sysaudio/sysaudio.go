// Package sysaudio mutes system output while the microphone is open and
// restores it afterwards, so playback does not bleed into the recording.
package sysaudio

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"go.uber.org/zap"

	"surasura/internal/sound"
)

// CuePlayer plays a feedback tone. sound.Player satisfies it; a nil player
// is silent.
type CuePlayer interface {
	Play(cue sound.Cue)
}

type command struct {
	name string
	args []string
}

func (c command) empty() bool { return c.name == "" }

// Controller drives the host mixer through small OS utilities. The command
// pair is chosen per GOOS at build time; hosts without a known utility keep
// the cue tones and skip the mixer calls.
type Controller struct {
	runner func(ctx context.Context, name string, args ...string) error
	mute   command
	unmute command
	player CuePlayer
	logger *zap.Logger

	mu    sync.Mutex
	muted bool
}

func New(player CuePlayer, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		runner: runCommand,
		mute:   muteCommand(),
		unmute: unmuteCommand(),
		player: player,
		logger: logger,
	}
}

// Mute silences system output. The start cue is fired first so at least its
// leading edge is audible before the mixer goes quiet.
func (c *Controller) Mute(ctx context.Context, playSound bool) error {
	if playSound && c.player != nil {
		c.player.Play(sound.CueStart)
	}
	if c.mute.empty() {
		return nil
	}
	if err := c.runner(ctx, c.mute.name, c.mute.args...); err != nil {
		return fmt.Errorf("mute system output: %w", err)
	}
	c.mu.Lock()
	c.muted = true
	c.mu.Unlock()
	return nil
}

// Restore unmutes system output if Mute muted it, then plays the stop or
// cancel cue.
func (c *Controller) Restore(ctx context.Context, cancelled bool, playSound bool) error {
	c.mu.Lock()
	muted := c.muted
	c.mu.Unlock()

	var runErr error
	if muted && !c.unmute.empty() {
		if err := c.runner(ctx, c.unmute.name, c.unmute.args...); err != nil {
			runErr = fmt.Errorf("restore system output: %w", err)
		} else {
			c.mu.Lock()
			c.muted = false
			c.mu.Unlock()
		}
	}

	if playSound && c.player != nil {
		if cancelled {
			c.player.Play(sound.CueCancel)
		} else {
			c.player.Play(sound.CueStop)
		}
	}
	return runErr
}

func runCommand(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
