// Package paste inserts transcribed text into the focused application by
// writing the clipboard and sending the host paste keystroke.
package paste

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"surasura/internal/ports"
	"surasura/internal/sound"
)

// CuePlayer plays a feedback tone. A nil player is silent.
type CuePlayer interface {
	Play(cue sound.Cue)
}

type command struct {
	name string
	args []string
}

func (c command) empty() bool { return c.name == "" }

// clipboardSettle is how long the clipboard gets to propagate before the
// paste keystroke fires. Pasting straight away drops the text on slower
// hosts.
const clipboardSettle = 80 * time.Millisecond

// accessibilityMarkers are substrings of keystroke-tool output that indicate
// a missing input-automation permission rather than a generic failure.
var accessibilityMarkers = []string{
	"assistive access",
	"not authorized",
	"accessibility",
	"-25211",
	"(-1002)",
}

// Action types text into the focused application. On hosts without a known
// keystroke utility it degrades to clipboard-only: the text is left on the
// clipboard and the paste still counts as delivered.
type Action struct {
	clipboard ports.Clipboard
	runner    func(ctx context.Context, name string, args ...string) (string, error)
	keystroke command
	refresh   command
	player    CuePlayer
	logger    *zap.Logger
	settle    time.Duration
}

func New(clipboard ports.Clipboard, player CuePlayer, logger *zap.Logger) *Action {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Action{
		clipboard: clipboard,
		runner:    runCommand,
		keystroke: keystrokeCommand(),
		refresh:   refreshCommand(),
		player:    player,
		logger:    logger,
		settle:    clipboardSettle,
	}
}

// RefreshContext re-resolves the focused application so the later keystroke
// lands where the user was typing when recording began.
func (a *Action) RefreshContext(ctx context.Context) error {
	if a.refresh.empty() {
		return nil
	}
	out, err := a.runner(ctx, a.refresh.name, a.refresh.args...)
	if err != nil {
		return fmt.Errorf("refresh paste context: %w", err)
	}
	if out != "" {
		a.logger.Debug("paste target resolved", zap.String("target", out))
	}
	return nil
}

func (a *Action) Paste(ctx context.Context, text string, playSound bool) error {
	if text == "" {
		return nil
	}
	if err := a.clipboard.SetText(ctx, text); err != nil {
		return fmt.Errorf("clipboard write: %w", err)
	}

	if a.keystroke.empty() {
		a.playCue(playSound)
		return nil
	}

	if a.settle > 0 {
		select {
		case <-time.After(a.settle):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	out, err := a.runner(ctx, a.keystroke.name, a.keystroke.args...)
	if err != nil {
		return classifyKeystrokeErr(out, err)
	}
	a.playCue(playSound)
	return nil
}

func (a *Action) playCue(playSound bool) {
	if playSound && a.player != nil {
		a.player.Play(sound.CuePaste)
	}
}

func classifyKeystrokeErr(out string, err error) error {
	probe := strings.ToLower(out + " " + err.Error())
	for _, marker := range accessibilityMarkers {
		if strings.Contains(probe, marker) {
			return fmt.Errorf("paste keystroke: %v: %w", err, ports.ErrNoAccessibility)
		}
	}
	if out != "" {
		return fmt.Errorf("paste keystroke: %w: %s", err, out)
	}
	return fmt.Errorf("paste keystroke: %w", err)
}

func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	return strings.TrimSpace(string(out)), err
}
