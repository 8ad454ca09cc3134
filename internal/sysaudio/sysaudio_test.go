package sysaudio

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"surasura/internal/sound"
)

type commandRecorder struct {
	mu    sync.Mutex
	calls []command
	err   error
}

func (r *commandRecorder) run(_ context.Context, name string, args ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, command{name: name, args: args})
	return r.err
}

func (r *commandRecorder) snapshot() []command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]command, len(r.calls))
	copy(out, r.calls)
	return out
}

type cueRecorder struct {
	mu   sync.Mutex
	cues []sound.Cue
}

func (r *cueRecorder) Play(cue sound.Cue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cues = append(r.cues, cue)
}

func (r *cueRecorder) snapshot() []sound.Cue {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sound.Cue, len(r.cues))
	copy(out, r.cues)
	return out
}

func newTestController(runner *commandRecorder, cues *cueRecorder) *Controller {
	ctrl := New(cues, zap.NewNop())
	ctrl.runner = runner.run
	ctrl.mute = command{name: "mute-tool", args: []string{"on"}}
	ctrl.unmute = command{name: "mute-tool", args: []string{"off"}}
	return ctrl
}

func TestMuteThenRestoreRunsMixerCommands(t *testing.T) {
	t.Parallel()

	runner := &commandRecorder{}
	cues := &cueRecorder{}
	ctrl := newTestController(runner, cues)

	require.NoError(t, ctrl.Mute(context.Background(), true))
	require.NoError(t, ctrl.Restore(context.Background(), false, true))

	calls := runner.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, []string{"on"}, calls[0].args)
	assert.Equal(t, []string{"off"}, calls[1].args)
	assert.Equal(t, []sound.Cue{sound.CueStart, sound.CueStop}, cues.snapshot())
}

func TestRestoreWithoutPriorMuteSkipsMixer(t *testing.T) {
	t.Parallel()

	runner := &commandRecorder{}
	cues := &cueRecorder{}
	ctrl := newTestController(runner, cues)

	require.NoError(t, ctrl.Restore(context.Background(), true, true))

	assert.Empty(t, runner.snapshot())
	assert.Equal(t, []sound.Cue{sound.CueCancel}, cues.snapshot())
}

func TestCuesSuppressedWhenSoundDisabled(t *testing.T) {
	t.Parallel()

	runner := &commandRecorder{}
	cues := &cueRecorder{}
	ctrl := newTestController(runner, cues)

	require.NoError(t, ctrl.Mute(context.Background(), false))
	require.NoError(t, ctrl.Restore(context.Background(), false, false))

	assert.Len(t, runner.snapshot(), 2)
	assert.Empty(t, cues.snapshot())
}

func TestMuteSurfacesMixerFailure(t *testing.T) {
	t.Parallel()

	runner := &commandRecorder{err: errors.New("no mixer")}
	cues := &cueRecorder{}
	ctrl := newTestController(runner, cues)

	err := ctrl.Mute(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mute system output")

	// The mixer state is unknown, so a later restore must not assume muted.
	require.NoError(t, func() error {
		runner.err = nil
		return ctrl.Restore(context.Background(), false, false)
	}())
	assert.Len(t, runner.snapshot(), 1)
}

func TestUnsupportedHostSkipsMixerButKeepsCues(t *testing.T) {
	t.Parallel()

	runner := &commandRecorder{}
	cues := &cueRecorder{}
	ctrl := newTestController(runner, cues)
	ctrl.mute = command{}
	ctrl.unmute = command{}

	require.NoError(t, ctrl.Mute(context.Background(), true))
	require.NoError(t, ctrl.Restore(context.Background(), true, true))

	assert.Empty(t, runner.snapshot())
	assert.Equal(t, []sound.Cue{sound.CueStart, sound.CueCancel}, cues.snapshot())
}
