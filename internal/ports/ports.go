package ports

import (
	"context"
	"errors"
	"time"

	"surasura/internal/domain"
)

// ErrNoAccessibility marks paste failures caused by a missing accessibility
// or input-automation permission, as opposed to generic paste failures.
var ErrNoAccessibility = errors.New("accessibility permission unavailable")

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	BlockFrames int
	InputFormat string
	InputDevice string
}

// BlockSink receives capture blocks in delivery order. Exactly one block is
// marked final, after which no further blocks are delivered.
type BlockSink func(samples []float32, final bool)

// CaptureSession is a live microphone capture.
type CaptureSession interface {
	// Stop ends capture, flushes pending frames, and delivers the final block.
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig, sink BlockSink) (CaptureSession, error)
}

// SpeechPipeline is the speech-to-text collaborator. Prepare, ProcessChunk
// and Abandon are best-effort: the session proceeds when they fail.
type SpeechPipeline interface {
	// Prepare resets per-session pipeline state before recording begins.
	Prepare(ctx context.Context, sessionID string) error
	// ProcessChunk forwards one audio block for incremental processing.
	ProcessChunk(ctx context.Context, sessionID string, samples []float32, startedAt time.Time) error
	// Finalize ends the session and returns the transcript, which may be empty.
	// audioPath is the finished recording on disk, or "" when none was written.
	Finalize(ctx context.Context, sessionID string, audioPath string, startedAt, stoppedAt time.Time) (string, error)
	// Abandon discards pipeline resources held for the session.
	Abandon(ctx context.Context, sessionID string) error
	// LastResult returns the most recent non-empty Finalize result.
	LastResult() (string, bool)
}

// SystemAudio mutes and restores system output around a recording session.
type SystemAudio interface {
	Mute(ctx context.Context, playSound bool) error
	Restore(ctx context.Context, cancelled bool, playSound bool) error
}

// PasteAction inserts transcribed text into the focused application.
type PasteAction interface {
	// RefreshContext re-resolves the focused element before recording begins.
	RefreshContext(ctx context.Context) error
	// Paste types text into the focused application. Implementations return
	// an error wrapping ErrNoAccessibility when permission is the cause.
	Paste(ctx context.Context, text string, playSound bool) error
}

// Preferences exposes user settings, read fresh per side-effecting action.
type Preferences interface {
	SoundEnabled() bool
}

// Clipboard writes text into the system clipboard.
type Clipboard interface {
	SetText(ctx context.Context, text string) error
}

// EventSink emits session lifecycle events to observers.
type EventSink interface {
	StateChanged(state domain.SessionState)
	ModeChanged(mode domain.RecordingMode)
	RecordingCancelled(sessionID string, code domain.TerminationCode)
	TranscriptionDismissed(sessionID string, audioPath string)
	Notification(kind domain.NotificationType, payload map[string]string)
	NoAudioDetected()
}

// FanoutSink broadcasts events to every sink in registration order.
func FanoutSink(sinks ...EventSink) EventSink {
	return fanoutSink(sinks)
}

type fanoutSink []EventSink

func (f fanoutSink) StateChanged(state domain.SessionState) {
	for _, s := range f {
		s.StateChanged(state)
	}
}

func (f fanoutSink) ModeChanged(mode domain.RecordingMode) {
	for _, s := range f {
		s.ModeChanged(mode)
	}
}

func (f fanoutSink) RecordingCancelled(sessionID string, code domain.TerminationCode) {
	for _, s := range f {
		s.RecordingCancelled(sessionID, code)
	}
}

func (f fanoutSink) TranscriptionDismissed(sessionID string, audioPath string) {
	for _, s := range f {
		s.TranscriptionDismissed(sessionID, audioPath)
	}
}

func (f fanoutSink) Notification(kind domain.NotificationType, payload map[string]string) {
	for _, s := range f {
		s.Notification(kind, payload)
	}
}

func (f fanoutSink) NoAudioDetected() {
	for _, s := range f {
		s.NoAudioDetected()
	}
}
