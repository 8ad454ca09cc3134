package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"surasura/internal/domain"
	"surasura/internal/ports"
)

// Config controls session behavior. Zero values fall back to defaults so
// tests can construct partial configs.
type Config struct {
	SampleRate    int
	Channels      int
	BitDepth      int
	RecordingsDir string

	// QuickActionThreshold separates a quick tap (cancel / double-tap
	// candidate) from a deliberate press.
	QuickActionThreshold time.Duration
	// DoubleTapWindow is how long a quick release waits for a second tap
	// before the deferred cancel fires.
	DoubleTapWindow time.Duration
	// NoAudioTimeout cancels a session that never produced audio.
	NoAudioTimeout time.Duration
	// StuckTimeout force-resets a session whose final block never arrives.
	StuckTimeout time.Duration
	// EmptyTranscriptAfter is the minimum session duration that warrants an
	// empty-transcript notification.
	EmptyTranscriptAfter time.Duration
	// PasteTimeout bounds the paste action during disposition.
	PasteTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
	if c.BitDepth <= 0 {
		c.BitDepth = 16
	}
	if c.QuickActionThreshold <= 0 {
		c.QuickActionThreshold = 500 * time.Millisecond
	}
	if c.DoubleTapWindow <= 0 {
		c.DoubleTapWindow = 300 * time.Millisecond
	}
	if c.NoAudioTimeout <= 0 {
		c.NoAudioTimeout = 10 * time.Second
	}
	if c.StuckTimeout <= 0 {
		c.StuckTimeout = 30 * time.Second
	}
	if c.EmptyTranscriptAfter <= 0 {
		c.EmptyTranscriptAfter = 2 * time.Second
	}
	if c.PasteTimeout <= 0 {
		c.PasteTimeout = 5 * time.Second
	}
}

// Controller owns the single recording session: lifecycle transitions, key
// input interpretation, audio block buffering and final disposition.
//
// Locking: lifecycleMu serializes the transitions into Recording and into
// Stopping, including their awaited collaborator calls. mu guards the session
// fields and is never held across a collaborator call. The final-block path
// takes only mu, so a session can finish while a rejected lifecycle request
// holds lifecycleMu.
//
// Event sinks are invoked synchronously; they must not call back into
// lifecycle operations on the same goroutine.
type Controller struct {
	pipeline ports.SpeechPipeline
	sysAudio ports.SystemAudio
	paster   ports.PasteAction
	prefs    ports.Preferences
	events   ports.EventSink
	logger   *zap.Logger
	cfg      Config

	lifecycleMu sync.Mutex

	mu             sync.Mutex
	state          domain.SessionState
	mode           domain.RecordingMode
	sessionID      string
	termCode       domain.TerminationCode
	buffer         blockBuffer
	firstChunk     bool
	releasePending bool
	initDone       chan struct{}
	startedAt      time.Time
	stoppedAt      time.Time

	doubleTap sessionTimer
	noAudio   sessionTimer
	stuck     sessionTimer

	now func() time.Time
}

func NewController(
	pipeline ports.SpeechPipeline,
	sysAudio ports.SystemAudio,
	paster ports.PasteAction,
	prefs ports.Preferences,
	events ports.EventSink,
	logger *zap.Logger,
	cfg Config,
) *Controller {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		pipeline: pipeline,
		sysAudio: sysAudio,
		paster:   paster,
		prefs:    prefs,
		events:   events,
		logger:   logger,
		cfg:      cfg,
		state:    domain.SessionStateIdle,
		mode:     domain.ModeIdle,
		termCode: domain.TerminationNone,
		now:      time.Now,
	}
}

// HandlePressDown processes a push-to-talk key press.
func (c *Controller) HandlePressDown(ctx context.Context) {
	c.mu.Lock()
	if c.releasePending {
		// Second tap inside the double-tap window: keep the session alive
		// and convert it to hands-free instead of cancelling.
		c.releasePending = false
		c.mu.Unlock()
		c.doubleTap.clear()
		c.setMode(domain.ModeHandsFree)
		return
	}
	state, mode := c.state, c.mode
	started := c.startedAt
	c.mu.Unlock()

	switch {
	case state == domain.SessionStateIdle:
		c.start(ctx, domain.ModePushToTalk)
	case state == domain.SessionStateRecording && mode == domain.ModeHandsFree:
		// A tap interrupts a hands-free session.
		if c.now().Sub(started) < c.cfg.QuickActionThreshold {
			c.stop(ctx, domain.TerminationQuickRelease)
		} else {
			c.stop(ctx, domain.TerminationNone)
		}
	default:
		c.logger.Debug("press ignored",
			zap.String("state", string(state)),
			zap.String("mode", string(mode)))
	}
}

// HandlePressUp processes a push-to-talk key release.
func (c *Controller) HandlePressUp(ctx context.Context) {
	c.mu.Lock()
	if c.state != domain.SessionStateRecording || c.mode != domain.ModePushToTalk {
		c.mu.Unlock()
		return
	}
	if c.now().Sub(c.startedAt) < c.cfg.QuickActionThreshold {
		// Quick release: hold the cancel until the double-tap window
		// expires so a second tap can convert the session to hands-free.
		c.releasePending = true
		sid := c.sessionID
		c.mu.Unlock()
		c.doubleTap.arm(c.cfg.DoubleTapWindow, func() { c.deferredRelease(sid) })
		return
	}
	c.mu.Unlock()
	c.stop(ctx, domain.TerminationNone)
}

// HandleToggle processes the hands-free toggle key.
func (c *Controller) HandleToggle(ctx context.Context) {
	c.mu.Lock()
	pending := c.releasePending
	c.releasePending = false
	state, mode := c.state, c.mode
	started := c.startedAt
	c.mu.Unlock()

	if pending {
		c.doubleTap.clear()
	}

	switch {
	case state == domain.SessionStateIdle:
		c.start(ctx, domain.ModeHandsFree)
	case state == domain.SessionStateRecording && mode == domain.ModePushToTalk:
		// Convert an in-flight push-to-talk session to hands-free.
		c.setMode(domain.ModeHandsFree)
	case state == domain.SessionStateRecording && mode == domain.ModeHandsFree:
		if c.now().Sub(started) < c.cfg.QuickActionThreshold {
			c.stop(ctx, domain.TerminationQuickRelease)
		} else {
			c.stop(ctx, domain.TerminationNone)
		}
	default:
		c.logger.Debug("toggle ignored",
			zap.String("state", string(state)),
			zap.String("mode", string(mode)))
	}
}

// SignalStart begins a hands-free session on behalf of an external caller.
func (c *Controller) SignalStart(ctx context.Context) {
	c.start(ctx, domain.ModeHandsFree)
}

// SignalStop requests a normal stop of the active session.
func (c *Controller) SignalStop(ctx context.Context) {
	c.stop(ctx, domain.TerminationNone)
}

// SignalCancel discards the active session regardless of mode.
func (c *Controller) SignalCancel(ctx context.Context) {
	c.stop(ctx, domain.TerminationQuickRelease)
}

// SignalError discards the active session with the error code. Hosts call it
// when the capture source fails underneath a live session.
func (c *Controller) SignalError(ctx context.Context) {
	c.stop(ctx, domain.TerminationError)
}

// Dismiss keeps the recorded audio but skips transcription and paste. It is
// only effective while the session waits for its final audio block.
func (c *Controller) Dismiss() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != domain.SessionStateStopping {
		c.logger.Debug("dismiss ignored", zap.String("state", string(c.state)))
		return
	}
	c.termCode = domain.TerminationDismissed
	c.logger.Info("transcription dismissed", zap.String("session_id", c.sessionID))
}

// HandlePasteLast re-pastes the most recent transcription result.
func (c *Controller) HandlePasteLast() {
	text, ok := c.pipeline.LastResult()
	if !ok || text == "" {
		c.logger.Debug("paste-last ignored: no previous transcript")
		return
	}
	c.pasteText("", text)
}

// Status returns a snapshot of the session.
func (c *Controller) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.Status{
		State:     c.state,
		Mode:      c.mode,
		SessionID: c.sessionID,
		Active:    c.state != domain.SessionStateIdle,
	}
}

// Cleanup stops any live recording and forces the controller back to Idle.
// Used on host shutdown; it does not wait for a final audio block.
func (c *Controller) Cleanup(ctx context.Context) {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	if state == domain.SessionStateRecording {
		c.stop(ctx, domain.TerminationNone)
	}

	c.mu.Lock()
	idle := c.state == domain.SessionStateIdle
	sid := c.sessionID
	c.mu.Unlock()

	if !idle {
		c.logger.Info("cleanup forcing reset", zap.String("session_id", sid))
		if err := c.pipeline.Abandon(ctx, sid); err != nil {
			c.logger.Warn("pipeline abandon failed", zap.String("session_id", sid), zap.Error(err))
		}
		c.reset()
	} else {
		c.clearTimers()
	}
}

// start transitions Idle -> Starting -> Recording. Session init (pipeline
// prepare, paste context refresh, output mute) runs before the lifecycle lock
// releases; failures degrade the session but never block it.
func (c *Controller) start(ctx context.Context, mode domain.RecordingMode) bool {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	c.mu.Lock()
	if c.state != domain.SessionStateIdle {
		state := c.state
		c.mu.Unlock()
		c.logger.Debug("start rejected: session already live", zap.String("state", string(state)))
		return false
	}
	c.state = domain.SessionStateStarting
	c.mu.Unlock()

	c.events.StateChanged(domain.SessionStateStarting)
	// Move the widget next to the caret before recording begins.
	c.events.Notification(domain.NoticeReposition, nil)

	sid := uuid.New().String()
	initDone := make(chan struct{})

	c.mu.Lock()
	c.sessionID = sid
	c.mode = mode
	c.termCode = domain.TerminationNone
	c.buffer.reset()
	c.firstChunk = false
	c.releasePending = false
	c.initDone = initDone
	c.startedAt = c.now()
	c.state = domain.SessionStateRecording
	c.mu.Unlock()

	c.events.ModeChanged(mode)
	c.events.StateChanged(domain.SessionStateRecording)

	c.noAudio.arm(c.cfg.NoAudioTimeout, func() { c.noAudioExpired(sid) })

	playSound := c.prefs.SoundEnabled()
	if err := c.pipeline.Prepare(ctx, sid); err != nil {
		c.logger.Warn("pipeline prepare failed", zap.String("session_id", sid), zap.Error(err))
	}
	if err := c.paster.RefreshContext(ctx); err != nil {
		c.logger.Warn("paste context refresh failed", zap.String("session_id", sid), zap.Error(err))
	}
	if err := c.sysAudio.Mute(ctx, playSound); err != nil {
		c.logger.Warn("system output mute failed", zap.String("session_id", sid), zap.Error(err))
	}
	close(initDone)

	c.logger.Info("recording started",
		zap.String("session_id", sid),
		zap.String("mode", string(mode)))
	return true
}

// stop transitions Recording -> Stopping with the given termination code and
// arms the stuck-state timer. The session then waits for the final audio
// block to run its disposition.
func (c *Controller) stop(ctx context.Context, code domain.TerminationCode) bool {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	c.mu.Lock()
	if c.state != domain.SessionStateRecording {
		state := c.state
		c.mu.Unlock()
		c.logger.Debug("stop rejected: not recording", zap.String("state", string(state)))
		return false
	}
	sid := c.sessionID
	c.state = domain.SessionStateStopping
	c.termCode = code
	c.stoppedAt = c.now()
	c.mode = domain.ModeIdle
	c.releasePending = false
	c.mu.Unlock()

	c.doubleTap.clear()
	c.noAudio.clear()

	c.events.StateChanged(domain.SessionStateStopping)
	c.events.ModeChanged(domain.ModeIdle)

	playSound := c.prefs.SoundEnabled()
	cancelled := code.IsCancel()
	if err := c.sysAudio.Restore(ctx, cancelled, playSound); err != nil {
		c.logger.Warn("system output restore failed", zap.String("session_id", sid), zap.Error(err))
	}
	if cancelled {
		if err := c.pipeline.Abandon(ctx, sid); err != nil {
			c.logger.Warn("pipeline abandon failed", zap.String("session_id", sid), zap.Error(err))
		}
	}

	// Safety net: if the audio source never delivers its final block, the
	// stuck timer forces the controller back to Idle.
	c.stuck.arm(c.cfg.StuckTimeout, func() { c.stuckExpired(sid) })

	// The final block can land while this transition is still finishing; do
	// not leave a stuck timer armed for a session that already reset.
	c.mu.Lock()
	if c.state != domain.SessionStateStopping || c.sessionID != sid {
		c.stuck.clear()
	}
	c.mu.Unlock()

	c.logger.Info("recording stopping",
		zap.String("session_id", sid),
		zap.String("code", string(code)))
	return true
}

// SubmitAudioBlock ingests one block from the audio source. Non-final blocks
// are buffered and forwarded while Recording; the final block triggers the
// session disposition.
func (c *Controller) SubmitAudioBlock(samples []float32, final bool) {
	c.mu.Lock()
	if c.state != domain.SessionStateRecording && c.state != domain.SessionStateStopping {
		c.mu.Unlock()
		return
	}
	initDone := c.initDone
	c.mu.Unlock()

	// Session init may still be in flight; ingestion waits for it so the
	// pipeline never sees a chunk before Prepare.
	if initDone != nil {
		<-initDone
	}

	c.mu.Lock()
	if c.state != domain.SessionStateRecording && c.state != domain.SessionStateStopping {
		c.mu.Unlock()
		return
	}

	firstNow := false
	if len(samples) > 0 && !c.firstChunk {
		c.firstChunk = true
		firstNow = true
	}

	if final {
		c.buffer.append(samples)
		sid := c.sessionID
		code := c.termCode
		started := c.startedAt
		c.mu.Unlock()

		if firstNow {
			c.noAudio.clear()
		}
		if code == domain.TerminationNone && len(samples) > 0 {
			if err := c.pipeline.ProcessChunk(context.Background(), sid, copyBlock(samples), started); err != nil {
				c.logger.Warn("final chunk forward failed", zap.String("session_id", sid), zap.Error(err))
			}
		}
		c.finishSession()
		return
	}

	switch c.state {
	case domain.SessionStateRecording:
		c.buffer.append(samples)
		sid := c.sessionID
		code := c.termCode
		started := c.startedAt
		c.mu.Unlock()

		if firstNow {
			c.noAudio.clear()
		}
		if code == domain.TerminationNone && len(samples) > 0 {
			if err := c.pipeline.ProcessChunk(context.Background(), sid, copyBlock(samples), started); err != nil {
				c.logger.Warn("chunk forward failed", zap.String("session_id", sid), zap.Error(err))
			}
		}
	default:
		// Stopping: past the accumulation window, non-final blocks drop.
		c.mu.Unlock()
		if firstNow {
			c.noAudio.clear()
		}
	}
}

func (c *Controller) deferredRelease(sid string) {
	c.mu.Lock()
	if !c.releasePending || c.sessionID != sid {
		c.mu.Unlock()
		return
	}
	c.releasePending = false
	c.mu.Unlock()

	c.stop(context.Background(), domain.TerminationQuickRelease)
}

func (c *Controller) noAudioExpired(sid string) {
	c.mu.Lock()
	stale := c.sessionID != sid || c.state != domain.SessionStateRecording || c.firstChunk
	c.mu.Unlock()
	if stale {
		return
	}

	c.logger.Info("no audio received, cancelling", zap.String("session_id", sid))
	if c.stop(context.Background(), domain.TerminationNoAudio) {
		c.events.NoAudioDetected()
	}
}

func (c *Controller) stuckExpired(sid string) {
	c.mu.Lock()
	if c.sessionID != sid || c.state != domain.SessionStateStopping {
		c.mu.Unlock()
		return
	}
	c.buffer.reset()
	c.mu.Unlock()

	c.logger.Warn("final audio block never arrived, forcing reset", zap.String("session_id", sid))
	if err := c.pipeline.Abandon(context.Background(), sid); err != nil {
		c.logger.Warn("pipeline abandon failed", zap.String("session_id", sid), zap.Error(err))
	}
	c.reset()
}

func (c *Controller) setMode(mode domain.RecordingMode) {
	c.mu.Lock()
	if c.mode == mode {
		c.mu.Unlock()
		return
	}
	sid := c.sessionID
	c.mode = mode
	c.mu.Unlock()

	c.logger.Info("recording mode changed",
		zap.String("session_id", sid),
		zap.String("mode", string(mode)))
	c.events.ModeChanged(mode)
}

// reset returns the controller to Idle and clears every per-session field.
func (c *Controller) reset() {
	c.mu.Lock()
	prevMode := c.mode
	c.state = domain.SessionStateIdle
	c.mode = domain.ModeIdle
	c.sessionID = ""
	c.termCode = domain.TerminationNone
	c.buffer.reset()
	c.firstChunk = false
	c.releasePending = false
	c.initDone = nil
	c.mu.Unlock()

	c.clearTimers()

	if prevMode != domain.ModeIdle {
		c.events.ModeChanged(domain.ModeIdle)
	}
	c.events.StateChanged(domain.SessionStateIdle)
}

func (c *Controller) clearTimers() {
	c.doubleTap.clear()
	c.noAudio.clear()
	c.stuck.clear()
}

func copyBlock(samples []float32) []float32 {
	cp := make([]float32, len(samples))
	copy(cp, samples)
	return cp
}
