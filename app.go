package main

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"surasura/internal/bootstrap"
	"surasura/internal/config"
	"surasura/internal/domain"
	"surasura/internal/hotkey"
	"surasura/internal/ports"
	"surasura/internal/usecase"
)

const (
	eventState     = "surasura:state"
	eventMode      = "surasura:mode"
	eventCancelled = "surasura:cancelled"
	eventDismissed = "surasura:dismissed"
	eventNotice    = "surasura:notice"
	eventNoAudio   = "surasura:noaudio"
)

// App is the Wails application root. It exposes the session control surface
// to the widget, re-emits session events as runtime events, and drives the
// microphone capture source in step with the session state.
type App struct {
	ctx context.Context

	controller *usecase.Controller
	capture    ports.AudioCapture
	hotkeys    *hotkey.Watcher
	logger     *zap.Logger
	cfg        config.Config
	bootErr    error

	captureMu      sync.Mutex
	captureSession ports.CaptureSession
}

func NewApp() *App {
	return &App{logger: zap.NewNop()}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a, &wailsClipboard{})
	if err != nil {
		a.bootErr = err
		a.Notification(domain.NoticeStartupFailed, map[string]string{"error": err.Error()})
		return
	}

	a.controller = services.Controller
	a.capture = services.Capture
	a.logger = services.Logger
	a.cfg = services.Config
	a.StateChanged(domain.SessionStateIdle)

	if a.cfg.Hotkey.Enabled {
		watcher, err := hotkey.NewWatcher(hotkey.Options{
			PTTChord:    a.cfg.Hotkey.PTTKey,
			ToggleChord: a.cfg.Hotkey.ToggleKey,
		}, a.controller, a.logger)
		if err != nil {
			// The widget buttons still work without global hotkeys.
			a.logger.Warn("hotkey registration failed", zap.Error(err))
		} else {
			watcher.Start()
			a.hotkeys = watcher
		}
	}
}

func (a *App) shutdown(_ context.Context) {
	if a.hotkeys != nil {
		a.hotkeys.Stop()
	}
	if a.controller != nil {
		a.controller.Cleanup(context.Background())
	}
	a.stopCaptureSession()
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// PressDown forwards a push-to-talk key press.
func (a *App) PressDown() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.controller.HandlePressDown(a.ctx)
	return nil
}

// PressUp forwards a push-to-talk key release.
func (a *App) PressUp() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.controller.HandlePressUp(a.ctx)
	return nil
}

// Toggle forwards the hands-free toggle key.
func (a *App) Toggle() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.controller.HandleToggle(a.ctx)
	return nil
}

// StartRecording begins a hands-free session.
func (a *App) StartRecording() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.controller.SignalStart(a.ctx)
	return nil
}

// StopRecording requests a normal stop.
func (a *App) StopRecording() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.controller.SignalStop(a.ctx)
	return nil
}

// CancelRecording discards the active session.
func (a *App) CancelRecording() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.controller.SignalCancel(a.ctx)
	return nil
}

// DismissTranscription keeps the audio but skips transcription and paste.
func (a *App) DismissTranscription() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.controller.Dismiss()
	return nil
}

// PasteLast re-pastes the most recent transcript.
func (a *App) PasteLast() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.controller.HandlePasteLast()
	return nil
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.controller == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.SessionStateIdle, Active: false, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.SessionStateIdle, Active: false}
	}
	return a.controller.Status()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	info := map[string]string{
		"provider":      a.cfg.Pipeline.Provider,
		"audioBackend":  a.cfg.Audio.Backend,
		"sampleRate":    strconv.Itoa(a.cfg.Audio.SampleRate),
		"recordingsDir": a.cfg.Paths.RecordingsDir,
		"pttHotkey":     a.cfg.Hotkey.PTTKey,
		"toggleHotkey":  a.cfg.Hotkey.ToggleKey,
	}
	switch a.cfg.Pipeline.Provider {
	case "deepgram":
		info["model"] = a.cfg.Pipeline.Deepgram.Model
		info["language"] = a.cfg.Pipeline.Deepgram.Language
	case "whisperd":
		info["endpoint"] = a.cfg.Pipeline.Whisperd.Endpoint
		info["language"] = a.cfg.Pipeline.Whisperd.Language
	}
	return info
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// StateChanged re-emits session state to the widget and drives the capture
// source: entering Recording opens the microphone, entering Stopping closes
// it, which in turn delivers the final audio block.
func (a *App) StateChanged(state domain.SessionState) {
	switch state {
	case domain.SessionStateRecording:
		go a.startCaptureSession()
	case domain.SessionStateStopping:
		go a.stopCaptureSession()
	}

	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventState, map[string]string{"state": string(state)})
}

// ModeChanged re-emits the recording mode.
func (a *App) ModeChanged(mode domain.RecordingMode) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventMode, map[string]string{"mode": string(mode)})
}

// RecordingCancelled re-emits session cancellation with its code.
func (a *App) RecordingCancelled(sessionID string, code domain.TerminationCode) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventCancelled, map[string]string{
		"sessionId": sessionID,
		"code":      string(code),
	})
}

// TranscriptionDismissed re-emits a dismissal with the saved audio path.
func (a *App) TranscriptionDismissed(sessionID string, audioPath string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventDismissed, map[string]string{
		"sessionId": sessionID,
		"audioPath": audioPath,
	})
}

// Notification re-emits widget notifications with a display message.
func (a *App) Notification(kind domain.NotificationType, payload map[string]string) {
	if a.ctx == nil {
		return
	}
	data := map[string]string{
		"kind":    string(kind),
		"message": noticeMessage(kind),
	}
	for k, v := range payload {
		data[k] = v
	}
	runtime.EventsEmit(a.ctx, eventNotice, data)
}

// NoAudioDetected re-emits the no-audio cancellation cause.
func (a *App) NoAudioDetected() {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventNoAudio, map[string]string{})
}

// startCaptureSession opens the microphone for the live session. It re-checks
// the session state around the (slow) device open so a session that already
// ended does not leave a dangling capture.
func (a *App) startCaptureSession() {
	a.captureMu.Lock()
	defer a.captureMu.Unlock()

	if a.captureSession != nil {
		return
	}
	if a.controller.Status().State != domain.SessionStateRecording {
		return
	}

	session, err := a.capture.Start(a.ctx, ports.AudioConfig{
		SampleRate:  a.cfg.Audio.SampleRate,
		Channels:    a.cfg.Audio.Channels,
		BlockFrames: a.cfg.Audio.BlockFrames,
		InputFormat: a.cfg.Audio.InputFormat,
		InputDevice: a.cfg.Audio.InputDevice,
	}, a.submitBlock)
	if err != nil {
		a.logger.Warn("capture start failed", zap.Error(err))
		// End the session now; the empty final block lets disposition run
		// instead of waiting out the stuck timer.
		a.controller.SignalError(a.ctx)
		a.controller.SubmitAudioBlock(nil, true)
		return
	}

	switch a.controller.Status().State {
	case domain.SessionStateRecording, domain.SessionStateStopping:
		a.captureSession = session
	default:
		// The session ended while the device was opening.
		_ = session.Stop()
	}
}

// stopCaptureSession stops the live capture; the backend delivers the final
// block from inside Stop. When no capture ever started, a synthetic empty
// final block unblocks disposition.
func (a *App) stopCaptureSession() {
	a.captureMu.Lock()
	session := a.captureSession
	a.captureSession = nil
	a.captureMu.Unlock()

	if session == nil {
		if a.controller != nil && a.controller.Status().State == domain.SessionStateStopping {
			a.controller.SubmitAudioBlock(nil, true)
		}
		return
	}
	if err := session.Stop(); err != nil {
		a.logger.Warn("capture stop failed", zap.Error(err))
	}
}

func (a *App) submitBlock(samples []float32, final bool) {
	a.controller.SubmitAudioBlock(samples, final)
}

func noticeMessage(kind domain.NotificationType) string {
	switch kind {
	case domain.NoticeReposition:
		return "Recording"
	case domain.NoticeEmptyTranscript:
		return "No speech detected"
	case domain.NoticePasteFailed:
		return "Transcript copied; paste failed"
	case domain.NoticePasteNoAccess:
		return "Grant accessibility permission to paste"
	case domain.NoticeStartupFailed:
		return "Startup failed"
	default:
		return ""
	}
}

type wailsClipboard struct{}

func (c *wailsClipboard) SetText(ctx context.Context, text string) error {
	return runtime.ClipboardSetText(ctx, text)
}
