package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"surasura/internal/domain"
	"surasura/internal/ports"
	"surasura/internal/wav"
)

// finishSession runs the disposition for a session whose final audio block
// has arrived: persist the buffered audio, then cancel, dismiss or finalize
// according to the termination code, and reset to Idle.
//
// Takes only c.mu (never lifecycleMu): the final block may be delivered
// synchronously from inside a stop transition.
func (c *Controller) finishSession() {
	c.mu.Lock()
	if c.state != domain.SessionStateStopping {
		state := c.state
		c.mu.Unlock()
		c.logger.Debug("disposition rejected: not stopping", zap.String("state", string(state)))
		return
	}
	sid := c.sessionID
	code := c.termCode
	sampleCount := c.buffer.sampleCount()
	blocks := c.buffer.take()
	startedAt := c.startedAt
	stoppedAt := c.stoppedAt
	c.mu.Unlock()

	c.clearTimers()

	ctx := context.Background()

	if code.IsCancel() {
		c.logger.Info("session cancelled",
			zap.String("session_id", sid),
			zap.String("code", string(code)),
			zap.Int("samples_discarded", sampleCount))
		c.events.RecordingCancelled(sid, code)
		c.reset()
		return
	}

	audioPath := c.writeRecording(sid, blocks)

	if code == domain.TerminationDismissed {
		if err := c.pipeline.Abandon(ctx, sid); err != nil {
			c.logger.Warn("pipeline abandon failed", zap.String("session_id", sid), zap.Error(err))
		}
		c.events.TranscriptionDismissed(sid, audioPath)
		c.reset()
		return
	}

	text, err := c.pipeline.Finalize(ctx, sid, audioPath, startedAt, stoppedAt)
	if err != nil {
		c.logger.Warn("transcription failed", zap.String("session_id", sid), zap.Error(err))
		text = ""
	}

	if text != "" {
		c.pasteText(sid, text)
	} else if stoppedAt.Sub(startedAt) > c.cfg.EmptyTranscriptAfter {
		c.logger.Info("transcript empty", zap.String("session_id", sid))
		c.events.Notification(domain.NoticeEmptyTranscript, map[string]string{"session_id": sid})
	}

	c.reset()
}

// writeRecording persists the session's audio to a WAV file and returns its
// path. Failures degrade to an empty path; the transcript flow continues.
func (c *Controller) writeRecording(sid string, blocks [][]float32) string {
	total := 0
	for _, b := range blocks {
		total += len(b)
	}
	if total == 0 {
		return ""
	}

	if err := os.MkdirAll(c.cfg.RecordingsDir, 0o755); err != nil {
		c.logger.Warn("recordings dir unavailable",
			zap.String("dir", c.cfg.RecordingsDir), zap.Error(err))
		return ""
	}

	short := sid
	if len(short) > 8 {
		short = short[:8]
	}
	name := fmt.Sprintf("%s-%s.wav", c.now().Format("20060102-150405"), short)
	path := filepath.Join(c.cfg.RecordingsDir, name)

	w, err := wav.Open(path, c.cfg.SampleRate, c.cfg.Channels, c.cfg.BitDepth)
	if err != nil {
		c.logger.Warn("recording file open failed", zap.String("path", path), zap.Error(err))
		return ""
	}
	for _, b := range blocks {
		if _, err := w.Append(b); err != nil {
			c.logger.Warn("recording write failed", zap.String("path", path), zap.Error(err))
			w.Abort()
			return ""
		}
	}
	if err := w.Finalize(); err != nil {
		c.logger.Warn("recording finalize failed", zap.String("path", path), zap.Error(err))
		return ""
	}

	c.logger.Info("recording saved",
		zap.String("session_id", sid),
		zap.String("path", path),
		zap.Int("samples", total))
	return path
}

// pasteText delivers a transcript to the focused application and reports
// failures as notifications.
func (c *Controller) pasteText(sid, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.PasteTimeout)
	defer cancel()

	playSound := c.prefs.SoundEnabled()
	err := c.paster.Paste(ctx, text, playSound)
	if err == nil {
		c.logger.Info("transcript pasted",
			zap.String("session_id", sid),
			zap.Int("chars", len(text)))
		return
	}

	c.logger.Warn("paste failed", zap.String("session_id", sid), zap.Error(err))
	payload := map[string]string{"session_id": sid}
	if errors.Is(err, ports.ErrNoAccessibility) {
		c.events.Notification(domain.NoticePasteNoAccess, payload)
		return
	}
	c.events.Notification(domain.NoticePasteFailed, payload)
}
