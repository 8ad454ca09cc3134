package deepgram

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"surasura/internal/wav"
)

// streamGrace bounds how long Finalize waits for the provider to flush its
// final results after the audio stream closes.
const streamGrace = 4 * time.Second

// Pipeline streams session audio to Deepgram and implements
// ports.SpeechPipeline. One websocket per session; the transcript is
// aggregated from interim and final results while audio flows, so Finalize
// only has to wait out the provider's flush.
type Pipeline struct {
	cfg    Config
	logger *zap.Logger

	mu      sync.Mutex
	streams map[string]*sessionStream

	lastMu sync.Mutex
	last   string
	lastOK bool
}

type sessionStream struct {
	sess    *streamingSession
	agg     *transcriptAggregator
	drained chan struct{}
	dialErr error
}

func NewPipeline(cfg Config, logger *zap.Logger) *Pipeline {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.deepgram.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		cfg:     cfg,
		logger:  logger,
		streams: make(map[string]*sessionStream),
	}
}

// Prepare opens the session's websocket eagerly so the first audio chunk has
// somewhere to go. A failed dial is remembered; chunks for that session fail
// fast instead of re-dialing.
func (p *Pipeline) Prepare(ctx context.Context, sessionID string) error {
	p.mu.Lock()
	if _, ok := p.streams[sessionID]; ok {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	entry := p.openStream(ctx, sessionID)

	p.mu.Lock()
	p.streams[sessionID] = entry
	p.mu.Unlock()
	return entry.dialErr
}

// ProcessChunk forwards one block of samples as PCM16. Chunks for a session
// that was never prepared open its stream lazily.
func (p *Pipeline) ProcessChunk(ctx context.Context, sessionID string, samples []float32, _ time.Time) error {
	if len(samples) == 0 {
		return nil
	}

	p.mu.Lock()
	entry, ok := p.streams[sessionID]
	p.mu.Unlock()

	if !ok {
		if err := p.Prepare(ctx, sessionID); err != nil {
			return err
		}
		p.mu.Lock()
		entry = p.streams[sessionID]
		p.mu.Unlock()
	}
	if entry.sess == nil {
		return entry.dialErr
	}
	return entry.sess.SendAudio(encodePCM16(samples))
}

// Finalize closes the audio stream, waits for the provider to settle and
// returns the aggregated transcript. The recorded file and timestamps are
// not needed here: the audio already streamed.
func (p *Pipeline) Finalize(ctx context.Context, sessionID string, _ string, _, _ time.Time) (string, error) {
	p.mu.Lock()
	entry, ok := p.streams[sessionID]
	delete(p.streams, sessionID)
	p.mu.Unlock()

	if !ok {
		return "", fmt.Errorf("no stream for session %s", sessionID)
	}
	if entry.sess == nil {
		return "", entry.dialErr
	}

	_ = entry.sess.CloseSend()
	if !waitForStream(ctx, entry.sess, streamGrace) {
		p.logger.Warn("provider stream did not settle in time", zap.String("session_id", sessionID))
	}
	// Close forces the read loop down, which in turn lets the drain finish.
	_ = entry.sess.Close()
	<-entry.drained

	text := strings.TrimSpace(entry.agg.Raw())
	if text == "" {
		if err := entry.sess.Wait(); err != nil {
			return "", err
		}
		return "", nil
	}

	p.lastMu.Lock()
	p.last = text
	p.lastOK = true
	p.lastMu.Unlock()
	return text, nil
}

// Abandon drops the session's stream without waiting for results.
func (p *Pipeline) Abandon(_ context.Context, sessionID string) error {
	p.mu.Lock()
	entry, ok := p.streams[sessionID]
	delete(p.streams, sessionID)
	p.mu.Unlock()

	if !ok || entry.sess == nil {
		return nil
	}
	_ = entry.sess.Close()
	<-entry.drained
	return nil
}

// LastResult returns the most recent non-empty transcript.
func (p *Pipeline) LastResult() (string, bool) {
	p.lastMu.Lock()
	defer p.lastMu.Unlock()
	return p.last, p.lastOK
}

func (p *Pipeline) openStream(ctx context.Context, sessionID string) *sessionStream {
	sess, err := dialStream(ctx, p.cfg)
	if err != nil {
		p.logger.Warn("provider dial failed", zap.String("session_id", sessionID), zap.Error(err))
		return &sessionStream{dialErr: err}
	}

	entry := &sessionStream{
		sess:    sess,
		agg:     newTranscriptAggregator(),
		drained: make(chan struct{}),
	}
	go func() {
		defer close(entry.drained)
		drainTranscripts(sess, entry.agg)
	}()

	p.logger.Debug("provider stream opened", zap.String("session_id", sessionID))
	return entry
}

func waitForStream(ctx context.Context, sess *streamingSession, grace time.Duration) bool {
	if grace <= 0 {
		grace = streamGrace
	}
	select {
	case <-sess.done:
		return true
	case <-time.After(grace):
		return false
	case <-ctx.Done():
		return false
	}
}

func encodePCM16(samples []float32) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(wav.EncodeSample(s)))
	}
	return buf
}
