// Package whisperd transcribes recorded sessions against a local
// whisper.cpp server. Audio is buffered while the session runs and submitted
// in one multipart request at finalize, preferring the recorded file on disk
// over the in-memory copy.
package whisperd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"surasura/internal/wav"
)

// Config controls the whisperd HTTP client and the fallback audio format.
type Config struct {
	Endpoint   string
	Timeout    time.Duration
	Language   string
	SampleRate int
	Channels   int
}

type Pipeline struct {
	cfg    Config
	client *resty.Client
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*sessionBuffer

	lastMu sync.Mutex
	last   string
	lastOK bool
}

type sessionBuffer struct {
	mu      sync.Mutex
	blocks  [][]float32
	samples int
}

type inferenceResponse struct {
	Text  string `json:"text"`
	Error string `json:"error"`
}

func NewPipeline(cfg Config, logger *zap.Logger) *Pipeline {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://127.0.0.1:8178/inference"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
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
		cfg:      cfg,
		client:   resty.New().SetTimeout(cfg.Timeout),
		logger:   logger,
		sessions: make(map[string]*sessionBuffer),
	}
}

// Prepare registers the session buffer. There is no remote handshake: the
// server only sees one request, at finalize.
func (p *Pipeline) Prepare(_ context.Context, sessionID string) error {
	p.buffer(sessionID)
	return nil
}

// ProcessChunk keeps a copy of the block for the finalize request.
func (p *Pipeline) ProcessChunk(_ context.Context, sessionID string, samples []float32, _ time.Time) error {
	if len(samples) == 0 {
		return nil
	}
	buf := p.buffer(sessionID)
	cp := make([]float32, len(samples))
	copy(cp, samples)

	buf.mu.Lock()
	buf.blocks = append(buf.blocks, cp)
	buf.samples += len(cp)
	buf.mu.Unlock()
	return nil
}

// Finalize submits the session audio and returns the transcript. The
// recorded file is used when available so the request streams from disk;
// otherwise the buffered samples are rendered into an in-memory WAV.
func (p *Pipeline) Finalize(ctx context.Context, sessionID string, audioPath string, _, _ time.Time) (string, error) {
	p.mu.Lock()
	buf := p.sessions[sessionID]
	delete(p.sessions, sessionID)
	p.mu.Unlock()

	req := p.client.R().
		SetContext(ctx).
		SetFormData(p.formFields()).
		SetResult(&inferenceResponse{})

	switch {
	case audioPath != "":
		f, err := os.Open(audioPath)
		if err != nil {
			return "", fmt.Errorf("whisperd: open recording: %w", err)
		}
		defer f.Close()
		req.SetFileReader("file", filepath.Base(audioPath), f)
	case buf != nil && buf.sampleCount() > 0:
		data, err := wav.Marshal(buf.flatten(), p.cfg.SampleRate, p.cfg.Channels)
		if err != nil {
			return "", fmt.Errorf("whisperd: encode audio: %w", err)
		}
		req.SetFileReader("file", "session.wav", bytes.NewReader(data))
	default:
		return "", fmt.Errorf("whisperd: no audio for session %s", sessionID)
	}

	resp, err := req.Post(p.cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("whisperd: inference request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("whisperd: inference failed: %s: %s", resp.Status(), strings.TrimSpace(resp.String()))
	}

	result, ok := resp.Result().(*inferenceResponse)
	if !ok || result == nil {
		return "", fmt.Errorf("whisperd: malformed inference response")
	}
	if result.Error != "" {
		return "", fmt.Errorf("whisperd: %s", result.Error)
	}

	text := strings.TrimSpace(result.Text)
	if text != "" {
		p.lastMu.Lock()
		p.last = text
		p.lastOK = true
		p.lastMu.Unlock()
	}
	p.logger.Debug("inference complete",
		zap.String("session_id", sessionID),
		zap.Int("chars", len(text)))
	return text, nil
}

// Abandon drops the session's buffered audio.
func (p *Pipeline) Abandon(_ context.Context, sessionID string) error {
	p.mu.Lock()
	delete(p.sessions, sessionID)
	p.mu.Unlock()
	return nil
}

// LastResult returns the most recent non-empty transcript.
func (p *Pipeline) LastResult() (string, bool) {
	p.lastMu.Lock()
	defer p.lastMu.Unlock()
	return p.last, p.lastOK
}

func (p *Pipeline) buffer(sessionID string) *sessionBuffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	buf, ok := p.sessions[sessionID]
	if !ok {
		buf = &sessionBuffer{}
		p.sessions[sessionID] = buf
	}
	return buf
}

func (p *Pipeline) formFields() map[string]string {
	fields := map[string]string{
		"response_format": "json",
		"temperature":     "0.0",
	}
	if p.cfg.Language != "" {
		fields["language"] = p.cfg.Language
	}
	return fields
}

func (b *sessionBuffer) sampleCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.samples
}

func (b *sessionBuffer) flatten() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]float32, 0, b.samples)
	for _, block := range b.blocks {
		out = append(out, block...)
	}
	return out
}
