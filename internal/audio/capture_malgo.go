package audio

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"
	"go.uber.org/zap"

	"surasura/internal/ports"
)

// MalgoCapture records from the default input device through miniaudio.
type MalgoCapture struct {
	logger *zap.Logger
}

func NewMalgoCapture(logger *zap.Logger) *MalgoCapture {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MalgoCapture{logger: logger}
}

func (c *MalgoCapture) Start(_ context.Context, cfg ports.AudioConfig, sink ports.BlockSink) (ports.CaptureSession, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.BlockFrames <= 0 {
		cfg.BlockFrames = defaultBlockFrames
	}

	logger := c.logger
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("miniaudio", zap.String("message", strings.TrimSpace(message)))
	})
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	session := &malgoSession{
		ctx:       mctx,
		sink:      sink,
		logger:    logger,
		assembler: newBlockAssembler(cfg.BlockFrames * cfg.Channels),
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			session.deliver(input)
		},
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("init capture device: %w", err)
	}
	session.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("start capture device: %w", err)
	}

	logger.Info("capture started",
		zap.Int("sample_rate", cfg.SampleRate),
		zap.Int("channels", cfg.Channels),
		zap.Int("block_frames", cfg.BlockFrames))
	return session, nil
}

type malgoSession struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	sink   ports.BlockSink
	logger *zap.Logger

	mu        sync.Mutex
	assembler *blockAssembler
	stopped   bool

	stopOnce sync.Once
	stopErr  error
}

func (s *malgoSession) deliver(input []byte) {
	samples := f32FromBytes(input)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	blocks := s.assembler.push(samples)
	s.mu.Unlock()

	for _, block := range blocks {
		s.sink(block, false)
	}
}

// Stop halts the device, tears down the miniaudio context and delivers the
// unfilled tail as the final block.
func (s *malgoSession) Stop() error {
	s.stopOnce.Do(func() {
		s.stopErr = s.device.Stop()

		s.mu.Lock()
		s.stopped = true
		tail := s.assembler.flush()
		s.mu.Unlock()

		s.device.Uninit()
		if err := s.ctx.Uninit(); err != nil && s.stopErr == nil {
			s.stopErr = err
		}
		s.ctx.Free()

		s.sink(tail, true)
		s.logger.Info("capture stopped", zap.Int("tail_samples", len(tail)))
	})
	return s.stopErr
}
