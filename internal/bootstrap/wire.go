package bootstrap

import (
	"fmt"

	"go.uber.org/zap"

	"surasura/internal/audio"
	"surasura/internal/config"
	"surasura/internal/logging"
	"surasura/internal/paste"
	"surasura/internal/ports"
	"surasura/internal/providers/deepgram"
	"surasura/internal/providers/whisperd"
	"surasura/internal/sound"
	"surasura/internal/sysaudio"
	"surasura/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.Controller
	Capture    ports.AudioCapture
	Store      *config.Store
	Config     config.Config
	Logger     *zap.Logger
}

// Build wires all backend dependencies for the current runtime. The event
// sink and clipboard come from the caller because both live on the UI side.
func Build(eventSink ports.EventSink, clipboard ports.Clipboard) (Services, error) {
	cfg, v, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	logger, err := logging.New(logging.Options{
		Level:   cfg.Log.Level,
		Dir:     cfg.Paths.LogDir,
		Console: cfg.Log.Console,
	})
	if err != nil {
		return Services{}, err
	}

	store := config.NewStore(v)

	// No audio output is not fatal: a nil player keeps every cue silent.
	player, err := sound.NewPlayer(store.SoundVolume, logger)
	if err != nil {
		logger.Warn("audio cues unavailable", zap.Error(err))
		player = nil
	}

	pipeline, err := buildPipeline(cfg, logger)
	if err != nil {
		return Services{}, err
	}

	controller := usecase.NewController(
		pipeline,
		sysaudio.New(player, logger),
		paste.New(clipboard, player, logger),
		store,
		eventSink,
		logger,
		usecase.Config{
			SampleRate:           cfg.Audio.SampleRate,
			Channels:             cfg.Audio.Channels,
			BitDepth:             cfg.Audio.BitDepth,
			RecordingsDir:        cfg.Paths.RecordingsDir,
			QuickActionThreshold: cfg.Session.QuickActionThreshold,
			DoubleTapWindow:      cfg.Session.DoubleTapWindow,
			NoAudioTimeout:       cfg.Session.NoAudioTimeout,
			StuckTimeout:         cfg.Session.StuckTimeout,
			EmptyTranscriptAfter: cfg.Session.EmptyTranscriptAfter,
			PasteTimeout:         cfg.Session.PasteTimeout,
		},
	)

	capture, err := audio.NewCapture(cfg.Audio.Backend, cfg.Audio.FFmpegPath, logger)
	if err != nil {
		return Services{}, err
	}

	return Services{
		Controller: controller,
		Capture:    capture,
		Store:      store,
		Config:     cfg,
		Logger:     logger,
	}, nil
}

func buildPipeline(cfg config.Config, logger *zap.Logger) (ports.SpeechPipeline, error) {
	switch cfg.Pipeline.Provider {
	case "whisperd":
		return whisperd.NewPipeline(whisperd.Config{
			Endpoint:   cfg.Pipeline.Whisperd.Endpoint,
			Timeout:    cfg.Pipeline.Whisperd.Timeout,
			Language:   cfg.Pipeline.Whisperd.Language,
			SampleRate: cfg.Audio.SampleRate,
			Channels:   cfg.Audio.Channels,
		}, logger), nil
	case "deepgram":
		return deepgram.NewPipeline(deepgram.Config{
			APIKey:         cfg.Pipeline.Deepgram.APIKey,
			APIBaseURL:     cfg.Pipeline.Deepgram.APIBaseURL,
			Model:          cfg.Pipeline.Deepgram.Model,
			Language:       cfg.Pipeline.Deepgram.Language,
			SmartFormat:    cfg.Pipeline.Deepgram.SmartFormat,
			InterimResults: true,
			SampleRate:     cfg.Audio.SampleRate,
			Channels:       cfg.Audio.Channels,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown pipeline provider %q", cfg.Pipeline.Provider)
	}
}
