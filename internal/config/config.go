package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config stores the full runtime configuration. Values come from
// ~/.config/surasura/config.yaml, overridable per key through SURASURA_*
// environment variables.
type Config struct {
	Audio    AudioConfig    `mapstructure:"audio"`
	Session  SessionConfig  `mapstructure:"session"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Paths    PathsConfig    `mapstructure:"paths"`
	Log      LogConfig      `mapstructure:"log"`
	Hotkey   HotkeyConfig   `mapstructure:"hotkey"`
	Sound    SoundConfig    `mapstructure:"sound"`
}

type AudioConfig struct {
	Backend     string `mapstructure:"backend" validate:"oneof=malgo ffmpeg"`
	SampleRate  int    `mapstructure:"sample_rate" validate:"gt=0"`
	Channels    int    `mapstructure:"channels" validate:"gt=0"`
	BitDepth    int    `mapstructure:"bit_depth" validate:"eq=16"`
	BlockFrames int    `mapstructure:"block_frames" validate:"gt=0"`

	// ffmpeg backend only.
	InputFormat string `mapstructure:"input_format"`
	InputDevice string `mapstructure:"input_device"`
	FFmpegPath  string `mapstructure:"ffmpeg_path"`
}

type SessionConfig struct {
	QuickActionThreshold time.Duration `mapstructure:"quick_action_threshold" validate:"gt=0"`
	DoubleTapWindow      time.Duration `mapstructure:"double_tap_window" validate:"gt=0"`
	NoAudioTimeout       time.Duration `mapstructure:"no_audio_timeout" validate:"gt=0"`
	StuckTimeout         time.Duration `mapstructure:"stuck_timeout" validate:"gt=0"`
	EmptyTranscriptAfter time.Duration `mapstructure:"empty_transcript_after" validate:"gt=0"`
	PasteTimeout         time.Duration `mapstructure:"paste_timeout" validate:"gt=0"`
}

type PipelineConfig struct {
	Provider string         `mapstructure:"provider" validate:"oneof=whisperd deepgram"`
	Whisperd WhisperdConfig `mapstructure:"whisperd"`
	Deepgram DeepgramConfig `mapstructure:"deepgram"`
}

type WhisperdConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Language string        `mapstructure:"language"`
}

type DeepgramConfig struct {
	APIKey      string `mapstructure:"api_key"`
	APIBaseURL  string `mapstructure:"api_base_url"`
	Model       string `mapstructure:"model"`
	Language    string `mapstructure:"language"`
	SmartFormat bool   `mapstructure:"smart_format"`
}

type PathsConfig struct {
	RecordingsDir string `mapstructure:"recordings_dir" validate:"required"`
	LogDir        string `mapstructure:"log_dir"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

type HotkeyConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Chords like "ctrl+shift+space"; the last token is the key.
	PTTKey    string `mapstructure:"ptt_key" validate:"required"`
	ToggleKey string `mapstructure:"toggle_key" validate:"required"`
}

type SoundConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	Volume  float64 `mapstructure:"volume" validate:"gte=0,lte=1"`
}

// Load resolves configuration from the config file, environment overrides and
// defaults, validates it, and returns the backing viper instance for live
// preference reads.
func Load() (Config, *viper.Viper, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, nil, errors.New("could not determine home directory")
	}

	v := viper.New()
	v.SetEnvPrefix("SURASURA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, home)

	if path := strings.TrimSpace(os.Getenv("SURASURA_CONFIG")); path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(filepath.Join(home, ".config", "surasura"))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Missing config file is fine; defaults and env overrides still apply.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return Config{}, nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, nil, fmt.Errorf("unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return Config{}, nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, v, nil
}

func setDefaults(v *viper.Viper, home string) {
	dataDir := filepath.Join(home, ".surasura")

	v.SetDefault("audio.backend", "malgo")
	v.SetDefault("audio.sample_rate", 16000)
	v.SetDefault("audio.channels", 1)
	v.SetDefault("audio.bit_depth", 16)
	v.SetDefault("audio.block_frames", 1600)
	v.SetDefault("audio.input_format", "pulse")
	v.SetDefault("audio.input_device", "default")
	v.SetDefault("audio.ffmpeg_path", "ffmpeg")

	v.SetDefault("session.quick_action_threshold", 500*time.Millisecond)
	v.SetDefault("session.double_tap_window", 300*time.Millisecond)
	v.SetDefault("session.no_audio_timeout", 10*time.Second)
	v.SetDefault("session.stuck_timeout", 30*time.Second)
	v.SetDefault("session.empty_transcript_after", 2*time.Second)
	v.SetDefault("session.paste_timeout", 5*time.Second)

	v.SetDefault("pipeline.provider", "whisperd")
	v.SetDefault("pipeline.whisperd.endpoint", "http://127.0.0.1:8178/inference")
	v.SetDefault("pipeline.whisperd.timeout", 60*time.Second)
	v.SetDefault("pipeline.whisperd.language", "")
	v.SetDefault("pipeline.deepgram.api_key", "")
	v.SetDefault("pipeline.deepgram.api_base_url", "https://api.deepgram.com/v1")
	v.SetDefault("pipeline.deepgram.model", "nova-2")
	v.SetDefault("pipeline.deepgram.language", "")
	v.SetDefault("pipeline.deepgram.smart_format", true)

	v.SetDefault("paths.recordings_dir", filepath.Join(dataDir, "recordings"))
	v.SetDefault("paths.log_dir", filepath.Join(dataDir, "logs"))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", false)

	v.SetDefault("hotkey.enabled", true)
	v.SetDefault("hotkey.ptt_key", "ctrl+shift+space")
	v.SetDefault("hotkey.toggle_key", "ctrl+shift+t")

	v.SetDefault("sound.enabled", true)
	v.SetDefault("sound.volume", 0.4)
}
