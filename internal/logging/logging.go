package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options control logger construction.
type Options struct {
	// Level is the minimum level written to the log file ("debug", "info",
	// "warn", "error"). Defaults to info.
	Level string
	// Dir is where rotated log files live. Empty disables file logging.
	Dir string
	// Console mirrors warnings and above to stderr.
	Console bool
}

// New builds the application logger: JSON records into a size-rotated file,
// optionally mirrored to stderr. The app runs as a background widget, so the
// file is the primary sink.
func New(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		parsed, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("logging: parse level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	var cores []zapcore.Core

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("logging: create log dir: %w", err)
		}
		rotated := &lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, "surasura.log"),
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
		}
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encCfg),
			zapcore.AddSync(rotated),
			level,
		))
	}

	if opts.Console || len(cores) == 0 {
		consoleLevel := zapcore.WarnLevel
		if len(cores) == 0 {
			consoleLevel = level
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
			zapcore.Lock(os.Stderr),
			consoleLevel,
		))
	}

	return zap.New(zapcore.NewTee(cores...)), nil
}
