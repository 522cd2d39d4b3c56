// Package logger builds the zap logger shared by every engine component.
package logger

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/krisalay/analytics-cache/config"
)

// New builds a logger from cfg. Output goes to stderr, or to a rotating file
// when cfg.File is set. The returned closer releases the file, if any.
func New(cfg config.LoggingConfig) (*zap.Logger, io.Closer, error) {
	var sink zapcore.WriteSyncer = zapcore.Lock(os.Stderr)
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB, // megabytes
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays, // days
			Compress:   cfg.Compress,
		}
		sink = zapcore.AddSync(rotator)
		closer = rotator
	}

	core, err := NewCore(cfg, sink)
	if err != nil {
		return nil, nil, err
	}
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), closer, nil
}

// NewCore builds the core writing to sink, mostly for tests.
func NewCore(cfg config.LoggingConfig, sink zapcore.WriteSyncer) (zapcore.Core, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %s: %w", cfg.Level, err)
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	switch cfg.Format {
	case "console":
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	case "json", "":
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}

	return zapcore.NewCore(encoder, sink, level), nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
