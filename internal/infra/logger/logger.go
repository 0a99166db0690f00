// Package logger builds the process-wide zap logger.
package logger

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/sifan077/linkgate/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// Options drives how the zap logger is built.
type Options struct {
	Development bool
	Level       string
	// Encoding is "console" or "json"; empty picks console in development.
	Encoding string
	// Color forces coloured levels on or off; nil detects a terminal.
	Color *bool
}

// FromConfig derives logger options from the app section.
func FromConfig(app config.AppConfig) Options {
	return Options{
		Development: app.Development(),
		Level:       app.LogLevel,
	}
}

// New returns a zap.Logger configured according to opts.
func New(opts Options) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if opts.Development {
		zapCfg = zap.NewDevelopmentConfig()
	}
	if opts.Encoding != "" {
		zapCfg.Encoding = opts.Encoding
	}

	if opts.Level != "" {
		level, err := zapcore.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nil, fmt.Errorf("logger: invalid level %q: %w", opts.Level, err)
		}
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}

	color := isTerminal(os.Stdout)
	if opts.Color != nil {
		color = *opts.Color
	}
	zapCfg.EncoderConfig = encoderConfig(zapCfg.Encoding, color)

	return zapCfg.Build(zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}

// Sync flushes l, ignoring the errors stdout and stderr return when they are
// terminals or pipes.
func Sync(l *zap.Logger) error {
	if l == nil {
		return nil
	}
	err := l.Sync()
	if err == nil || errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EINVAL) || errors.Is(err, os.ErrInvalid) {
		return nil
	}
	return err
}

func encoderConfig(encoding string, color bool) zapcore.EncoderConfig {
	cfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
	}
	if encoding != "console" {
		return cfg
	}

	cfg.ConsoleSeparator = " | "
	cfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format("2006-01-02 15:04:05.000"))
	}
	cfg.EncodeLevel = func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		label := fmt.Sprintf("%-5s", level.CapitalString())
		if color {
			label = levelColor(level) + label + "\x1b[0m"
		}
		enc.AppendString(label)
	}
	return cfg
}

func levelColor(level zapcore.Level) string {
	switch {
	case level <= zapcore.DebugLevel:
		return "\x1b[36m"
	case level == zapcore.InfoLevel:
		return "\x1b[32m"
	case level == zapcore.WarnLevel:
		return "\x1b[33m"
	case level == zapcore.ErrorLevel || level == zapcore.FatalLevel:
		return "\x1b[31m"
	default:
		return "\x1b[35m"
	}
}

func isTerminal(f *os.File) bool {
	if f == nil || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
