// Package logger provides structured logging for the application, backed by
// zerolog. Services receive a *Logger in their constructor and fall back to
// NewDefault when none is supplied.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Config controls log output.
type Config struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string
	// Format is "json" or "console". Defaults to json.
	Format string
	// Component is attached to every entry.
	Component string
}

// Logger wraps a zerolog.Logger with the helpers the services use.
type Logger struct {
	zl zerolog.Logger
}

// New constructs a logger from config.
func New(cfg Config) *Logger {
	var out io.Writer = os.Stderr
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: os.Stderr}
	}

	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(strings.ToLower(cfg.Level)); err == nil && cfg.Level != "" {
		level = parsed
	}

	zl := zerolog.New(out).Level(level).With().Timestamp()
	if cfg.Component != "" {
		zl = zl.Str("component", cfg.Component)
	}
	return &Logger{zl: zl.Logger()}
}

// NewDefault returns a json logger at info level for the given component.
func NewDefault(component string) *Logger {
	return New(Config{Component: component})
}

// SetOutput redirects log output, primarily for tests.
func (l *Logger) SetOutput(w io.Writer) {
	l.zl = l.zl.Output(w)
}

// WithField returns a logger with an additional field attached.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{zl: l.zl.With().Interface(key, value).Logger()}
}

// WithError returns a logger with the error attached.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{zl: l.zl.With().AnErr("error", err).Logger()}
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string) { l.zl.Debug().Msg(msg) }

// Info logs at info level.
func (l *Logger) Info(msg string) { l.zl.Info().Msg(msg) }

// Warn logs at warn level.
func (l *Logger) Warn(msg string) { l.zl.Warn().Msg(msg) }

// Error logs at error level.
func (l *Logger) Error(msg string) { l.zl.Error().Msg(msg) }

// Debugf logs a formatted message at debug level.
func (l *Logger) Debugf(format string, args ...interface{}) { l.zl.Debug().Msgf(format, args...) }

// Infof logs a formatted message at info level.
func (l *Logger) Infof(format string, args ...interface{}) { l.zl.Info().Msgf(format, args...) }

// Warnf logs a formatted message at warn level.
func (l *Logger) Warnf(format string, args ...interface{}) { l.zl.Warn().Msgf(format, args...) }

// Errorf logs a formatted message at error level.
func (l *Logger) Errorf(format string, args ...interface{}) { l.zl.Error().Msgf(format, args...) }
