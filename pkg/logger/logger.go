package logger

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the logging interface used across the module.
type Logger interface {
	Info(msg string, obj any)
	Warn(msg string, obj any)
	Debug(msg string, obj any)
	Error(msg string, obj any)
}

// NopLogger discards all log messages.
type NopLogger struct{}

func (NopLogger) Info(string, any)  {}
func (NopLogger) Warn(string, any)  {}
func (NopLogger) Debug(string, any) {}
func (NopLogger) Error(string, any) {}

// Options configures a zerolog-backed logger.
type Options struct {
	Level  string // debug, info, warn, error
	Pretty bool
}

type zeroLogger struct {
	z zerolog.Logger
}

// New builds a logger that writes to w. Unknown levels fall back to info.
func New(w io.Writer, opts Options) Logger {
	if w == nil {
		return NopLogger{}
	}
	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	out := w
	if opts.Pretty {
		out = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	}

	return zeroLogger{
		z: zerolog.New(out).Level(level).With().Timestamp().Logger(),
	}
}

func (l zeroLogger) write(e *zerolog.Event, msg string, obj any) {
	if e == nil {
		return
	}
	switch v := obj.(type) {
	case nil:
	case map[string]any:
		e = e.Fields(v)
	case error:
		e = e.Err(v)
	default:
		e = e.Interface("obj", v)
	}
	e.Msg(msg)
}

func (l zeroLogger) Info(msg string, obj any)  { l.write(l.z.Info(), msg, obj) }
func (l zeroLogger) Warn(msg string, obj any)  { l.write(l.z.Warn(), msg, obj) }
func (l zeroLogger) Debug(msg string, obj any) { l.write(l.z.Debug(), msg, obj) }
func (l zeroLogger) Error(msg string, obj any) { l.write(l.z.Error(), msg, obj) }

// Debug writes a debug log when enabled and logger is non-nil.
func Debug(enabled bool, logger Logger, msg string, obj any) {
	if !enabled || logger == nil {
		return
	}
	logger.Debug(msg, obj)
}

// Debugf is a compatibility helper for format-style debug logging.
func Debugf(enabled bool, logger Logger, format string, args ...any) {
	Debug(enabled, logger, fmt.Sprintf(format, args...), nil)
}

// Info writes an info log when logger is non-nil.
func Info(logger Logger, msg string, obj any) {
	if logger == nil {
		return
	}
	logger.Info(msg, obj)
}

// Warn writes a warning log when logger is non-nil.
func Warn(logger Logger, msg string, obj any) {
	if logger == nil {
		return
	}
	logger.Warn(msg, obj)
}

// Error writes an error log when logger is non-nil.
func Error(logger Logger, msg string, obj any) {
	if logger == nil {
		return
	}
	logger.Error(msg, obj)
}
