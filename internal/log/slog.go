package log

import (
	"io"
	"log/slog"
	"os"
)

var _ StructuredLogger = &Logger{}

// Logger is a StructuredLogger backed by log/slog.
type Logger struct {
	log *slog.Logger
}

// New returns a text-format Logger writing to stderr. With debug enabled it
// logs at debug level, otherwise at info level.
func New(debug bool) *Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return NewWriter(os.Stderr, level)
}

// NewWriter returns a Logger writing text-format records to w at the given
// level.
func NewWriter(w io.Writer, level slog.Level) *Logger {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return &Logger{log: slog.New(h)}
}

func (l *Logger) Error(msg string, args ...any) { l.log.Error(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.log.Warn(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.log.Info(msg, args...) }
func (l *Logger) Debug(msg string, args ...any) { l.log.Debug(msg, args...) }

func (l *Logger) With(args ...any) StructuredLogger {
	c := *l
	c.log = c.log.With(args...)
	return &c
}

// Named returns a copy of l with a "name" attribute identifying a subsystem.
func (l *Logger) Named(name string) *Logger {
	c := *l
	c.log = c.log.With("name", name)
	return &c
}
