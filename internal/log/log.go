// Package log defines the structured logging interface used across passage
// and a slog-backed implementation writing to stderr.
package log

// StructuredLogger is the logging interface consumed by the proxy packages.
// Implementations must be safe for concurrent use and must never block
// request handling.
type StructuredLogger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
	Debug(msg string, args ...any)

	With(args ...any) StructuredLogger
}

// Nop is a logger that discards everything.
var Nop StructuredLogger = nopLogger{}

type nopLogger struct{}

func (nopLogger) Error(_ string, _ ...any) {}
func (nopLogger) Warn(_ string, _ ...any)  {}
func (nopLogger) Info(_ string, _ ...any)  {}
func (nopLogger) Debug(_ string, _ ...any) {}

func (l nopLogger) With(_ ...any) StructuredLogger { return l }
