// Package logger defines the logging facade shared by every component in
// this module.
//
// The facade follows the log/slog calling convention: a message followed by
// alternating keys and values. [New] adapts any [slog.Handler]; pair it with
// [github.com/docstream/docstream.go/pkg/logger/zero] for zerolog-backed
// output through the same interface.
package logger

import "log/slog"

// Logger is implemented by anything that can receive the module's logs.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
	Debug(msg string, args ...any)
}

// SlogLogger forwards facade calls to a log/slog logger.
type SlogLogger struct {
	logger *slog.Logger
}

// New returns a Logger backed by h.
func New(h slog.Handler) *SlogLogger {
	return &SlogLogger{logger: slog.New(h)}
}

func (l *SlogLogger) Error(msg string, args ...any) {
	l.logger.Error(msg, args...)
}

func (l *SlogLogger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}

func (l *SlogLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

func (l *SlogLogger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, args...)
}

// Nop returns a Logger that discards everything. Components fall back to it
// when no logger is configured.
func Nop() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Error(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}
