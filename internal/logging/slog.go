package logging

import (
	"context"
	"io"
	"log/slog"
)

// ModuleKey names the attribute that tells which component wrote a record.
const ModuleKey = "module"

// Module returns a child of l tagged with the component name, e.g. "ledger"
// or "grpc_server". Every long-lived component logs through one.
func Module(l Logger, name string) Logger {
	return l.With(ModuleKey, name)
}

// SlogLogger adapts *slog.Logger to Logger. Records go through the
// context-aware slog methods so handlers can read request values.
type SlogLogger struct {
	l *slog.Logger
}

func NewSlogLogger(l *slog.Logger) *SlogLogger {
	return &SlogLogger{l: l}
}

// NewJSONLogger is what the server runs with: one JSON object per line on w,
// records below level dropped.
func NewJSONLogger(w io.Writer, level slog.Level) *SlogLogger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return NewSlogLogger(slog.New(h))
}

func (s *SlogLogger) Debug(ctx context.Context, msg string, args ...any) {
	s.l.DebugContext(ctx, msg, args...)
}

func (s *SlogLogger) Info(ctx context.Context, msg string, args ...any) {
	s.l.InfoContext(ctx, msg, args...)
}

func (s *SlogLogger) Warn(ctx context.Context, msg string, args ...any) {
	s.l.WarnContext(ctx, msg, args...)
}

func (s *SlogLogger) Error(ctx context.Context, msg string, args ...any) {
	s.l.ErrorContext(ctx, msg, args...)
}

// With keeps s untouched and returns a logger carrying args on every record.
func (s *SlogLogger) With(args ...any) Logger {
	return &SlogLogger{l: s.l.With(args...)}
}
