// Package logger provides the structured logging sink consumed by every
// other package in the runtime. It wraps log/slog behind a small interface
// so that callers (the scheduler, the DAG executor, the HTTP pipeline) never
// depend on slog directly and a caller embedding this module can supply its
// own sink.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

func sprintf(format string, args ...any) string { return fmt.Sprintf(format, args...) }

// Logger is the sink every component writes to. Field pairs follow slog's
// key-value convention: Info("message", "key", value, ...).
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	// With returns a Logger that prepends the given key-value pairs to
	// every subsequent call.
	With(args ...any) Logger
}

type slogLogger struct {
	l *slog.Logger
}

// Format selects the on-disk/console encoding for log records.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// NewArgs configures NewLogger.
type NewArgs struct {
	Debug    bool
	Format   Format
	FilePath string // optional: also tee output to this file
}

// NewLogger builds a Logger writing to stdout and, if FilePath is set, to a
// file as well, fanned out via slog-multi.
func NewLogger(args NewArgs) (Logger, error) {
	level := slog.LevelInfo
	if args.Debug {
		level = slog.LevelDebug
	}

	handlers := []slog.Handler{newHandler(os.Stdout, args.Format, level)}

	if args.FilePath != "" {
		f, err := os.OpenFile(args.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, newHandler(f, args.Format, level))
	}

	var handler slog.Handler
	if len(handlers) == 1 {
		handler = handlers[0]
	} else {
		handler = slogmulti.Fanout(handlers...)
	}

	return &slogLogger{l: slog.New(handler)}, nil
}

func newHandler(w io.Writer, format Format, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == FormatJSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Default is a text logger at info level, suitable as a zero-config fallback.
var Default Logger = &slogLogger{l: slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))}

func (s *slogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s *slogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s *slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s *slogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }

func (s *slogLogger) Debugf(format string, args ...any) { s.l.Debug(sprintf(format, args...)) }
func (s *slogLogger) Infof(format string, args ...any)  { s.l.Info(sprintf(format, args...)) }
func (s *slogLogger) Warnf(format string, args ...any)  { s.l.Warn(sprintf(format, args...)) }
func (s *slogLogger) Errorf(format string, args ...any) { s.l.Error(sprintf(format, args...)) }

func (s *slogLogger) With(args ...any) Logger {
	return &slogLogger{l: s.l.With(args...)}
}

// ContextKey is exported so callers can stash a request-scoped Logger.
type ContextKey struct{}

// FromContext returns the Logger stored in ctx, or Default if none.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(ContextKey{}).(Logger); ok {
		return l
	}
	return Default
}

// WithContext returns a context carrying l.
func WithContext(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, ContextKey{}, l)
}
