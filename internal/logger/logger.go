// Package logger provides a small structured-logging wrapper around
// log/slog shared by every package in this module, so format and level are
// configured once (via Init) and every call site just logs.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
)

// Level mirrors slog's levels under names that read naturally at call
// sites that don't want to import log/slog directly.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Config configures the package-level logger.
type Config struct {
	// Level is one of "debug", "info", "warn", "error". Default "info".
	Level string
	// Format is "text" or "json". Default "text".
	Format string
	// Output is where log lines are written. Default os.Stderr.
	Output io.Writer
}

var (
	mu      sync.RWMutex
	slogger = slog.New(slog.NewTextHandler(os.Stderr, nil))

	currentLevel atomic.Int32
)

func toSlogLevel(l Level) slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Init (re)configures the package-level logger. Safe to call concurrently
// with logging calls.
func Init(cfg Config) {
	level := parseLevel(cfg.Level)
	currentLevel.Store(int32(level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: toSlogLevel(level)}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	mu.Lock()
	slogger = slog.New(handler)
	mu.Unlock()
}

func logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return slogger
}

// Debug logs at debug level. Used for the engine's absorbed ErrLocked
// boundary and other internal-only diagnostics.
func Debug(msg string, args ...any) { logger().Debug(msg, args...) }

// Info logs at info level.
func Info(msg string, args ...any) { logger().Info(msg, args...) }

// Warn logs at warn level.
func Warn(msg string, args ...any) { logger().Warn(msg, args...) }

// Error logs at error level.
func Error(msg string, args ...any) { logger().Error(msg, args...) }

// DebugCtx logs at debug level, attaching any fields carried on ctx.
func DebugCtx(ctx context.Context, msg string, args ...any) {
	logger().DebugContext(ctx, msg, withContext(ctx, args)...)
}

// InfoCtx logs at info level, attaching any fields carried on ctx.
func InfoCtx(ctx context.Context, msg string, args ...any) {
	logger().InfoContext(ctx, msg, withContext(ctx, args)...)
}

// WarnCtx logs at warn level, attaching any fields carried on ctx.
func WarnCtx(ctx context.Context, msg string, args ...any) {
	logger().WarnContext(ctx, msg, withContext(ctx, args)...)
}

// ErrorCtx logs at error level, attaching any fields carried on ctx.
func ErrorCtx(ctx context.Context, msg string, args ...any) {
	logger().ErrorContext(ctx, msg, withContext(ctx, args)...)
}

func withContext(ctx context.Context, args []any) []any {
	lc := FromContext(ctx)
	if lc == nil {
		return args
	}
	extra := []any{"traceID", lc.TraceID, "op", lc.Op}
	return append(extra, args...)
}
