// Package logging provides the process-wide structured logger.
//
// The call surface (Infof, Warnf, ...) mirrors the teacher
// convention of short, level-suffixed free functions; underneath it is a
// single *slog.Logger backed by tint for readable local output.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

var (
	mu     sync.RWMutex
	logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.Kitchen,
	}))
	level = new(slog.LevelVar)
)

// Configure rebuilds the process logger at the given textual level
// (debug|info|warn|error). Unknown levels fall back to info.
func Configure(levelString string) {
	switch strings.ToUpper(strings.TrimSpace(levelString)) {
	case "DEBUG":
		level.Set(slog.LevelDebug)
	case "WARN", "WARNING":
		level.Set(slog.LevelWarn)
	case "ERROR":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}

	mu.Lock()
	logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
	mu.Unlock()
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// With returns a derived logger carrying the given key/value attributes,
// for call sites that want structured fields instead of a formatted
// string (e.g. handler stats, actor lifecycle transitions).
func With(args ...any) *slog.Logger {
	return current().With(args...)
}

func Debugf(format string, args ...any) { current().Debug(sprintf(format, args...)) }
func Infof(format string, args ...any)  { current().Info(sprintf(format, args...)) }
func Warnf(format string, args ...any)  { current().Warn(sprintf(format, args...)) }
func Errorf(format string, args ...any) { current().Error(sprintf(format, args...)) }

// Fatalf logs at error level and terminates the process. Reserved for
// startup invariant violations (duplicate protocol key, missing
// decoder) per spec.md §7's Fatal error class.
func Fatalf(format string, args ...any) {
	current().Error(sprintf(format, args...))
	os.Exit(1)
}

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

// InfoCtx/WarnCtx/ErrorCtx allow callers that already carry a context
// (for OTel trace correlation) to log without losing span linkage.
func InfoCtx(ctx context.Context, msg string, args ...any)  { current().InfoContext(ctx, msg, args...) }
func WarnCtx(ctx context.Context, msg string, args ...any)  { current().WarnContext(ctx, msg, args...) }
func ErrorCtx(ctx context.Context, msg string, args ...any) { current().ErrorContext(ctx, msg, args...) }
