package plog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Level aliases slog.Level so callers never import log/slog directly.
type Level = slog.Level

// LevelNotice sits between Debug and Info. It is used for per-path
// operational output (COPY, SKIP, EXCL) that would flood Info but is
// more than debugging noise.
const (
	LevelDebug  Level = slog.LevelDebug
	LevelNotice Level = slog.LevelDebug + 2
	LevelInfo   Level = slog.LevelInfo
	LevelWarn   Level = slog.LevelWarn
	LevelError  Level = slog.LevelError
)

// levelDispatchHandler writes records to different handlers based on level:
// WARN and above to stderr, everything else to stdout. This keeps summaries
// pipeable while errors stay visible on the terminal.
type levelDispatchHandler struct {
	stdoutHandler slog.Handler
	stderrHandler slog.Handler
}

func (h *levelDispatchHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.stdoutHandler.Enabled(ctx, level) || h.stderrHandler.Enabled(ctx, level)
}

func (h *levelDispatchHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelWarn {
		return h.stderrHandler.Handle(ctx, r)
	}
	return h.stdoutHandler.Handle(ctx, r)
}

func (h *levelDispatchHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelDispatchHandler{
		stdoutHandler: h.stdoutHandler.WithAttrs(attrs),
		stderrHandler: h.stderrHandler.WithAttrs(attrs),
	}
}

func (h *levelDispatchHandler) WithGroup(name string) slog.Handler {
	return &levelDispatchHandler{
		stdoutHandler: h.stdoutHandler.WithGroup(name),
		stderrHandler: h.stderrHandler.WithGroup(name),
	}
}

var (
	mu            sync.RWMutex
	levelVar      = new(slog.LevelVar)
	defaultLogger *slog.Logger
)

// handlerOptions renders the custom NOTICE level by name instead of "DEBUG+2".
func handlerOptions(minLevel slog.Leveler) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: minLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelNotice {
					a.Value = slog.StringValue("NOTICE")
				}
			}
			return a
		},
	}
}

func init() {
	levelVar.Set(LevelInfo)

	stdoutHandler := slog.NewTextHandler(os.Stdout, handlerOptions(levelVar))
	stderrHandler := slog.NewTextHandler(os.Stderr, handlerOptions(levelVar))

	defaultLogger = slog.New(&levelDispatchHandler{
		stdoutHandler: stdoutHandler,
		stderrHandler: stderrHandler,
	})
}

// SetLevel changes the minimum level of the global logger.
func SetLevel(level Level) {
	levelVar.Set(level)
}

// ParseLevel converts a level name from config/flags into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "notice":
		return LevelNotice, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("invalid log level: %q. Must be 'debug', 'notice', 'info', 'warn', or 'error'", s)
}

// SetOutput redirects all logger output to a single writer, primarily for
// testing. Level dispatch to stdout/stderr is disabled until restored by
// another SetOutput call.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = slog.New(slog.NewTextHandler(w, handlerOptions(levelVar)))
}

func logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// Debug logs a debugging message.
func Debug(msg string, args ...any) {
	logger().Log(context.Background(), LevelDebug, msg, args...)
}

// Notice logs a per-path operational message.
func Notice(msg string, args ...any) {
	logger().Log(context.Background(), LevelNotice, msg, args...)
}

// Info logs an informational message.
func Info(msg string, args ...any) {
	logger().Log(context.Background(), LevelInfo, msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	logger().Log(context.Background(), LevelWarn, msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	logger().Log(context.Background(), LevelError, msg, args...)
}
