// Package logger provides component-scoped structured logging on top of log/slog.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync/atomic"
)

type Config struct {
	Level  string
	Format string
	Output io.Writer
}

var (
	level   = new(slog.LevelVar)
	current atomic.Pointer[slog.Logger]
)

func init() {
	Init(Config{Level: "info", Format: "text"})
}

// Init replaces the process-wide logger.
func Init(cfg Config) {
	level.Set(ParseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	default:
		handler = slog.NewTextHandler(out, opts)
	}
	current.Store(slog.New(handler))
}

func SetLevel(l string) {
	level.Set(ParseLevel(l))
}

func ParseLevel(l string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func logC(lvl slog.Level, component, msg string, fields map[string]any) {
	l := current.Load()
	if !l.Enabled(context.Background(), lvl) {
		return
	}

	args := make([]any, 0, 2+2*len(fields))
	if component != "" {
		args = append(args, "component", component)
	}

	// Map iteration order is random; keep output stable.
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, k, fields[k])
	}

	l.Log(context.Background(), lvl, msg, args...)
}

func Debug(msg string) { logC(slog.LevelDebug, "", msg, nil) }
func Info(msg string)  { logC(slog.LevelInfo, "", msg, nil) }
func Warn(msg string)  { logC(slog.LevelWarn, "", msg, nil) }
func Error(msg string) { logC(slog.LevelError, "", msg, nil) }

func DebugC(component, msg string) { logC(slog.LevelDebug, component, msg, nil) }
func InfoC(component, msg string)  { logC(slog.LevelInfo, component, msg, nil) }
func WarnC(component, msg string)  { logC(slog.LevelWarn, component, msg, nil) }
func ErrorC(component, msg string) { logC(slog.LevelError, component, msg, nil) }

func DebugCF(component, msg string, fields map[string]any) {
	logC(slog.LevelDebug, component, msg, fields)
}

func InfoCF(component, msg string, fields map[string]any) {
	logC(slog.LevelInfo, component, msg, fields)
}

func WarnCF(component, msg string, fields map[string]any) {
	logC(slog.LevelWarn, component, msg, fields)
}

func ErrorCF(component, msg string, fields map[string]any) {
	logC(slog.LevelError, component, msg, fields)
}
