// Package logger is the process-wide logging facade. The destination and
// level are swappable at runtime so the binary can start logging to stdout
// and re-point at a file once configuration is loaded.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	level slog.LevelVar

	mu      sync.RWMutex
	current = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &level}))
)

// SetOutput replaces the log destination. An io.MultiWriter tees stdout
// and a file.
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	l := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: &level}))
	mu.Lock()
	current = l
	mu.Unlock()
}

// SetLevel applies a level by name; unrecognized names mean info.
func SetLevel(name string) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn", "warning":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
}

func get() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

func Debugf(format string, v ...any) { get().Debug(fmt.Sprintf(format, v...)) }

func Infof(format string, v ...any) { get().Info(fmt.Sprintf(format, v...)) }

func Warnf(format string, v ...any) { get().Warn(fmt.Sprintf(format, v...)) }

func Errorf(format string, v ...any) { get().Error(fmt.Sprintf(format, v...)) }
