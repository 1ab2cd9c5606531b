// Package logging sets up the structured logger used across callwatch's
// instrumentation-degradation and reporter-failure paths (spec.md §7: pool
// unavailable, reflection miss, and reporter errors are all logged rather
// than propagated). Mirrors the teacher's pkg/logger: slog with a selectable
// JSON/text handler and an optional rotating file writer.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls the logger New builds.
type Config struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string
	// Format is "json" or "text".
	Format string
	// Output is "stdout", "stderr", or "file".
	Output string
	// Filename, MaxSizeMB, MaxBackups, MaxAgeDays, Compress apply only when
	// Output == "file", delegating rotation to lumberjack.
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultConfig logs info-and-above JSON to stdout, suitable for embedding in
// a host application without surprising it with files on disk.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json", Output: "stdout"}
}

// New builds a *slog.Logger from cfg.
func New(cfg Config) *slog.Logger {
	handler := newHandler(cfg)
	return slog.New(handler)
}

func newHandler(cfg Config) slog.Handler {
	level := ParseLevel(cfg.Level)
	writer := newWriter(cfg)
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.NewTextHandler(writer, opts)
	}
	return slog.NewJSONHandler(writer, opts)
}

// ParseLevel converts a config string to a slog.Level, defaulting to Info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

func newWriter(cfg Config) io.Writer {
	switch strings.ToLower(cfg.Output) {
	case "file":
		if cfg.Filename == "" {
			return os.Stdout
		}
		return &lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
	case "stderr":
		return os.Stderr
	default:
		return os.Stdout
	}
}
