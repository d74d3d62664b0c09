// Package logger builds the daemon's slog logger from configuration.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config holds logger configuration
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string // stdout, stderr, or file path
}

// ParseLevel maps a level name to its slog level. Unknown names yield INFO
// and false.
func ParseLevel(level string) (slog.Level, bool) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug, true
	case "INFO", "":
		return slog.LevelInfo, true
	case "WARN", "WARNING":
		return slog.LevelWarn, true
	case "ERROR":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// New creates a logger for cfg. The returned closer releases the log file
// when Output names one and is a no-op otherwise.
func New(cfg Config) (*slog.Logger, io.Closer, error) {
	w, closer, err := openOutput(cfg.Output)
	if err != nil {
		return nil, nil, err
	}
	l, err := NewWithWriter(w, cfg.Level, cfg.Format)
	if err != nil {
		closer.Close()
		return nil, nil, err
	}
	return l, closer, nil
}

// NewWithWriter creates a logger writing to w.
// This is primarily useful for testing.
func NewWithWriter(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, ok := ParseLevel(level)
	if !ok {
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openOutput(output string) (io.Writer, io.Closer, error) {
	switch strings.ToLower(output) {
	case "stdout", "":
		return os.Stdout, nopCloser{}, nil
	case "stderr":
		return os.Stderr, nopCloser{}, nil
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %q: %w", output, err)
		}
		return f, f, nil
	}
}
