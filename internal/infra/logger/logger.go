package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"memkernel/internal/infra/config"
)

// New creates a configured *slog.Logger, wrapping its handler in
// WithRedaction so every record passes through the secret scrubber before
// it reaches the underlying writer.
// The returned closer function should be deferred to flush/close file handles.
func New(cfg config.LoggerConfig) (*slog.Logger, func() error, error) {
	writer, closer, err := openOutput(cfg.Output)
	if err != nil {
		return nil, nil, fmt.Errorf("open log output: %w", err)
	}

	handler := newHandler(cfg, writer)
	return slog.New(WithRedaction(handler)), closer, nil
}

// newHandler builds the unwrapped slog.Handler for cfg's format/level; New
// wraps whatever this returns in WithRedaction.
func newHandler(cfg config.LoggerConfig, writer io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.NewJSONHandler(writer, opts)
	}
	return slog.NewTextHandler(writer, opts)
}

// levelNames maps the config file's lowercase level strings to slog.Level.
var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// parseLevel converts a string level to slog.Level, defaulting to Info for
// anything unrecognized.
func parseLevel(s string) slog.Level {
	if level, ok := levelNames[strings.ToLower(s)]; ok {
		return level
	}
	return slog.LevelInfo
}

// openOutput returns an io.Writer for the specified output target.
func openOutput(output string) (io.Writer, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(output) {
	case "stdout":
		return os.Stdout, noop, nil
	case "stderr", "":
		return os.Stderr, noop, nil
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return nil, nil, err
		}
		return f, f.Close, nil
	}
}
