package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

var Logger = slog.Default()

// Config selects level, encoding and destination of the process logger.
type Config struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
	File   string `yaml:"file"`   // empty means stdout
}

// Init builds the process logger. DEBUG=true forces debug level.
// The returned closer releases the log file, if any.
func Init(cfg Config) (io.Closer, error) {
	level := parseLevel(cfg.Level)
	if os.Getenv("DEBUG") == "true" {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", cfg.File, err)
		}
		out, closer = f, f
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = slog.NewTextHandler(out, opts)
	}

	Logger = slog.New(h)
	slog.SetDefault(Logger)
	return closer, nil
}

// With returns the process logger with the given attributes attached.
func With(args ...any) *slog.Logger {
	return Logger.With(args...)
}

// Discard is a logger that drops everything; used by tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
