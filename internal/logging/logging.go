// Package logging builds the charmbracelet loggers shared by the CLI and the
// engine packages.
//
//	logger, closer, err := logging.New(logging.Config{Level: "debug"})
//	if err != nil {
//	    return err
//	}
//	defer closer.Close()
//	logging.Component(logger, "scan").Info("scan started", "root", root)
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
)

// ErrInvalidLevel is returned when an invalid log level string is provided.
var ErrInvalidLevel = errors.New("invalid log level")

// ParseLevel parses a level name.
func ParseLevel(s string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DebugLevel, nil
	case "", "info":
		return log.InfoLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	default:
		return log.InfoLevel, fmt.Errorf("%w: %s", ErrInvalidLevel, s)
	}
}

// Config configures a root logger.
type Config struct {
	// Level is the minimum level (debug, info, warn, error).
	Level string

	// Path is a log file. Empty logs to stderr.
	Path string
}

// DefaultLogPath returns $XDG_STATE_HOME/dupfinder/dupfinder.log.
func DefaultLogPath() string {
	return filepath.Join(xdg.StateHome, "dupfinder", "dupfinder.log")
}

// New creates a root logger. The returned closer releases the log file, if any.
func New(cfg Config) (*log.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Path == "" {
		logger := log.NewWithOptions(os.Stderr, log.Options{
			Level:           level,
			ReportTimestamp: true,
			TimeFormat:      "15:04:05",
		})
		return logger, nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	logger := log.NewWithOptions(f, log.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})
	return logger, f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Nop returns a logger that discards everything.
func Nop() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

// Component returns l tagged with a component prefix. A nil l yields Nop.
func Component(l *log.Logger, name string) *log.Logger {
	if l == nil {
		return Nop()
	}
	return l.WithPrefix(name)
}
