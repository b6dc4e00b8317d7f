// Package logging builds the process logger: human readable text on the
// terminal, fanned out to a JSON log file inside the project when one is
// known.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// Options configures New.
type Options struct {
	// Level filters the terminal handler. The file always records Info and
	// above.
	Level slog.Leveler
	// Stderr receives the text output. Nil means os.Stderr.
	Stderr io.Writer
	// File is an optional JSON log file, opened for appending.
	File string
}

// CloseFunc releases the log file.
type CloseFunc func() error

// New returns the logger described by opts and a function closing the log
// file.
func New(opts Options) (*slog.Logger, CloseFunc, error) {
	level := opts.Level
	if level == nil {
		level = slog.LevelWarn
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	handlers := []slog.Handler{
		slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}),
	}
	closeFn := func() error { return nil }

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o750); err != nil {
			return nil, nil, fmt.Errorf("logging: create dir: %w", err)
		}

		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) //nolint:gosec // log path is derived from the project dir
		if err != nil {
			return nil, nil, fmt.Errorf("logging: open %s: %w", opts.File, err)
		}

		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: minLevel(level.Level(), slog.LevelInfo)}))
		closeFn = f.Close
	}

	return slog.New(slogmulti.Fanout(handlers...)), closeFn, nil
}

func minLevel(a, b slog.Level) slog.Level {
	if a < b {
		return a
	}

	return b
}

// ParseLevel accepts debug, info, warn or error, case-insensitively.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("logging: %w", err)
	}

	return l, nil
}
