// Package logging builds the zerolog logger used by the CLI.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Options selects where log events go.
type Options struct {
	// Console receives human-readable events; nil means os.Stderr.
	Console io.Writer
	// Verbose lowers the console level from Info to Debug.
	Verbose bool
	// Path, if set, receives every event as JSON at Debug level.
	Path string
}

// New returns a logger and a function that closes the log file, if any.
// Both sinks are wrapped so concurrent workers serialize on them.
func New(opts Options) (zerolog.Logger, func() error, error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	consoleLevel := zerolog.InfoLevel
	if opts.Verbose {
		consoleLevel = zerolog.DebugLevel
	}

	writers := []io.Writer{
		&zerolog.FilteredLevelWriter{
			Writer: zerolog.LevelWriterAdapter{Writer: zerolog.SyncWriter(zerolog.ConsoleWriter{
				Out:        console,
				TimeFormat: time.TimeOnly,
			})},
			Level: consoleLevel,
		},
	}

	closeFn := func() error { return nil }
	if opts.Path != "" {
		f, err := os.Create(opts.Path)
		if err != nil {
			return zerolog.Nop(), closeFn, fmt.Errorf("logging: open %s: %w", opts.Path, err)
		}
		writers = append(writers, zerolog.SyncWriter(f))
		closeFn = f.Close
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(zerolog.DebugLevel).
		With().
		Timestamp().
		Logger()
	return logger, closeFn, nil
}
