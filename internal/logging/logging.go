// Package logging configures the process-wide zerolog logger. All packages
// log through github.com/rs/zerolog/log; this package owns level selection
// and output formatting so the CLI entrypoint stays small.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options selects the global logging behavior.
type Options struct {
	// Level is one of debug, info, warn, error. Unknown values fall back
	// to info.
	Level string
	// Verbose forces debug level regardless of Level.
	Verbose bool
	// Output defaults to stderr. Playback renders words on stdout, so
	// logs must stay off it.
	Output io.Writer
}

// Setup installs the global logger.
func Setup(opts Options) {
	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if opts.Verbose {
		level = zerolog.DebugLevel
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
}
