// Package logging configures the global zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup points the global logger at a console writer on stderr.
// An empty or unknown level falls back to def.
func Setup(level string, def zerolog.Level) {
	SetupWriter(os.Stderr, level, def)
}

// SetupWriter is Setup with an explicit destination.
func SetupWriter(w io.Writer, level string, def zerolog.Level) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, NoColor: true})
	zerolog.SetGlobalLevel(ParseLevel(level, def))
}

// ParseLevel maps a level name to a zerolog level.
func ParseLevel(level string, def zerolog.Level) zerolog.Level {
	if strings.TrimSpace(level) == "" {
		return def
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return def
	}
	return lvl
}
