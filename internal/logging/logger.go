// Package logging configures the global zerolog logger. Output always goes to
// stderr because stdout carries the MCP protocol stream.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init sets the global level and output. level is one of debug, info, warn,
// error (anything else means info). jsonOutput selects raw JSON lines instead
// of the human-readable console format.
func Init(level string, jsonOutput bool) {
	InitWriter(os.Stderr, level, jsonOutput)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, level string, jsonOutput bool) {
	zerolog.SetGlobalLevel(ParseLevel(level))
	zerolog.TimeFieldFormat = time.RFC3339

	if jsonOutput {
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen})
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
