// Package logging builds component loggers on rs/zerolog.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options select level and output format. Zero values mean info level, JSON to stdout.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json or console
	Out    io.Writer
}

var defaults = Options{}

// Configure sets the process-wide options used by New. Call once from main.
func Configure(o Options) {
	defaults = o
	lvl, err := zerolog.ParseLevel(strings.ToLower(o.Level))
	if err != nil || o.Level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// New returns a logger tagged with the component field.
// APP_ENV=dev forces console output regardless of Options.Format.
func New(component string) zerolog.Logger {
	out := defaults.Out
	if out == nil {
		out = os.Stdout
	}
	if defaults.Format == "console" || strings.EqualFold(os.Getenv("APP_ENV"), "dev") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).With().Timestamp().Str("component", component).Logger()
}

// Nop discards everything. Handy in tests.
func Nop() zerolog.Logger { return zerolog.Nop() }
