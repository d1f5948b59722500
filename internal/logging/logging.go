// Package logging builds the zerolog loggers used by the server and CLI.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// New returns a logger writing to stderr.
func New(level, format string) (zerolog.Logger, error) {
	return NewWriter(os.Stderr, level, format)
}

// NewWriter returns a logger at the given level writing JSON or console
// output to w. An empty level means info.
func NewWriter(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl := zerolog.InfoLevel
	if level != "" {
		var err error
		if lvl, err = zerolog.ParseLevel(strings.ToLower(level)); err != nil {
			return zerolog.Nop(), fmt.Errorf("log level %q: %w", level, err)
		}
	}

	switch strings.ToLower(format) {
	case "", FormatJSON:
	case FormatConsole:
		w = zerolog.NewConsoleWriter(func(cw *zerolog.ConsoleWriter) {
			cw.Out = w
			cw.TimeFormat = "15:04:05.000"
		})
	default:
		return zerolog.Nop(), fmt.Errorf("log format %q: must be %s or %s", format, FormatJSON, FormatConsole)
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}
