package config

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var appLogger = zerolog.New(os.Stderr).With().Timestamp().Logger()

// NewLogger builds the application logger. Development gets a human readable
// console writer, every other environment logs JSON lines.
func NewLogger(level, env string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	var l zerolog.Logger
	if env == "development" {
		l = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		l = zerolog.New(os.Stderr)
	}
	return l.Level(lvl).With().Timestamp().Str("service", "eventflow-api").Logger()
}

// Logger returns the process-wide logger.
func Logger() *zerolog.Logger {
	return &appLogger
}

// SetLogger replaces the process-wide logger.
func SetLogger(l zerolog.Logger) {
	appLogger = l
}
