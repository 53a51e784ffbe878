package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the application logger. Development gets a human readable
// console writer, every other environment logs JSON to stdout. An empty or
// unknown level keeps the environment default.
func New(environment, level string) zerolog.Logger {
	var out io.Writer = os.Stdout
	if isDevelopment(environment) {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	lvl := zerolog.InfoLevel
	if isDevelopment(environment) {
		lvl = zerolog.DebugLevel
	}
	if level = strings.ToLower(strings.TrimSpace(level)); level != "" {
		if parsed, err := zerolog.ParseLevel(level); err == nil {
			lvl = parsed
		}
	}

	return zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Str("service", "crashanalytix-console").
		Logger()
}

func isDevelopment(environment string) bool {
	switch strings.ToLower(strings.TrimSpace(environment)) {
	case "", "development", "dev", "local":
		return true
	default:
		return false
	}
}
