package obs

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the service-wide JSON logger. Level comes from the
// LEASE_LOG_LEVEL environment variable and defaults to info.
func NewLogger(service string) zerolog.Logger {
	level, err := zerolog.ParseLevel(os.Getenv("LEASE_LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano

	return zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("service", service).
		Logger()
}
