package observability

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the process-wide zerolog.Logger, writing structured JSON
// to stdout with an RFC3339Nano timestamp; level defaults to "info" for an
// empty or unrecognized value.
func NewLogger(level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	lvl := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level))); err == nil {
		lvl = parsed
	}
	zerolog.SetGlobalLevel(lvl)

	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
