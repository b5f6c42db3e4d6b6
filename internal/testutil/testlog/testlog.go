package testlog

import (
	"os"
	"testing"

	"github.com/danmuck/portagent/internal/logging"
	"github.com/rs/zerolog"
)

func Start(t *testing.T) {
	t.Helper()
	logger := logging.ConfigureTests()
	logger.Info().Msgf("test=%s", t.Name())
}

// Logger returns a debug logger tagged with the test name. It writes to
// stderr rather than t.Log so goroutines outliving the test stay safe.
func Logger(t *testing.T) zerolog.Logger {
	t.Helper()
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true}).
		Level(zerolog.DebugLevel).
		With().
		Str("test", t.Name()).
		Logger()
}
