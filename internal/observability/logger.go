package observability

import (
	"github.com/danmuck/portagent/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger configures the runtime logger, tags it with app and installs
// it as the zerolog global for code that logs through zerolog/log.
func InitLogger(app string) zerolog.Logger {
	logger := logging.ConfigureRuntime().With().Str("app", app).Logger()
	log.Logger = logger
	return logger
}
