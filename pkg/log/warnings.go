package log

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/sciforge/gorom/pkg/errors"
)

// warnLogger is the zerolog logger used for pipeline warnings. It is kept
// separate from the slog default logger so that warnings always reach stderr
// even when the caller never calls SetupLogger.
var warnLogger = zerolog.New(os.Stderr).With().Timestamp().Logger()

// EnableStructuredWarnings routes pkg/errors warnings through zerolog.
// Warning types implementing zerolog.LogObjectMarshaler (RankClampedWarning,
// ConvergenceWarning, ...) are emitted as structured objects; anything else
// falls back to the plain error message.
func EnableStructuredWarnings() {
	errors.SetZerologWarnFunc(func(warning error) {
		ev := warnLogger.Warn()
		if obj, ok := warning.(zerolog.LogObjectMarshaler); ok {
			ev.EmbedObject(obj).Msg("pipeline warning")
			return
		}
		ev.Err(warning).Msg("pipeline warning")
	})
}

// SetWarnOutput redirects structured warnings, mainly for tests.
func SetWarnOutput(w *os.File) {
	warnLogger = zerolog.New(w).With().Timestamp().Logger()
}
