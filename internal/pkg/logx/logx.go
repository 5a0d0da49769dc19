/*
Package logx wraps zerolog for the TempChat server.

It owns the process-wide logger: console output while developing, JSON lines in
production. Components derive child loggers through Component so every line they
emit carries a "component" field.
*/
package logx

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitGlobalLogger configures the global zerolog instance.
// Development mode writes colored console lines at debug level; otherwise JSON at info level.
// A non-empty level overrides the default for either mode (e.g. "warn").
func InitGlobalLogger(isDevelopment bool, level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	lvl := zerolog.InfoLevel
	if isDevelopment {
		logger = logger.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})
		lvl = zerolog.DebugLevel
	}

	if level != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(level)); err == nil {
			lvl = parsed
		}
	}

	log.Logger = logger.Level(lvl).With().Caller().Logger()
}

// Logger returns the global logger.
func Logger() *zerolog.Logger {
	return &log.Logger
}

// Component returns a child of the global logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return Logger().With().Str("component", name).Logger()
}

// checkFields drops an odd-length key/value list instead of letting zerolog misalign it.
func checkFields(level string, fields []any) []any {
	if len(fields)%2 != 0 {
		Logger().Warn().
			Int("fields_count", len(fields)).
			Str("log_level", level).
			Msgf("logx %s call received odd number of fields: %v", level, fields)
		return nil
	}
	return fields
}

// Info logs msg at info level with optional key/value pairs.
func Info(msg string, fields ...any) {
	fields = checkFields("Info", fields)

	Logger().Info().
		Fields(fields).
		CallerSkipFrame(1).
		Msg(msg)
}

// Warn logs msg at warn level with optional key/value pairs.
func Warn(msg string, fields ...any) {
	fields = checkFields("Warn", fields)

	Logger().Warn().
		Fields(fields).
		CallerSkipFrame(1).
		Msg(msg)
}

// Error logs err and msg at error level with optional key/value pairs.
func Error(err error, msg string, fields ...any) {
	fields = checkFields("Error", fields)

	Logger().Error().
		Err(err).
		Fields(fields).
		CallerSkipFrame(1).
		Msg(msg)
}

// Fatal logs at fatal level and exits the process.
func Fatal(err error, msg string, fields ...any) {
	fields = checkFields("Fatal", fields)

	Logger().Fatal().
		Err(err).
		Fields(fields).
		CallerSkipFrame(1).
		Msg(msg)
}
