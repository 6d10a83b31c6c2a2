// Package logging configures the global zerolog logger.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.elastic.co/ecszerolog"
)

const App = "hospitalstats"

// Setup points log.Logger at w. format is "console" (human readable),
// "json" or "ecs" (Elastic Common Schema JSON). Every line carries the app
// name.
func Setup(w io.Writer, level, format string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	switch strings.ToLower(format) {
	case "", "console":
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}).With().
			Str("app", App).Timestamp().Logger()
	case "json":
		log.Logger = zerolog.New(w).With().Str("app", App).Timestamp().Logger()
	case "ecs":
		log.Logger = ecszerolog.New(w).With().Str("app", App).Logger()
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	return nil
}

// WithRun tags every subsequent line with the run id.
func WithRun(runID string) {
	log.Logger = log.Logger.With().Str("run_id", runID).Logger()
}
