package exporter

import (
	"github.com/artpar/modforge/core/compiler"
	"github.com/rs/zerolog"
)

// LogExporter writes one log line per compile run.
// Useful for debugging and for the watch command.
type LogExporter struct {
	logger zerolog.Logger
}

// NewLogExporter creates a new log exporter.
func NewLogExporter(logger zerolog.Logger) *LogExporter {
	return &LogExporter{logger: logger}
}

// Name returns the exporter name.
func (e *LogExporter) Name() string {
	return "log"
}

// ObserveCompile logs the outcome of a compile run.
func (e *LogExporter) ObserveCompile(stats compiler.Stats, err error) {
	if err != nil {
		e.logger.Error().
			Err(err).
			Str("kind", ErrorKind(err)).
			Int("modules", stats.Modules).
			Dur("duration", stats.Duration).
			Msg("compile failed")
		return
	}

	e.logger.Info().
		Int("modules", stats.Modules).
		Int("enums", stats.Enums).
		Int("references", stats.References).
		Dur("duration", stats.Duration).
		Msg("compiled")
}
