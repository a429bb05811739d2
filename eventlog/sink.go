package eventlog

import (
	"github.com/rs/zerolog"
)

// LoggerSink mirrors events to a structured logger. It is a convenience for
// operators watching a live sale; the event log remains the audit trail.
type LoggerSink struct {
	Logger zerolog.Logger
}

// NewLoggerSink wraps a zerolog logger as an Emitter.
func NewLoggerSink(logger zerolog.Logger) LoggerSink {
	return LoggerSink{Logger: logger}
}

func (s LoggerSink) Emit(e Event) {
	ev := s.Logger.Info().
		Str("event", e.Name).
		Time("at", e.Timestamp)
	if e.Actor != "" {
		ev = ev.Str("actor", e.Actor)
	}
	for k, v := range e.Attrs {
		ev = ev.Str(k, v)
	}
	ev.Msg("notification")
}
