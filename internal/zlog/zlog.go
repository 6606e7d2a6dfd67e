// Package zlog adapts github.com/rs/zerolog to the Logger interface shared
// by future and cronengine, the same way cronengine.SlogLogger adapts
// log/slog: Info/Error with alternating key-value pairs go straight onto a
// zerolog.Event via Interface, keeping the adapter itself free of any
// domain-specific formatting decisions.
package zlog

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/cronfuture/cronfuture/cronengine"
	"github.com/cronfuture/cronfuture/future"
)

// Logger adapts a zerolog.Logger to future.Logger (and, by the same
// interface shape, cronengine.Logger).
type Logger struct {
	logger zerolog.Logger
}

// New creates a Logger writing to w (os.Stdout if nil) at the given level.
func New(w *os.File, level zerolog.Level) *Logger {
	if w == nil {
		w = os.Stdout
	}
	l := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &Logger{logger: l}
}

// NewFromLogger wraps an already-constructed zerolog.Logger.
func NewFromLogger(l zerolog.Logger) *Logger {
	return &Logger{logger: l}
}

// Info logs msg at info level with keysAndValues appended as fields.
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	event := l.logger.Info()
	withFields(event, keysAndValues).Msg(msg)
}

// Error logs msg at error level, attaching err and keysAndValues as fields.
func (l *Logger) Error(err error, msg string, keysAndValues ...interface{}) {
	event := l.logger.Error().Err(err)
	withFields(event, keysAndValues).Msg(msg)
}

func withFields(event *zerolog.Event, keysAndValues []interface{}) *zerolog.Event {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		event = event.Interface(key, keysAndValues[i+1])
	}
	return event
}

var (
	_ future.Logger    = (*Logger)(nil)
	_ cronengine.Logger = (*Logger)(nil)
)
