// Package logger provides the structured logging wrapper used across the
// coordination core: every component gets a zerolog.Logger scoped with its
// component name, and session/stage identifiers travel as fields rather
// than being interpolated into the message string.
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps a component-scoped zerolog.Logger.
type Logger struct {
	zl zerolog.Logger
}

var base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
	With().Timestamp().Logger()

func init() {
	if os.Getenv("MARKETPULSE_LOG_FORMAT") == "json" {
		base = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
	if lvl, err := zerolog.ParseLevel(os.Getenv("MARKETPULSE_LOG_LEVEL")); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
}

// New creates a Logger scoped to the given component (e.g. "providers",
// "search", "pipeline").
func New(component string) *Logger {
	return &Logger{zl: base.With().Str("component", component).Logger()}
}

// Fields is a shorthand bag of structured context attached to a log line.
type Fields map[string]any

func (l *Logger) with(ev *zerolog.Event, fields Fields) *zerolog.Event {
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	return ev
}

func (l *Logger) Debug(msg string, fields Fields) { l.with(l.zl.Debug(), fields).Msg(msg) }
func (l *Logger) Info(msg string, fields Fields)  { l.with(l.zl.Info(), fields).Msg(msg) }
func (l *Logger) Warn(msg string, fields Fields)  { l.with(l.zl.Warn(), fields).Msg(msg) }

// Error logs an error message, attaching err under the "error" field when present.
func (l *Logger) Error(msg string, err error, fields Fields) {
	ev := l.zl.Error()
	if err != nil {
		ev = ev.Err(err)
	}
	l.with(ev, fields).Msg(msg)
}

// WithSession returns a child Logger with the session id attached to every
// subsequent log line.
func (l *Logger) WithSession(sessionID string) *Logger {
	return &Logger{zl: l.zl.With().Str("session_id", sessionID).Logger()}
}

// WithStage returns a child Logger with a stage name attached.
func (l *Logger) WithStage(stage string) *Logger {
	return &Logger{zl: l.zl.With().Str("stage", stage).Logger()}
}
