// Package logruslog forwards engine log events to a logrus logger.
package logruslog

import (
	"github.com/sirupsen/logrus"

	automerge "github.com/goliatone/go-session-automerge"
)

// Logger implements automerge.Logger on top of logrus.
type Logger struct {
	entry *logrus.Entry
}

// New wraps a logrus logger. A nil logger uses logrus.StandardLogger.
func New(logger *logrus.Logger) *Logger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Logger{entry: logrus.NewEntry(logger)}
}

// WithFields returns a copy that attaches fields to every event.
func (l *Logger) WithFields(fields logrus.Fields) *Logger {
	return &Logger{entry: l.entry.WithFields(fields)}
}

// LogEvent implements automerge.Logger.
func (l *Logger) LogEvent(event automerge.LogEvent) {
	if l == nil || l.entry == nil {
		return
	}
	fields := logrus.Fields{"op": event.Op}
	if event.Key != "" {
		fields["key"] = event.Key
	}
	if event.RequestID != "" {
		fields["request_id"] = event.RequestID
	}
	if event.Duration > 0 {
		fields["duration"] = event.Duration.String()
	}
	entry := l.entry.WithFields(fields)
	if event.Err != nil {
		entry = entry.WithError(event.Err)
	}
	msg := event.Message
	if msg == "" {
		msg = event.Op
	}
	entry.Log(level(event.Level), msg)
}

func level(lvl automerge.LogLevel) logrus.Level {
	switch lvl {
	case automerge.LevelDebug:
		return logrus.DebugLevel
	case automerge.LevelWarn:
		return logrus.WarnLevel
	case automerge.LevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

var _ automerge.Logger = (*Logger)(nil)
