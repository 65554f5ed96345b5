package automerge

import (
	"fmt"
	"strings"
	"time"
)

// LogLevel grades a log event.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// LogEvent describes a recovered failure or notable step of a request.
type LogEvent struct {
	Level     LogLevel
	Op        string
	Key       string
	RequestID string
	Message   string
	Duration  time.Duration
	Err       error
}

// String renders the event as a single human-readable line.
func (e LogEvent) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "automerge: level=%s op=%s", e.Level, e.Op)
	if e.Key != "" {
		fmt.Fprintf(&b, " key=%q", e.Key)
	}
	if e.RequestID != "" {
		fmt.Fprintf(&b, " request=%s", e.RequestID)
	}
	if e.Duration > 0 {
		fmt.Fprintf(&b, " duration=%s", e.Duration)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, " msg=%q", e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Logger records engine events.
type Logger interface {
	LogEvent(LogEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(LogEvent)

// LogEvent implements Logger.
func (f LoggerFunc) LogEvent(event LogEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) LogEvent(LogEvent) {}

// WithLogger attaches a logger to the engine configuration.
func WithLogger(logger Logger) Option {
	return func(cfg *config) {
		if logger == nil {
			cfg.logger = noopLogger{}
			return
		}
		cfg.logger = logger
	}
}
