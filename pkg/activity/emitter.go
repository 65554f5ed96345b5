package activity

import (
	"context"
	"strings"
	"time"
)

// DefaultChannel is applied to events emitted without a channel.
const DefaultChannel = "sessions"

// Config controls emission. An empty Verbs list emits every verb.
type Config struct {
	Enabled bool
	Channel string
	Verbs   []string
}

// Emitter stamps channel and time defaults on events and hands them to hooks.
type Emitter struct {
	hooks   Hooks
	enabled bool
	channel string
	verbs   map[string]struct{}
	now     func() time.Time
}

// EmitterOption configures an Emitter.
type EmitterOption func(*Emitter)

// WithEmitterClock sets the clock used for events without OccurredAt.
func WithEmitterClock(now func() time.Time) EmitterOption {
	return func(e *Emitter) {
		if now != nil {
			e.now = now
		}
	}
}

func NewEmitter(hooks Hooks, cfg Config, opts ...EmitterOption) *Emitter {
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = DefaultChannel
	}
	e := &Emitter{
		hooks:   hooks.Compact(),
		channel: channel,
		now:     time.Now,
	}
	e.enabled = cfg.Enabled && len(e.hooks) > 0
	for _, verb := range cfg.Verbs {
		if verb = strings.TrimSpace(verb); verb == "" {
			continue
		}
		if e.verbs == nil {
			e.verbs = map[string]struct{}{}
		}
		e.verbs[verb] = struct{}{}
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Enabled reports whether Emit will reach any hook.
func (e *Emitter) Enabled() bool {
	return e != nil && e.enabled
}

// Channel returns the default channel.
func (e *Emitter) Channel() string {
	if e == nil {
		return DefaultChannel
	}
	return e.channel
}

// Wants reports whether verb passes the configured filter.
func (e *Emitter) Wants(verb string) bool {
	if !e.Enabled() {
		return false
	}
	if len(e.verbs) == 0 {
		return true
	}
	_, ok := e.verbs[strings.TrimSpace(verb)]
	return ok
}

// Emit forwards event to the hooks when the verb passes the filter.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Wants(event.Verb) {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	return e.hooks.notify(ctx, event, e.now)
}
