package activity

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Hook receives normalized session events.
type Hook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc adapts a plain function to Hook.
type HookFunc func(ctx context.Context, event Event) error

func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// Hooks fans an event out to every hook in order.
type Hooks []Hook

// NotifyError collects the hook failures of a single fan-out. Hooks that
// succeeded still received the event.
type NotifyError struct {
	Verb string
	Errs []error
}

func (e *NotifyError) Error() string {
	return fmt.Sprintf("activity: %d hook(s) failed for %q: %v", len(e.Errs), e.Verb, errors.Join(e.Errs...))
}

func (e *NotifyError) Unwrap() []error {
	return e.Errs
}

// Notify delivers event to every hook. Events that are not routable are
// dropped silently.
func (h Hooks) Notify(ctx context.Context, event Event) error {
	return h.notify(ctx, event, time.Now)
}

func (h Hooks) notify(ctx context.Context, event Event, now func() time.Time) error {
	if len(h) == 0 || !event.Routable() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	normalized := event.Normalized(now)

	var errs []error
	for _, hook := range h {
		if hook == nil {
			continue
		}
		if err := hook.Notify(ctx, normalized); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return &NotifyError{Verb: normalized.Verb, Errs: errs}
}

// Compact returns a copy of h without nil entries.
func (h Hooks) Compact() Hooks {
	if len(h) == 0 {
		return nil
	}
	out := make(Hooks, 0, len(h))
	for _, hook := range h {
		if hook != nil {
			out = append(out, hook)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
