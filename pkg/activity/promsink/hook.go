// Package promsink counts activity events with Prometheus.
package promsink

import (
	"context"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/goliatone/go-session-automerge/pkg/activity"
)

// Hook increments a counter per verb and channel for every notified event.
// Do not share one Hook across registries; use New per registry.
type Hook struct {
	events *prometheus.CounterVec
}

// New builds a Hook and registers its collector with reg. A nil registerer
// leaves the collector unregistered, which is useful in tests.
func New(reg prometheus.Registerer) (*Hook, error) {
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "automerge",
		Subsystem: "session",
		Name:      "events_total",
		Help:      "The total number of session activity events.",
	},
		[]string{"verb", "channel"},
	)
	if reg != nil {
		if err := reg.Register(events); err != nil {
			return nil, err
		}
	}
	return &Hook{events: events}, nil
}

// Collector exposes the underlying counter vector.
func (h *Hook) Collector() *prometheus.CounterVec {
	return h.events
}

// Notify counts the event. Events without a verb are ignored.
func (h *Hook) Notify(_ context.Context, event activity.Event) error {
	if h == nil || h.events == nil {
		return nil
	}
	verb := strings.TrimSpace(event.Verb)
	if verb == "" {
		return nil
	}
	h.events.WithLabelValues(verb, strings.TrimSpace(event.Channel)).Inc()
	return nil
}

var _ activity.Hook = (*Hook)(nil)
