package promsink_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/goliatone/go-session-automerge/pkg/activity"
	"github.com/goliatone/go-session-automerge/pkg/activity/promsink"
)

func TestHookCountsByVerb(t *testing.T) {
	reg := prometheus.NewRegistry()
	hook, err := promsink.New(reg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx := context.Background()
	events := []activity.Event{
		{Verb: activity.VerbMerged, Channel: "sessions"},
		{Verb: activity.VerbMerged, Channel: "sessions"},
		{Verb: activity.VerbConflictFallback, Channel: "sessions"},
		{Verb: " "},
	}
	for _, event := range events {
		if err := hook.Notify(ctx, event); err != nil {
			t.Fatalf("notify: %v", err)
		}
	}

	if got := testutil.ToFloat64(hook.Collector().WithLabelValues(activity.VerbMerged, "sessions")); got != 2 {
		t.Fatalf("expected 2 merged events, got %v", got)
	}
	if got := testutil.ToFloat64(hook.Collector().WithLabelValues(activity.VerbConflictFallback, "sessions")); got != 1 {
		t.Fatalf("expected 1 fallback event, got %v", got)
	}
	if got := testutil.CollectAndCount(hook.Collector()); got != 2 {
		t.Fatalf("expected 2 series, got %d", got)
	}
}

func TestNewRejectsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := promsink.New(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := promsink.New(reg); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}

func TestHookWorksThroughEmitter(t *testing.T) {
	hook, err := promsink.New(nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	emitter := activity.NewEmitter(activity.Hooks{hook}, activity.Config{Enabled: true})
	event := activity.BuildDestroyedEvent(activity.SessionEventInput{SessionID: "abc"})
	if err := emitter.Emit(context.Background(), event); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if got := testutil.ToFloat64(hook.Collector().WithLabelValues(activity.VerbDestroyed, "sessions")); got != 1 {
		t.Fatalf("expected destroyed event counted on default channel, got %v", got)
	}
}
