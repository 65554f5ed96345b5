// Package usersink forwards session activity to a go-users ActivitySink.
package usersink

import (
	"context"
	"fmt"
	"strings"

	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"

	"github.com/goliatone/go-session-automerge/pkg/activity"
)

// Hook maps session events to ActivityRecords. Actor IDs that are not UUIDs
// map to uuid.Nil unless Strict is set, in which case the event is rejected.
type Hook struct {
	Sink   usertypes.ActivitySink
	Strict bool
}

// Notify forwards the event to the sink. Unroutable events are skipped.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil || !event.Routable() {
		return nil
	}
	record, err := h.Record(event)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return h.Sink.Log(ctx, record)
}

// Record builds the ActivityRecord for event. Session metadata lands in Data
// together with the definition code and recipients.
func (h Hook) Record(event activity.Event) (usertypes.ActivityRecord, error) {
	event = event.Normalized(nil)

	var ids [3]uuid.UUID
	for i, raw := range []string{event.Actor.ID, event.Actor.UserID, event.Actor.TenantID} {
		id, err := h.parseID(raw)
		if err != nil {
			return usertypes.ActivityRecord{}, fmt.Errorf("usersink: %s actor: %w", event.Verb, err)
		}
		ids[i] = id
	}

	data := make(map[string]any, len(event.Metadata)+2)
	for key, value := range event.Metadata {
		data[key] = value
	}
	if event.DefinitionCode != "" {
		data["definition_code"] = event.DefinitionCode
	}
	if len(event.Recipients) > 0 {
		data["recipients"] = event.Recipients
	}
	if len(data) == 0 {
		data = nil
	}

	return usertypes.ActivityRecord{
		ActorID:    ids[0],
		UserID:     ids[1],
		TenantID:   ids[2],
		Verb:       event.Verb,
		ObjectType: event.ObjectType,
		ObjectID:   event.ObjectID,
		Channel:    event.Channel,
		Data:       data,
		OccurredAt: event.OccurredAt,
	}, nil
}

func (h Hook) parseID(raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		if h.Strict {
			return uuid.Nil, err
		}
		return uuid.Nil, nil
	}
	return id, nil
}

var _ activity.Hook = Hook{}
