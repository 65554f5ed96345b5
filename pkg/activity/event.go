package activity

import (
	"strings"
	"time"
)

// Actor identifies who a session event is attributed to. IDs stay strings so
// hosts can use whatever identity scheme they already have.
type Actor struct {
	ID       string
	UserID   string
	TenantID string
}

// Event is a single session activity occurrence.
type Event struct {
	Verb           string
	Actor          Actor
	ObjectType     string
	ObjectID       string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Metadata       map[string]any
	OccurredAt     time.Time
}

// Routable reports whether the event carries the fields sinks key records on.
func (e Event) Routable() bool {
	return strings.TrimSpace(e.Verb) != "" &&
		strings.TrimSpace(e.ObjectType) != "" &&
		strings.TrimSpace(e.ObjectID) != ""
}

// Normalized returns a trimmed copy that shares no maps or slices with e.
// A zero OccurredAt is stamped with now.
func (e Event) Normalized(now func() time.Time) Event {
	out := e
	out.Verb = strings.TrimSpace(e.Verb)
	out.Actor = Actor{
		ID:       strings.TrimSpace(e.Actor.ID),
		UserID:   strings.TrimSpace(e.Actor.UserID),
		TenantID: strings.TrimSpace(e.Actor.TenantID),
	}
	out.ObjectType = strings.TrimSpace(e.ObjectType)
	out.ObjectID = strings.TrimSpace(e.ObjectID)
	out.Channel = strings.TrimSpace(e.Channel)
	out.DefinitionCode = strings.TrimSpace(e.DefinitionCode)
	out.Metadata = cloneMetadata(e.Metadata)
	out.Recipients = nil
	if len(e.Recipients) > 0 {
		out.Recipients = append([]string{}, e.Recipients...)
	}
	if out.OccurredAt.IsZero() {
		if now == nil {
			now = time.Now
		}
		out.OccurredAt = now()
	}
	return out
}

func cloneMetadata(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		if keys, ok := value.([]string); ok {
			value = append([]string{}, keys...)
		}
		dst[key] = value
	}
	return dst
}
