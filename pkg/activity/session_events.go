package activity

import (
	"strings"
	"time"
)

// Verbs emitted for session lifecycle events.
const (
	VerbReadDegraded     = "session.read.degraded"
	VerbConflictResolved = "session.conflict.resolved"
	VerbConflictFallback = "session.conflict.fallback"
	VerbMerged           = "session.merged"
	VerbWriteFailed      = "session.write.failed"
	VerbDestroyed        = "session.destroyed"
)

// ObjectTypeSession tags events whose object is a stored session document.
const ObjectTypeSession = "session"

// SessionEventInput describes the common fields for session events.
type SessionEventInput struct {
	Actor      Actor
	SessionID  string
	StoreKey   string
	RequestID  string
	Channel    string
	Recipients []string
	Metadata   map[string]any
	// Key is the document key a conflict event refers to.
	Key string
	// Keys lists the document keys touched by a merge.
	Keys       []string
	Conflicts  int
	Fallbacks  int
	Err        error
	OccurredAt time.Time
}

// BuildReadDegradedEvent reports a read that fell back to an empty document.
func BuildReadDegradedEvent(input SessionEventInput) Event {
	return buildSessionEvent(VerbReadDegraded, input)
}

// BuildConflictResolvedEvent reports a conflict settled by the resolver.
func BuildConflictResolvedEvent(input SessionEventInput) Event {
	return buildSessionEvent(VerbConflictResolved, input)
}

// BuildConflictFallbackEvent reports a conflict where the resolver failed and
// the request's own value was kept.
func BuildConflictFallbackEvent(input SessionEventInput) Event {
	return buildSessionEvent(VerbConflictFallback, input)
}

// BuildMergedEvent reports a merged document written back to the store.
func BuildMergedEvent(input SessionEventInput) Event {
	return buildSessionEvent(VerbMerged, input)
}

// BuildWriteFailedEvent reports a final store write that failed.
func BuildWriteFailedEvent(input SessionEventInput) Event {
	return buildSessionEvent(VerbWriteFailed, input)
}

// BuildDestroyedEvent reports a session removed from the store.
func BuildDestroyedEvent(input SessionEventInput) Event {
	return buildSessionEvent(VerbDestroyed, input)
}

func buildSessionEvent(verb string, input SessionEventInput) Event {
	metadata := cloneMetadata(input.Metadata)
	if input.StoreKey != "" {
		metadata = ensureMetadata(metadata)
		metadata["store_key"] = input.StoreKey
	}
	if input.RequestID != "" {
		metadata = ensureMetadata(metadata)
		metadata["request_id"] = input.RequestID
	}
	if input.Key != "" {
		metadata = ensureMetadata(metadata)
		metadata["key"] = input.Key
	}
	if len(input.Keys) > 0 {
		metadata = ensureMetadata(metadata)
		metadata["keys"] = append([]string{}, input.Keys...)
	}
	if input.Conflicts > 0 {
		metadata = ensureMetadata(metadata)
		metadata["conflicts"] = input.Conflicts
	}
	if input.Fallbacks > 0 {
		metadata = ensureMetadata(metadata)
		metadata["fallbacks"] = input.Fallbacks
	}
	if input.Err != nil {
		metadata = ensureMetadata(metadata)
		metadata["error"] = input.Err.Error()
	}

	recipients := input.Recipients
	if len(recipients) > 0 {
		recipients = append([]string{}, input.Recipients...)
	}

	objectID := strings.TrimSpace(input.SessionID)
	if objectID == "" {
		objectID = strings.TrimSpace(input.StoreKey)
	}
	if objectID == "" {
		objectID = ObjectTypeSession
	}

	return Event{
		Verb:           verb,
		Actor:          input.Actor,
		ObjectType:     ObjectTypeSession,
		ObjectID:       objectID,
		Channel:        strings.TrimSpace(input.Channel),
		DefinitionCode: "session:" + strings.TrimPrefix(verb, "session."),
		Recipients:     recipients,
		Metadata:       metadata,
		OccurredAt:     input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
