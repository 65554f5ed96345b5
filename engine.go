package automerge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-session-automerge/pkg/activity"
	"github.com/goliatone/go-session-automerge/pkg/document"
	"github.com/goliatone/go-session-automerge/pkg/kv"
)

// Result describes the outcome of a merge.
type Result struct {
	// Merged is the document written to the store, nil when nothing was written.
	Merged document.Document
	// Changes is the diff between the request's final document and its snapshot.
	Changes document.ChangeSet
	// Conflicts lists keys the resolver was consulted for.
	Conflicts []string
	// Fallbacks lists conflicting keys whose resolver failed.
	Fallbacks []string
	// Stored reports whether the store was written.
	Stored bool
}

// Engine runs the read / diff / re-fetch / merge / store cycle for a single
// request. It is not safe for concurrent use; build one per request.
type Engine struct {
	store     kv.Store
	cfg       config
	emitter   *activity.Emitter
	requestID string
	sessionID string
	actor     activity.Actor
	snapshot  document.Document
	readOnly  bool
}

// NewEngine constructs an engine over store.
func NewEngine(store kv.Store, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	cfg := applyOptions(opts)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return newEngine(store, cfg, cfg.newEmitter()), nil
}

func newEngine(store kv.Store, cfg config, emitter *activity.Emitter) *Engine {
	return &Engine{
		store:     store,
		cfg:       cfg,
		emitter:   emitter,
		requestID: uuid.NewString(),
		readOnly:  cfg.readOnly,
		snapshot:  document.New(),
	}
}

// Key maps a session identifier to its store key.
func (e *Engine) Key(id string) string {
	return e.cfg.prefix + id
}

// RequestID identifies this engine in logs and events.
func (e *Engine) RequestID() string {
	return e.requestID
}

// ReadOnly reports whether writes are suppressed.
func (e *Engine) ReadOnly() bool {
	return e.readOnly
}

// SetReadOnly toggles write suppression.
func (e *Engine) SetReadOnly(readOnly bool) {
	e.readOnly = readOnly
}

// Snapshot returns a copy of the document captured by the last Load.
func (e *Engine) Snapshot() document.Document {
	return e.snapshot.Clone()
}

// Read loads the session and returns it in the host encoding. It never fails:
// store failures degrade to an empty document and switch the engine to
// read-only so a partial view is never written back.
func (e *Engine) Read(ctx context.Context, id string) string {
	e.sessionID = id
	key := e.Key(id)
	doc := e.Load(ctx, key)
	encoded, err := e.cfg.encoding.Encode(doc)
	if err == nil {
		return encoded
	}
	e.log(LogEvent{Level: LevelError, Op: "encode", Key: key, Message: "encode snapshot", Err: err})
	encoded, err = e.cfg.encoding.Encode(document.New())
	if err != nil {
		return ""
	}
	return encoded
}

// Write decodes the host payload and merges it into the stored session.
// Read-only engines report success without touching the store.
func (e *Engine) Write(ctx context.Context, id string, data string) bool {
	e.sessionID = id
	key := e.Key(id)
	if e.readOnly {
		e.log(LogEvent{Level: LevelDebug, Op: "write", Key: key, Message: "read-only, write skipped"})
		return true
	}
	final, err := e.cfg.encoding.Decode(data)
	if err != nil {
		decodeErr := &DecodeError{Encoding: e.cfg.encoding.Name(), Err: err}
		e.log(LogEvent{Level: LevelError, Op: "decode", Key: key, Err: decodeErr})
		return false
	}
	if _, err := e.Commit(ctx, key, final); err != nil {
		return false
	}
	return true
}

// Destroy deletes the stored session.
func (e *Engine) Destroy(ctx context.Context, id string) bool {
	e.sessionID = id
	key := e.Key(id)
	start := e.cfg.now()
	if err := e.store.Delete(ctx, key); err != nil {
		e.log(LogEvent{Level: LevelError, Op: "destroy", Key: key, Err: kv.WrapError(kv.OpDelete, key, err)})
		return false
	}
	e.log(LogEvent{Level: LevelDebug, Op: "destroy", Key: key, Duration: e.since(start)})
	e.emit(ctx, activity.BuildDestroyedEvent(e.eventInput(key)))
	return true
}

// Load reads key from the store and captures the snapshot. Missing or
// malformed documents load as empty; a store failure additionally marks the
// engine read-only.
func (e *Engine) Load(ctx context.Context, key string) document.Document {
	start := e.cfg.now()
	doc, ok, err := e.store.Get(ctx, key)
	switch {
	case err != nil && errors.Is(err, kv.ErrMalformed):
		e.log(LogEvent{Level: LevelWarn, Op: "read", Key: key, Message: "malformed document, using empty", Err: err})
		doc = document.New()
	case err != nil:
		e.readOnly = true
		e.log(LogEvent{Level: LevelError, Op: "read", Key: key, Message: "store read failed, session is read-only", Err: err})
		input := e.eventInput(key)
		input.Err = err
		e.emit(ctx, activity.BuildReadDegradedEvent(input))
		doc = document.New()
	case !ok || doc == nil:
		doc = document.New()
	default:
		e.log(LogEvent{Level: LevelDebug, Op: "read", Key: key, Duration: e.since(start)})
	}
	e.snapshot = doc.Clone()
	return e.snapshot.Clone()
}

// Commit merges final into the stored document and returns what was stored.
// Read-only engines return nil without touching the store; an unchanged
// document returns the snapshot without any store call.
func (e *Engine) Commit(ctx context.Context, key string, final document.Document) (document.Document, error) {
	result, err := e.Merge(ctx, key, final)
	if err != nil {
		return nil, err
	}
	return result.Merged, nil
}

// Merge is Commit with a detailed Result.
func (e *Engine) Merge(ctx context.Context, key string, final document.Document) (Result, error) {
	if e.readOnly {
		return Result{}, nil
	}
	start := e.cfg.now()
	changes := document.Diff(final, e.snapshot)
	if changes.Empty() {
		return Result{Merged: e.snapshot.Clone(), Changes: changes}, nil
	}

	merged := e.refetch(ctx, key)
	result := Result{Changes: changes}
	for _, k := range changes.Keys() {
		change := changes[k]
		initial := e.snapshot.Lookup(k)
		external := merged.Lookup(k)

		value := change
		if !document.Equal(external, initial) {
			result.Conflicts = append(result.Conflicts, k)
			resolved, err := e.resolve(ctx, Conflict{
				Key:      k,
				Initial:  document.CloneValue(initial),
				Value:    document.CloneValue(change),
				External: document.CloneValue(external),
			})
			if err != nil {
				result.Fallbacks = append(result.Fallbacks, k)
				e.log(LogEvent{Level: LevelWarn, Op: "resolve", Key: key, Message: "resolver failed, keeping request value", Err: err})
				input := e.eventInput(key)
				input.Key = k
				input.Err = err
				e.emit(ctx, activity.BuildConflictFallbackEvent(input))
			} else {
				value = resolved
				input := e.eventInput(key)
				input.Key = k
				e.emit(ctx, activity.BuildConflictResolvedEvent(input))
			}
		}

		if document.IsSentinel(value) {
			delete(merged, k)
			continue
		}
		merged[k] = document.Normalize(value)
	}

	if err := e.store.Set(ctx, key, merged, e.cfg.ttl); err != nil {
		err = kv.WrapError(kv.OpSet, key, err)
		e.log(LogEvent{Level: LevelError, Op: "write", Key: key, Message: "store write failed", Err: err})
		input := e.eventInput(key)
		input.Keys = changes.Keys()
		input.Err = err
		e.emit(ctx, activity.BuildWriteFailedEvent(input))
		return result, err
	}

	result.Merged = merged.Clone()
	result.Stored = true
	e.log(LogEvent{
		Level:    LevelDebug,
		Op:       "write",
		Key:      key,
		Message:  fmt.Sprintf("merged %d change(s), %d conflict(s)", len(changes), len(result.Conflicts)),
		Duration: e.since(start),
	})
	input := e.eventInput(key)
	input.Keys = changes.Keys()
	input.Conflicts = len(result.Conflicts)
	input.Fallbacks = len(result.Fallbacks)
	e.emit(ctx, activity.BuildMergedEvent(input))
	return result, nil
}

// refetch returns the current stored document. An absent key is an empty
// document; a failed or malformed read falls back to the snapshot.
func (e *Engine) refetch(ctx context.Context, key string) document.Document {
	doc, ok, err := e.store.Get(ctx, key)
	if err != nil {
		e.log(LogEvent{Level: LevelWarn, Op: "refetch", Key: key, Message: "re-fetch failed, merging against snapshot", Err: err})
		return e.snapshot.Clone()
	}
	if !ok || doc == nil {
		return document.New()
	}
	return doc.Clone()
}

func (e *Engine) resolve(ctx context.Context, c Conflict) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ResolverError{Key: c.Key, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	value, err = e.cfg.resolver.Resolve(ctx, c)
	if err != nil {
		return nil, &ResolverError{Key: c.Key, Err: err}
	}
	return value, nil
}

func (e *Engine) eventInput(key string) activity.SessionEventInput {
	return activity.SessionEventInput{
		Actor:      e.actor,
		SessionID:  e.sessionID,
		StoreKey:   key,
		RequestID:  e.requestID,
		OccurredAt: e.cfg.now(),
	}
}

func (e *Engine) emit(ctx context.Context, event activity.Event) {
	if !e.emitter.Wants(event.Verb) {
		return
	}
	if err := e.emitter.Emit(ctx, event); err != nil {
		e.log(LogEvent{Level: LevelWarn, Op: "activity", Key: event.ObjectID, Message: event.Verb, Err: err})
	}
}

func (e *Engine) log(event LogEvent) {
	if event.RequestID == "" {
		event.RequestID = e.requestID
	}
	e.cfg.logger.LogEvent(event)
}

func (e *Engine) since(start time.Time) time.Duration {
	return e.cfg.now().Sub(start)
}
