package kv_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-session-automerge/pkg/codec"
	"github.com/goliatone/go-session-automerge/pkg/document"
	"github.com/goliatone/go-session-automerge/pkg/kv"
)

type bytesRecord struct {
	data []byte
	ttl  time.Duration
}

type fakeBytesStore struct {
	records map[string]bytesRecord
	getErr  error
	setErr  error
}

func newFakeBytesStore() *fakeBytesStore {
	return &fakeBytesStore{records: map[string]bytesRecord{}}
}

func (s *fakeBytesStore) GetBytes(_ context.Context, key string) ([]byte, bool, error) {
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	record, ok := s.records[key]
	if !ok {
		return nil, false, nil
	}
	return record.data, true, nil
}

func (s *fakeBytesStore) SetBytes(_ context.Context, key string, data []byte, ttl time.Duration) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.records[key] = bytesRecord{data: data, ttl: ttl}
	return nil
}

func (s *fakeBytesStore) Delete(_ context.Context, key string) error {
	delete(s.records, key)
	return nil
}

func TestCodecStoreUsesInjectedCodec(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBytesStore()
	store := kv.NewCodecStore(backend, codec.MsgPack())
	if store.Codec().Name() != "msgpack" {
		t.Fatalf("expected msgpack codec, got %s", store.Codec().Name())
	}

	in := document.Document{"a": 1.0, "nested": map[string]any{"b": []any{true}}}
	if err := store.Set(ctx, "session_x", in, 90*time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	if backend.records["session_x"].ttl != 90*time.Second {
		t.Fatalf("expected ttl forwarded, got %v", backend.records["session_x"].ttl)
	}

	out, ok, err := store.Get(ctx, "session_x")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if !document.Equal(map[string]any(in), map[string]any(out)) {
		t.Fatalf("expected round trip, got %v", out)
	}
}

func TestCodecStoreDefaultsToJSON(t *testing.T) {
	store := kv.NewCodecStore(newFakeBytesStore(), nil)
	if store.Codec().Name() != "json" {
		t.Fatalf("expected json default, got %s", store.Codec().Name())
	}
}

func TestCodecStoreMalformedPayload(t *testing.T) {
	backend := newFakeBytesStore()
	backend.records["k"] = bytesRecord{data: []byte("not json")}
	store := kv.NewCodecStore(backend, codec.JSON())

	_, ok, err := store.Get(context.Background(), "k")
	if ok {
		t.Fatalf("expected malformed payload to not be ok")
	}
	if !errors.Is(err, kv.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestCodecStoreWrapsBackendErrors(t *testing.T) {
	backend := newFakeBytesStore()
	backend.getErr = errors.New("timeout")
	backend.setErr = errors.New("read only replica")
	store := kv.NewCodecStore(backend, nil)

	_, _, err := store.Get(context.Background(), "k")
	var storeErr *kv.StoreError
	if !errors.As(err, &storeErr) || storeErr.Op != kv.OpGet {
		t.Fatalf("expected get StoreError, got %v", err)
	}
	err = store.Set(context.Background(), "k", document.New(), 0)
	if !errors.As(err, &storeErr) || storeErr.Op != kv.OpSet {
		t.Fatalf("expected set StoreError, got %v", err)
	}
}

func TestWrapErrorKeepsExistingStoreError(t *testing.T) {
	original := &kv.StoreError{Op: kv.OpGet, Key: "a", Err: errors.New("x")}
	if got := kv.WrapError(kv.OpSet, "b", original); got != error(original) {
		t.Fatalf("expected existing StoreError to be returned as is")
	}
	if kv.WrapError(kv.OpSet, "b", nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}
