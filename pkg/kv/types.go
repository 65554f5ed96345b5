package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-session-automerge/pkg/codec"
	"github.com/goliatone/go-session-automerge/pkg/document"
)

// ErrMalformed indicates the backend returned bytes that did not decode into a document.
var ErrMalformed = errors.New("kv: malformed document")

// Op names a store primitive for error reporting.
type Op string

const (
	OpGet    Op = "get"
	OpSet    Op = "set"
	OpDelete Op = "delete"
)

// Store loads, saves and deletes one document per key. Implementations apply
// ttl on every successful Set; ttl <= 0 disables expiry.
type Store interface {
	Get(ctx context.Context, key string) (doc document.Document, ok bool, err error)
	Set(ctx context.Context, key string, doc document.Document, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// BytesStore is the raw primitive surface of a backend such as Redis or
// Memcached. It is paired with a codec.Codec through NewCodecStore.
type BytesStore interface {
	GetBytes(ctx context.Context, key string) (data []byte, ok bool, err error)
	SetBytes(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// StoreError captures the failing primitive alongside the originating error.
type StoreError struct {
	Op  Op
	Key string
	Err error
}

func (e *StoreError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("kv: %s key=%q: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WrapError tags err with op and key unless it already is a StoreError.
func WrapError(op Op, key string, err error) error {
	if err == nil {
		return nil
	}
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return err
	}
	return &StoreError{Op: op, Key: key, Err: err}
}

// CodecStore adapts a BytesStore into a Store using an injected codec.
type CodecStore struct {
	bytes BytesStore
	codec codec.Codec
}

// NewCodecStore pairs backend with c. A nil codec defaults to JSON.
func NewCodecStore(backend BytesStore, c codec.Codec) *CodecStore {
	if c == nil {
		c = codec.JSON()
	}
	return &CodecStore{bytes: backend, codec: c}
}

// Codec returns the codec used by the store.
func (s *CodecStore) Codec() codec.Codec {
	return s.codec
}

func (s *CodecStore) Get(ctx context.Context, key string) (document.Document, bool, error) {
	raw, ok, err := s.bytes.GetBytes(ctx, key)
	if err != nil {
		return nil, false, WrapError(OpGet, key, err)
	}
	if !ok {
		return nil, false, nil
	}
	doc, err := s.codec.Unmarshal(raw)
	if err != nil {
		return nil, false, &StoreError{Op: OpGet, Key: key, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	return doc, true, nil
}

func (s *CodecStore) Set(ctx context.Context, key string, doc document.Document, ttl time.Duration) error {
	raw, err := s.codec.Marshal(doc)
	if err != nil {
		return &StoreError{Op: OpSet, Key: key, Err: err}
	}
	return WrapError(OpSet, key, s.bytes.SetBytes(ctx, key, raw, ttl))
}

func (s *CodecStore) Delete(ctx context.Context, key string) error {
	return WrapError(OpDelete, key, s.bytes.Delete(ctx, key))
}
