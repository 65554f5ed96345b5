package automerge

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-session-automerge/pkg/kv"
)

var (
	// ErrStoreRequired indicates an engine or manager was built without a store.
	ErrStoreRequired = errors.New("automerge: store is required")
	// ErrInvalidTTL indicates a negative TTL was configured.
	ErrInvalidTTL = errors.New("automerge: ttl must not be negative")
)

// StoreError is the error reported for backend get/set/delete failures.
type StoreError = kv.StoreError

// DecodeError reports a host payload that could not be decoded into a document.
type DecodeError struct {
	Encoding string
	Err      error
}

func (e *DecodeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("automerge: decode %s payload: %v", e.Encoding, e.Err)
}

func (e *DecodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ResolverError reports a conflict resolver failure for a single key.
type ResolverError struct {
	Key string
	Err error
}

func (e *ResolverError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("automerge: resolve key=%q: %v", e.Key, e.Err)
}

func (e *ResolverError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
