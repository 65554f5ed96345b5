package kv

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-session-automerge/pkg/document"
)

// MemoryStore is an in-memory Store intended for tests, examples and single
// process deployments. Documents are cloned on the way in and out so callers
// never share state with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
	now     func() time.Time
	calls   map[Op]int
	faults  map[Op][]error
}

type memoryRecord struct {
	doc       document.Document
	expiresAt time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryClock overrides the clock used for TTL expiry.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		records: map[string]memoryRecord{},
		now:     time.Now,
		calls:   map[Op]int{},
		faults:  map[Op][]error{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *MemoryStore) Get(_ context.Context, key string) (document.Document, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[OpGet]++
	if err := s.popFault(OpGet); err != nil {
		return nil, false, &StoreError{Op: OpGet, Key: key, Err: err}
	}
	record, ok := s.records[key]
	if !ok {
		return nil, false, nil
	}
	if s.expired(record) {
		delete(s.records, key)
		return nil, false, nil
	}
	return record.doc.Clone(), true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, doc document.Document, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[OpSet]++
	if err := s.popFault(OpSet); err != nil {
		return &StoreError{Op: OpSet, Key: key, Err: err}
	}
	record := memoryRecord{doc: doc.Clone()}
	if ttl > 0 {
		record.expiresAt = s.now().Add(ttl)
	}
	s.records[key] = record
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[OpDelete]++
	if err := s.popFault(OpDelete); err != nil {
		return &StoreError{Op: OpDelete, Key: key, Err: err}
	}
	delete(s.records, key)
	return nil
}

// Put seeds a document without counting a call or applying faults.
func (s *MemoryStore) Put(key string, doc document.Document, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record := memoryRecord{doc: doc.Clone()}
	if ttl > 0 {
		record.expiresAt = s.now().Add(ttl)
	}
	s.records[key] = record
}

// Peek returns the stored document without counting a call.
func (s *MemoryStore) Peek(key string) (document.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[key]
	if !ok || s.expired(record) {
		return nil, false
	}
	return record.doc.Clone(), true
}

// ExpiresAt returns the expiry deadline recorded for key, zero when none.
func (s *MemoryStore) ExpiresAt(key string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[key].expiresAt
}

// FailNext queues err to be returned by the next call to op.
func (s *MemoryStore) FailNext(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = append(s.faults[op], err)
}

// Calls returns how many times op was invoked.
func (s *MemoryStore) Calls(op Op) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[op]
}

// TotalCalls returns the number of Get, Set and Delete invocations.
func (s *MemoryStore) TotalCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[OpGet] + s.calls[OpSet] + s.calls[OpDelete]
}

// ResetCalls clears the call counters.
func (s *MemoryStore) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = map[Op]int{}
}

func (s *MemoryStore) popFault(op Op) error {
	queue := s.faults[op]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	s.faults[op] = queue[1:]
	return err
}

func (s *MemoryStore) expired(record memoryRecord) bool {
	return !record.expiresAt.IsZero() && !s.now().Before(record.expiresAt)
}
