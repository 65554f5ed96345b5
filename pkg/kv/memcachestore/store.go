// Package memcachestore implements kv.BytesStore on top of a gomemcache
// client. Memcached expires entries itself, so TTL maps directly onto the
// item expiration.
package memcachestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/goliatone/go-session-automerge/pkg/kv"
)

// Client is the subset of *memcache.Client the store needs.
type Client interface {
	Get(key string) (*memcache.Item, error)
	Set(item *memcache.Item) error
	Delete(key string) error
}

// maxRelativeExpiration is the largest expiration memcached treats as a
// relative number of seconds; larger values are unix timestamps.
const maxRelativeExpiration = 30 * 24 * time.Hour

type Store struct {
	client Client
	now    func() time.Time
}

var _ kv.BytesStore = (*Store)(nil)

func New(client Client) *Store {
	return &Store{client: client, now: time.Now}
}

// NewClient connects to the given memcached servers.
func NewClient(servers ...string) *memcache.Client {
	return memcache.New(servers...)
}

// GetBytes returns the item value. The gomemcache client does not take a
// context, so ctx is only checked for cancellation before the call.
func (s *Store) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	item, err := s.client.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("memcachestore: get: %w", err)
	}
	return item.Value, true, nil
}

func (s *Store) SetBytes(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	item := &memcache.Item{Key: key, Value: data, Expiration: s.expiration(ttl)}
	if err := s.client.Set(item); err != nil {
		return fmt.Errorf("memcachestore: set: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.client.Delete(key)
	if err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		return fmt.Errorf("memcachestore: delete: %w", err)
	}
	return nil
}

func (s *Store) expiration(ttl time.Duration) int32 {
	if ttl <= 0 {
		return 0
	}
	seconds := int64((ttl + time.Second - 1) / time.Second)
	if ttl > maxRelativeExpiration {
		return int32(s.now().Unix() + seconds)
	}
	return int32(seconds)
}
