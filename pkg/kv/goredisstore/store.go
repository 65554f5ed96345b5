// Package goredisstore implements kv.BytesStore with a go-redis client. It
// accepts any redis.UniversalClient so single node, sentinel and cluster
// deployments share one adapter.
package goredisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/goliatone/go-session-automerge/pkg/kv"
)

// Store reads and writes raw payloads through a go-redis client.
type Store struct {
	client redis.UniversalClient
}

var _ kv.BytesStore = (*Store)(nil)

func New(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

func (s *Store) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("goredisstore: GET: %w", err)
	}
	return raw, true, nil
}

// SetBytes stores data with ttl as expiration; ttl <= 0 keeps the key forever.
func (s *Store) SetBytes(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("goredisstore: SET: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("goredisstore: DEL: %w", err)
	}
	return nil
}
