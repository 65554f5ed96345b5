// Package redigostore implements kv.BytesStore on top of a redigo connection
// pool. Pair it with kv.NewCodecStore to obtain a kv.Store.
package redigostore

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/goliatone/go-session-automerge/pkg/kv"
)

// ConnPool is the subset of *redis.Pool the store needs.
type ConnPool interface {
	GetContext(ctx context.Context) (redis.Conn, error)
	Close() error
}

// Store reads and writes raw payloads in Redis.
type Store struct {
	pool ConnPool
}

var _ kv.BytesStore = (*Store)(nil)

// New wraps pool. The pool is owned by the caller until Close is called.
func New(pool ConnPool) *Store {
	return &Store{pool: pool}
}

// NewPool builds a redigo pool dialing addr with sensible defaults.
func NewPool(addr string, maxIdle int, idleTimeout time.Duration) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     maxIdle,
		IdleTimeout: idleTimeout,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialContext(ctx, "tcp", addr)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}

// GetBytes issues GET key. A nil reply reports the key as absent.
func (s *Store) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("redigostore: get connection: %w", err)
	}
	defer conn.Close()

	reply, err := redis.DoContext(conn, ctx, "GET", key)
	if err != nil {
		return nil, false, fmt.Errorf("redigostore: GET: %w", err)
	}
	switch reply := reply.(type) {
	case []byte:
		return reply, true, nil
	case string:
		return []byte(reply), true, nil
	case redis.Error:
		return nil, false, reply
	case nil:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("redigostore: unknown reply type %s for %s", reflect.TypeOf(reply), key)
	}
}

// SetBytes issues SET key data, with EX or PX when ttl is positive.
func (s *Store) SetBytes(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("redigostore: get connection: %w", err)
	}
	defer conn.Close()

	args := redis.Args{}.Add(key, data)
	switch {
	case ttl <= 0:
	case ttl%time.Second == 0:
		args = args.Add("EX", int64(ttl/time.Second))
	default:
		args = args.Add("PX", ttl.Milliseconds())
	}
	if _, err := redis.DoContext(conn, ctx, "SET", args...); err != nil {
		return fmt.Errorf("redigostore: SET: %w", err)
	}
	return nil
}

// Delete issues DEL key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("redigostore: get connection: %w", err)
	}
	defer conn.Close()

	if _, err := redis.DoContext(conn, ctx, "DEL", key); err != nil {
		return fmt.Errorf("redigostore: DEL: %w", err)
	}
	return nil
}

// Close releases the underlying pool.
func (s *Store) Close() error {
	return s.pool.Close()
}
