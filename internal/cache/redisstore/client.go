// Package redisstore is the redis variant of the object XML cache. Entries
// expire through redis TTLs set to the cache max age.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	maintnotifications "github.com/redis/go-redis/v9/maintnotifications"

	"github.com/geodov/godov/internal/cache/keys"
)

const DefaultPrefix = "godov"

type Option func(*redis.Options)

func WithPoolSize(n int) Option {
	return func(o *redis.Options) { o.PoolSize = n }
}

func WithDialTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.DialTimeout = d }
}

func WithReadTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.ReadTimeout = d }
}

type Store struct {
	rdb    *redis.Client
	prefix string
	maxAge time.Duration
}

func New(ctx context.Context, addr string, maxAge time.Duration, opts ...Option) (*Store, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}

	ro := &redis.Options{
		Addr:         addr,
		PoolSize:     16,
		MinIdleConns: 2,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	}
	for _, f := range opts {
		f(ro)
	}

	rdb := redis.NewClient(ro)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{rdb: rdb, prefix: DefaultPrefix, maxAge: maxAge}, nil
}

func (s *Store) key(pkey string) (string, error) {
	e, err := keys.Parse(pkey)
	if err != nil {
		return "", err
	}
	return keys.Redis(s.prefix, e), nil
}

func (s *Store) Get(ctx context.Context, pkey string) ([]byte, bool, error) {
	k, err := s.key(pkey)
	if err != nil {
		return nil, false, err
	}
	val, err := s.rdb.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis GET %q: %w", k, err)
	}
	return val, true, nil
}

func (s *Store) Put(ctx context.Context, pkey string, data []byte) error {
	k, err := s.key(pkey)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, k, data, s.maxAge).Err(); err != nil {
		return fmt.Errorf("redis SET %q: %w", k, err)
	}
	return nil
}

func (s *Store) Invalidate(ctx context.Context, pkey string) error {
	k, err := s.key(pkey)
	if err != nil {
		return err
	}
	if err := s.rdb.Del(ctx, k).Err(); err != nil {
		return fmt.Errorf("redis DEL %q: %w", k, err)
	}
	return nil
}

// Clean is a no-op: redis expires entries itself.
func (s *Store) Clean(context.Context) error { return nil }

// Remove deletes every key under the store prefix.
func (s *Store) Remove(ctx context.Context) error {
	iter := s.rdb.Scan(ctx, 0, s.prefix+":*", 256).Iterator()
	var batch []string
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.rdb.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis DEL %d keys: %w", len(batch), err)
		}
		batch = batch[:0]
		return nil
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 256 {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis SCAN: %w", err)
	}
	return flush()
}

func (s *Store) Close() error {
	if err := s.rdb.Close(); err != nil {
		return fmt.Errorf("redis close: %w", err)
	}
	return nil
}
