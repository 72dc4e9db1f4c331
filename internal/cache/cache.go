// Package cache stores per-object XML documents keyed by permanent key.
package cache

import (
	"context"
	"fmt"
)

// Cache is safe for concurrent use by the fetch workers. Readers treat a
// missing or expired entry as a miss.
type Cache interface {
	// Get returns the document for pkey when present and not older than
	// the cache's max age.
	Get(ctx context.Context, pkey string) (data []byte, ok bool, err error)
	Put(ctx context.Context, pkey string, data []byte) error
	// Invalidate drops the entry for pkey.
	Invalidate(ctx context.Context, pkey string) error
	// Clean drops every entry older than the max age.
	Clean(ctx context.Context) error
	// Remove drops the whole cache.
	Remove(ctx context.Context) error
}

// Fetch retrieves a document from the remote service on a miss.
type Fetch func(ctx context.Context, pkey string) ([]byte, error)

// GetOrFetch returns the cached document, or fetches, stores and returns it.
// hit reports whether the cache answered. Fetch errors are not cached.
func GetOrFetch(ctx context.Context, c Cache, pkey string, fetch Fetch) (data []byte, hit bool, err error) {
	if data, ok, err := c.Get(ctx, pkey); err == nil && ok {
		return data, true, nil
	}
	data, err = fetch(ctx, pkey)
	if err != nil {
		return nil, false, err
	}
	if err := c.Put(ctx, pkey, data); err != nil {
		return data, false, fmt.Errorf("cache put %s: %w", pkey, err)
	}
	return data, false, nil
}

// None never stores anything.
type None struct{}

func (None) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (None) Put(context.Context, string, []byte) error         { return nil }
func (None) Invalidate(context.Context, string) error          { return nil }
func (None) Clean(context.Context) error                       { return nil }
func (None) Remove(context.Context) error                      { return nil }
