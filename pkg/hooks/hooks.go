// Package hooks lets callers observe and intercept the remote traffic of a
// search. A Hook receives every lifecycle event; embed Base to implement
// only the callbacks of interest.
//
// Inject callbacks may answer a request instead of the network: the first
// hook returning non-nil data wins. Returning an error aborts the request.
package hooks

import (
	"context"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
)

type Hook interface {
	// WFSSearchInit fires before the first GetFeature request of a search.
	WFSSearchInit(ctx context.Context, typename string)
	// WFSSearchResult fires after the last page with the total feature count.
	WFSSearchResult(ctx context.Context, typename string, count int)
	// WFSSearchResultReceived fires for every GetFeature response.
	WFSSearchResultReceived(ctx context.Context, query, response []byte)

	XMLRequested(ctx context.Context, pkey string)
	XMLCacheHit(ctx context.Context, pkey string)
	XMLCacheMiss(ctx context.Context, pkey string)
	XMLDownloaded(ctx context.Context, pkey string)
	// XMLReceived fires with the document of pkey, whatever its origin.
	XMLReceived(ctx context.Context, pkey string, data []byte)

	// MetaReceived fires for every capabilities, schema, metadata, feature
	// catalogue, XSD and SPARQL response. key is RequestKey of the request.
	MetaReceived(ctx context.Context, key string, data []byte)

	InjectMetaResponse(ctx context.Context, key string) ([]byte, error)
	InjectWFSGetFeatureResponse(ctx context.Context, query []byte) ([]byte, error)
	InjectXMLResponse(ctx context.Context, pkey string) ([]byte, error)
}

// Base implements Hook with no-ops.
type Base struct{}

func (Base) WFSSearchInit(context.Context, string)                               {}
func (Base) WFSSearchResult(context.Context, string, int)                        {}
func (Base) WFSSearchResultReceived(context.Context, []byte, []byte)             {}
func (Base) XMLRequested(context.Context, string)                                {}
func (Base) XMLCacheHit(context.Context, string)                                 {}
func (Base) XMLCacheMiss(context.Context, string)                                {}
func (Base) XMLDownloaded(context.Context, string)                               {}
func (Base) XMLReceived(context.Context, string, []byte)                         {}
func (Base) MetaReceived(context.Context, string, []byte)                        {}
func (Base) InjectMetaResponse(context.Context, string) ([]byte, error)          { return nil, nil }
func (Base) InjectWFSGetFeatureResponse(context.Context, []byte) ([]byte, error) { return nil, nil }
func (Base) InjectXMLResponse(context.Context, string) ([]byte, error)           { return nil, nil }

// RequestKey identifies a request: the URL for GETs, the URL plus a hash
// of the body for POSTs.
func RequestKey(url string, body []byte) string {
	if body == nil {
		return url
	}
	return fmt.Sprintf("%s#%016x", url, xxhash.Sum64(body))
}

// BodyKey identifies a GetFeature request by its canonical body.
func BodyKey(query []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(query))
}

// Bus dispatches events to hooks in registration order. Register and
// Reset must not race with a running search.
type Bus struct {
	mu    sync.RWMutex
	hooks []Hook
}

func NewBus(hs ...Hook) *Bus {
	return &Bus{hooks: append([]Hook(nil), hs...)}
}

func (b *Bus) Register(h Hook) {
	b.mu.Lock()
	b.hooks = append(b.hooks, h)
	b.mu.Unlock()
}

func (b *Bus) Reset() {
	b.mu.Lock()
	b.hooks = nil
	b.mu.Unlock()
}

func (b *Bus) Hooks() []Hook {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Hook(nil), b.hooks...)
}

func (b *Bus) each(fn func(Hook)) {
	for _, h := range b.Hooks() {
		fn(h)
	}
}

func (b *Bus) inject(fn func(Hook) ([]byte, error)) ([]byte, error) {
	for _, h := range b.Hooks() {
		data, err := fn(h)
		if err != nil {
			return nil, err
		}
		if data != nil {
			return data, nil
		}
	}
	return nil, nil
}

func (b *Bus) WFSSearchInit(ctx context.Context, typename string) {
	b.each(func(h Hook) { h.WFSSearchInit(ctx, typename) })
}

func (b *Bus) WFSSearchResult(ctx context.Context, typename string, count int) {
	b.each(func(h Hook) { h.WFSSearchResult(ctx, typename, count) })
}

func (b *Bus) WFSSearchResultReceived(ctx context.Context, query, response []byte) {
	b.each(func(h Hook) { h.WFSSearchResultReceived(ctx, query, response) })
}

func (b *Bus) XMLRequested(ctx context.Context, pkey string) {
	b.each(func(h Hook) { h.XMLRequested(ctx, pkey) })
}

func (b *Bus) XMLCacheHit(ctx context.Context, pkey string) {
	b.each(func(h Hook) { h.XMLCacheHit(ctx, pkey) })
}

func (b *Bus) XMLCacheMiss(ctx context.Context, pkey string) {
	b.each(func(h Hook) { h.XMLCacheMiss(ctx, pkey) })
}

func (b *Bus) XMLDownloaded(ctx context.Context, pkey string) {
	b.each(func(h Hook) { h.XMLDownloaded(ctx, pkey) })
}

func (b *Bus) XMLReceived(ctx context.Context, pkey string, data []byte) {
	b.each(func(h Hook) { h.XMLReceived(ctx, pkey, data) })
}

func (b *Bus) MetaReceived(ctx context.Context, key string, data []byte) {
	b.each(func(h Hook) { h.MetaReceived(ctx, key, data) })
}

func (b *Bus) InjectMetaResponse(ctx context.Context, key string) ([]byte, error) {
	return b.inject(func(h Hook) ([]byte, error) { return h.InjectMetaResponse(ctx, key) })
}

func (b *Bus) InjectWFSGetFeatureResponse(ctx context.Context, query []byte) ([]byte, error) {
	return b.inject(func(h Hook) ([]byte, error) { return h.InjectWFSGetFeatureResponse(ctx, query) })
}

func (b *Bus) InjectXMLResponse(ctx context.Context, pkey string) ([]byte, error) {
	return b.inject(func(h Hook) ([]byte, error) { return h.InjectXMLResponse(ctx, pkey) })
}

var _ Hook = (*Bus)(nil)
