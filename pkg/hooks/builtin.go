package hooks

import (
	"context"
	"log/slog"

	"github.com/geodov/godov/internal/core/observability"
	"github.com/geodov/godov/internal/hitevents"
	"github.com/geodov/godov/internal/logger"
)

// Logging logs every event at debug level.
type Logging struct {
	Base
	Log *slog.Logger
}

func NewLogging(log *slog.Logger) *Logging {
	if log == nil {
		log = logger.Discard()
	}
	return &Logging{Log: log}
}

func (l *Logging) WFSSearchInit(ctx context.Context, typename string) {
	l.Log.DebugContext(ctx, "wfs search init", "typename", typename)
}

func (l *Logging) WFSSearchResult(ctx context.Context, typename string, count int) {
	l.Log.DebugContext(ctx, "wfs search result", "typename", typename, "count", count)
}

func (l *Logging) WFSSearchResultReceived(ctx context.Context, query, response []byte) {
	l.Log.DebugContext(ctx, "wfs response received", "query_key", BodyKey(query), "bytes", len(response))
}

func (l *Logging) XMLRequested(ctx context.Context, pkey string) {
	l.Log.DebugContext(ctx, "xml requested", "pkey", pkey)
}

func (l *Logging) XMLCacheHit(ctx context.Context, pkey string) {
	l.Log.DebugContext(ctx, "xml cache hit", "pkey", pkey)
}

func (l *Logging) XMLCacheMiss(ctx context.Context, pkey string) {
	l.Log.DebugContext(ctx, "xml cache miss", "pkey", pkey)
}

func (l *Logging) XMLDownloaded(ctx context.Context, pkey string) {
	l.Log.DebugContext(ctx, "xml downloaded", "pkey", pkey)
}

func (l *Logging) MetaReceived(ctx context.Context, key string, data []byte) {
	l.Log.DebugContext(ctx, "metadata received", "url", key, "bytes", len(data))
}

// Metrics drives the prometheus collectors.
type Metrics struct {
	Base
	M *observability.Metrics
}

func NewMetrics(m *observability.Metrics) *Metrics { return &Metrics{M: m} }

func (m *Metrics) WFSSearchInit(_ context.Context, typename string) {
	m.M.IncSearch(typename)
}

func (m *Metrics) WFSSearchResult(_ context.Context, typename string, count int) {
	m.M.AddFeatures(typename, count)
}

func (m *Metrics) XMLCacheHit(context.Context, string)   { m.M.IncXML("hit") }
func (m *Metrics) XMLCacheMiss(context.Context, string)  { m.M.IncXML("miss") }
func (m *Metrics) XMLDownloaded(context.Context, string) { m.M.IncXML("downloaded") }

func (m *Metrics) MetaReceived(context.Context, string, []byte) { m.M.IncMeta() }

// Kafka publishes events as JSON through a hitevents publisher. The
// search id and typename are taken from the context.
type Kafka struct {
	Base
	P *hitevents.Publisher
}

func NewKafka(p *hitevents.Publisher) *Kafka { return &Kafka{P: p} }

func (k *Kafka) publish(ctx context.Context, ev hitevents.Event) {
	ev.SearchID = logger.SearchID(ctx)
	if ev.Typename == "" {
		ev.Typename = logger.Typename(ctx)
	}
	k.P.Publish(ev)
}

func (k *Kafka) WFSSearchInit(ctx context.Context, typename string) {
	k.publish(ctx, hitevents.Event{Type: "wfs_search_init", Typename: typename})
}

func (k *Kafka) WFSSearchResult(ctx context.Context, typename string, count int) {
	k.publish(ctx, hitevents.Event{Type: "wfs_search_result", Typename: typename, Count: count})
}

func (k *Kafka) XMLCacheHit(ctx context.Context, pkey string) {
	k.publish(ctx, hitevents.Event{Type: "xml_cache_hit", Pkey: pkey})
}

func (k *Kafka) XMLDownloaded(ctx context.Context, pkey string) {
	k.publish(ctx, hitevents.Event{Type: "xml_downloaded", Pkey: pkey})
}

func (k *Kafka) MetaReceived(ctx context.Context, key string, data []byte) {
	k.publish(ctx, hitevents.Event{Type: "meta_received", URL: key, Bytes: len(data)})
}

// Close flushes pending events.
func (k *Kafka) Close() error { return k.P.Close() }
