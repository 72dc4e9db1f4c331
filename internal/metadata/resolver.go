// Package metadata resolves the remote description of a layer: WFS
// capabilities, DescribeFeatureType, ISO metadata, the feature catalogue,
// XSD enumerations and SPARQL codelists. Results are memoised per layer in
// a Registry.
package metadata

import (
	"context"
	"log/slog"
	"net/http"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/geodov/godov/internal/core/ogc"
	"github.com/geodov/godov/internal/logger"
	"github.com/geodov/godov/pkg/hooks"
)

// Doer runs one HTTP request and returns the body of a 2xx response.
// *httpclient.Session implements it.
type Doer interface {
	Do(ctx context.Context, upstream, method, url string, body []byte, header http.Header) ([]byte, error)
}

const defaultDocCache = 256

// Resolver fetches metadata documents through the hooks and the HTTP
// session. Documents are kept in an LRU keyed by request.
type Resolver struct {
	http      Doer
	endpoints ogc.Endpoints
	hooks     hooks.Hook
	log       *slog.Logger
	docs      *lru.Cache[string, []byte]
}

type Option func(*Resolver)

func WithHooks(h hooks.Hook) Option { return func(r *Resolver) { r.hooks = h } }

func WithLogger(l *slog.Logger) Option { return func(r *Resolver) { r.log = l } }

// WithDocCache sets the number of memoised documents.
func WithDocCache(n int) Option {
	return func(r *Resolver) {
		if c, err := lru.New[string, []byte](n); err == nil {
			r.docs = c
		}
	}
}

func NewResolver(doer Doer, endpoints ogc.Endpoints, opts ...Option) *Resolver {
	r := &Resolver{http: doer, endpoints: endpoints}
	for _, o := range opts {
		o(r)
	}
	if r.hooks == nil {
		r.hooks = hooks.NewBus()
	}
	if r.log == nil {
		r.log = logger.Discard()
	}
	if r.docs == nil {
		r.docs, _ = lru.New[string, []byte](defaultDocCache)
	}
	return r
}

func (r *Resolver) Endpoints() ogc.Endpoints { return r.endpoints }

func (r *Resolver) get(ctx context.Context, upstream, url string) ([]byte, error) {
	return r.fetch(ctx, upstream, http.MethodGet, url, nil, nil)
}

// fetch answers from the document memo, then the inject hooks, then the
// network. Every non-memoised response is announced with MetaReceived.
func (r *Resolver) fetch(ctx context.Context, upstream, method, url string, body []byte, header http.Header) ([]byte, error) {
	key := hooks.RequestKey(url, body)
	if data, ok := r.docs.Get(key); ok {
		return data, nil
	}
	data, err := r.hooks.InjectMetaResponse(ctx, key)
	if err != nil {
		return nil, err
	}
	if data == nil {
		data, err = r.http.Do(ctx, upstream, method, url, body, header)
		if err != nil {
			return nil, err
		}
	}
	r.hooks.MetaReceived(ctx, key, data)
	r.docs.Add(key, data)
	return data, nil
}

// Capabilities fetches and parses the WFS capabilities.
func (r *Resolver) Capabilities(ctx context.Context) (*ogc.Capabilities, error) {
	data, err := r.get(ctx, "wfs", r.endpoints.GetCapabilitiesURL())
	if err != nil {
		return nil, err
	}
	return ogc.ParseCapabilities(data)
}

func (r *Resolver) DescribeFeatureType(ctx context.Context, typename string) (*ogc.Schema, error) {
	data, err := r.get(ctx, "wfs", r.endpoints.DescribeFeatureTypeURL(typename))
	if err != nil {
		return nil, err
	}
	return ogc.ParseDescribeFeatureType(data)
}

// FeatureCatalogueUUID follows an ISO metadata URL.
func (r *Resolver) FeatureCatalogueUUID(ctx context.Context, metadataURL string) (string, error) {
	data, err := r.get(ctx, "csw", r.endpoints.Resolve(metadataURL))
	if err != nil {
		return "", err
	}
	return ogc.ParseFeatureCatalogueUUID(data)
}

func (r *Resolver) FeatureCatalogue(ctx context.Context, uuid string) (*ogc.Catalogue, error) {
	data, err := r.get(ctx, "csw", r.endpoints.FeatureCatalogueURL(uuid))
	if err != nil {
		return nil, err
	}
	return ogc.ParseFeatureCatalogue(data)
}

// XSDEnumerations fetches one schema and returns its enumerations.
func (r *Resolver) XSDEnumerations(ctx context.Context, schema string) (map[string]map[string]string, error) {
	data, err := r.get(ctx, "xsd", r.endpoints.Resolve(schema))
	if err != nil {
		return nil, err
	}
	return ogc.ParseXSDEnumerations(data)
}

// Codelist queries the SPARQL endpoint for the notations of scheme.
func (r *Resolver) Codelist(ctx context.Context, scheme string) (map[string]string, error) {
	h := http.Header{}
	h.Set("Content-Type", "application/sparql-query")
	h.Set("Accept", "application/rdf+xml")
	data, err := r.fetch(ctx, "sparql", http.MethodPost, r.endpoints.SPARQL(), []byte(ogc.SPARQLCodelistQuery(scheme)), h)
	if err != nil {
		return nil, err
	}
	return ogc.ParseSPARQLCodelist(data)
}
