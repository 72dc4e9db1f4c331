package engine

import (
	"context"
	"net/http"

	"github.com/geodov/godov/internal/cache"
	"github.com/geodov/godov/internal/worker"
	dt "github.com/geodov/godov/pkg/dovtype"
)

// fetchXML downloads the XML document of every object on the worker pool
// and parses them in result order. A failed download aborts the search; a
// document that fails to parse is logged and its values stay nil.
func (e *Engine) fetchXML(ctx context.Context, t *dt.Type, objs []*dt.Object) error {
	pkeys := make([]string, len(objs))
	for i, o := range objs {
		pkeys[i] = o.Pkey
	}

	results, err := worker.Map(ctx, e.workers, pkeys, e.objectXML)
	if err != nil {
		return err
	}

	for i, r := range results {
		if err := t.ParseXML(r.Value, objs[i]); err != nil {
			e.log.WarnContext(ctx, "object xml not parsed, values omitted", "pkey", objs[i].Pkey, "err", err)
		}
	}
	return nil
}

// objectXML returns the XML document of one object: from the inject hooks,
// else from the cache, else from the service.
func (e *Engine) objectXML(ctx context.Context, pkey string) ([]byte, error) {
	e.hooks.XMLRequested(ctx, pkey)

	data, err := e.hooks.InjectXMLResponse(ctx, pkey)
	if err != nil {
		return nil, err
	}
	if data == nil {
		var hit bool
		data, hit, err = cache.GetOrFetch(ctx, e.cache, pkey, e.download)
		switch {
		case err != nil && data == nil:
			return nil, err
		case err != nil:
			e.log.WarnContext(ctx, "object xml not cached", "pkey", pkey, "err", err)
		}
		if hit {
			e.hooks.XMLCacheHit(ctx, pkey)
		}
	}

	e.hooks.XMLReceived(ctx, pkey, data)
	return data, nil
}

func (e *Engine) download(ctx context.Context, pkey string) ([]byte, error) {
	e.hooks.XMLCacheMiss(ctx, pkey)
	h := http.Header{}
	h.Set("Accept", "text/xml")
	data, err := e.http.Do(ctx, "xml", http.MethodGet, pkey+".xml", nil, h)
	if err != nil {
		return nil, err
	}
	e.hooks.XMLDownloaded(ctx, pkey)
	return data, nil
}
