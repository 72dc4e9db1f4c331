// Package engine runs a search: it validates the request against the
// resolved layer, pages through WFS GetFeature, fetches the object XML
// documents on the worker pool and assembles the result table.
package engine

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/geodov/godov/internal/cache"
	"github.com/geodov/godov/internal/core/ogc"
	"github.com/geodov/godov/internal/logger"
	"github.com/geodov/godov/internal/metadata"
	"github.com/geodov/godov/internal/worker"
	"github.com/geodov/godov/pkg/doverr"
	dt "github.com/geodov/godov/pkg/dovtype"
	"github.com/geodov/godov/pkg/hooks"
	"github.com/geodov/godov/pkg/location"
	"github.com/geodov/godov/pkg/query"
	"github.com/geodov/godov/pkg/table"
)

// FeatureOverflowLimit is the hard cap of the DOV WFS service. A search
// that reaches it fails with doverr.ErrFeatureOverflow and must be split.
const FeatureOverflowLimit = 10000

// Request is one search.
type Request struct {
	Location location.Filter
	Query    query.Filter
	SortBy   query.SortBy
	// ReturnFields selects and orders the output columns; nil means all
	// declared fields.
	ReturnFields query.ReturnFields
	// MaxFeatures limits the number of parent objects; 0 means no limit.
	MaxFeatures int
}

type Options struct {
	HTTP      metadata.Doer
	Endpoints ogc.Endpoints
	Registry  *metadata.Registry
	Cache     cache.Cache
	Hooks     hooks.Hook
	Log       *slog.Logger
	Workers   worker.Options
}

type Engine struct {
	http      metadata.Doer
	endpoints ogc.Endpoints
	registry  *metadata.Registry
	cache     cache.Cache
	hooks     hooks.Hook
	log       *slog.Logger
	workers   worker.Options
}

func New(o Options) *Engine {
	e := &Engine{
		http:      o.HTTP,
		endpoints: o.Endpoints,
		registry:  o.Registry,
		cache:     o.Cache,
		hooks:     o.Hooks,
		log:       o.Log,
		workers:   o.Workers,
	}
	if e.cache == nil {
		e.cache = cache.None{}
	}
	if e.hooks == nil {
		e.hooks = hooks.NewBus()
	}
	if e.log == nil {
		e.log = logger.Discard()
	}
	return e
}

// plan is a validated request bound to a resolved layer.
type plan struct {
	layer   *metadata.Layer
	typ     *dt.Type
	columns []string
	props   []string
	filter  query.Filter
	sortBy  query.SortBy
	crs     string
	needXML bool
}

// Search runs req against t and returns the result table.
func (e *Engine) Search(ctx context.Context, t *dt.Type, req Request) (*table.Table, error) {
	if err := precheck(req); err != nil {
		return nil, err
	}
	ctx = logger.WithTypename(logger.WithSearchID(ctx, ""), t.Typename())
	start := time.Now()

	layer, err := e.registry.Layer(ctx, t)
	if err != nil {
		return nil, err
	}
	p, err := newPlan(layer, req)
	if err != nil {
		return nil, err
	}

	members, err := e.fetchFeatures(ctx, p, req)
	if err != nil {
		return nil, err
	}

	objs := make([]*dt.Object, 0, len(members))
	for _, m := range members {
		obj, err := p.typ.FromWFSElement(m, m.NamespaceURI())
		if err != nil {
			return nil, err
		}
		objs = append(objs, obj)
	}

	if p.needXML {
		if err := e.fetchXML(ctx, p.typ, objs); err != nil {
			return nil, err
		}
	}

	tbl, err := buildTable(p, objs)
	if err != nil {
		return nil, err
	}
	e.log.InfoContext(ctx, "search done",
		"features", len(objs), "rows", tbl.Len(), "xml", p.needXML, "duration", time.Since(start))
	return tbl, nil
}

// precheck runs the validations that need no metadata.
func precheck(req Request) error {
	if req.Location == nil && req.Query == nil && req.MaxFeatures == 0 {
		return doverr.New(doverr.ErrInvalidSearchParameter, nil,
			"provide either the location or the query parameter or the max_features parameter")
	}
	if req.MaxFeatures < 0 {
		return doverr.New(doverr.ErrInvalidSearchParameter, req.MaxFeatures,
			"max_features should be a positive integer, got %d", req.MaxFeatures)
	}
	if err := query.Validate(req.Query); err != nil {
		return err
	}
	return req.ReturnFields.Validate()
}

func newPlan(layer *metadata.Layer, req Request) (*plan, error) {
	p := &plan{layer: layer, typ: layer.Type}

	var queryable []string
	for _, f := range layer.Fields {
		if f.Query {
			queryable = append(queryable, f.Name)
		}
	}
	toSource := func(name string) (string, error) {
		md, ok := layer.Field(name)
		if !ok || !md.Query {
			return "", doverr.InvalidField(name, "query field", queryable)
		}
		f, _ := p.typ.Field(name)
		return f.SourceName, nil
	}

	var err error
	if p.filter, err = query.MapPropertyNames(req.Query, toSource); err != nil {
		return nil, err
	}
	if p.sortBy, err = req.SortBy.Rename(toSource); err != nil {
		return nil, err
	}

	if req.ReturnFields == nil {
		if p.columns, err = p.typ.FieldNames(nil, true, false); err != nil {
			return nil, err
		}
	} else {
		names := req.ReturnFields.Names()
		if _, err := p.typ.FieldNames(names, true, true); err != nil {
			return nil, err
		}
		p.columns = names
	}

	if g, ok := req.ReturnFields.Geometry(); ok {
		f, _ := p.typ.Field(g.Name)
		if f.Type != dt.Geometry || f.Source() != dt.SourceWFS {
			return nil, doverr.InvalidField(g.Name, "geometry return field", nil)
		}
		p.crs = "EPSG:" + strconv.Itoa(g.EPSG)
	}

	p.props = properties(p.typ, req.ReturnFields, p.columns)
	p.needXML = p.typ.NeedsXML(p.columns)
	return p, nil
}

// properties lists the WFS attributes to request: with explicit return
// fields the primary key and the requested WFS fields, otherwise every
// declared WFS field. Required attributes are always added.
func properties(t *dt.Type, rf query.ReturnFields, columns []string) []string {
	var out []string
	add := func(f dt.Field) {
		if f.Source() == dt.SourceWFS && f.SourceName != "" && !slices.Contains(out, f.SourceName) {
			out = append(out, f.SourceName)
		}
	}
	if rf == nil {
		for _, f := range t.Declared() {
			if f.Kind == dt.KindWFS {
				add(f)
			}
		}
	} else {
		pk, _ := t.Field(t.PkeyField())
		add(pk)
		for _, c := range columns {
			if f, ok := t.Field(c); ok {
				add(f)
			}
		}
	}
	for _, r := range t.Requires() {
		if !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	return out
}

func buildTable(p *plan, objs []*dt.Object) (*table.Table, error) {
	cols := make([]table.Column, len(p.columns))
	for i, c := range p.columns {
		f, _ := p.typ.Field(c)
		cols[i] = table.Column{Name: c, Type: f.Type}
	}
	tbl := table.New(cols)
	for _, row := range p.typ.ToRows(objs, p.columns) {
		if err := tbl.Append(row); err != nil {
			return nil, doverr.Wrap(doverr.ErrProgramming, row, err, "%s: build table", p.typ.Typename())
		}
	}
	return tbl, nil
}

// getFeature posts one GetFeature body, unless a hook answers it.
func (e *Engine) getFeature(ctx context.Context, body []byte) ([]byte, error) {
	resp, err := e.hooks.InjectWFSGetFeatureResponse(ctx, body)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		h := http.Header{}
		h.Set("Content-Type", "text/xml; charset=UTF-8")
		resp, err = e.http.Do(ctx, "wfs", http.MethodPost, e.endpoints.WFS(), body, h)
		if err != nil {
			return nil, err
		}
	}
	e.hooks.WFSSearchResultReceived(ctx, body, resp)
	return resp, nil
}
