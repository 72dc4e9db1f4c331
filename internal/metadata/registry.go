package metadata

import (
	"context"
	"errors"
	"sync"

	"github.com/geodov/godov/internal/core/ogc"
	"github.com/geodov/godov/pkg/doverr"
	dt "github.com/geodov/godov/pkg/dovtype"
)

// Layer is the resolved description of one type.
type Layer struct {
	// Type is the declared type extended with the injected WFS fields.
	Type           *dt.Type
	Title          string
	Description    string
	Namespace      string
	GeometryColumn string
	// DefaultCount is the server page size; 0 when the server declares none.
	DefaultCount int
	// Fields lists the enriched field metadata in documented order.
	Fields []dt.FieldMetadata
	byName map[string]int
}

func (l *Layer) Field(name string) (dt.FieldMetadata, bool) {
	i, ok := l.byName[name]
	if !ok {
		return dt.FieldMetadata{}, false
	}
	return l.Fields[i], true
}

// FieldNames lists the names of Fields.
func (l *Layer) FieldNames() []string {
	out := make([]string, len(l.Fields))
	for i, f := range l.Fields {
		out[i] = f.Name
	}
	return out
}

// Registry memoises resolved layers per typename and subtype. Concurrent
// first use may resolve twice; the first stored result wins.
type Registry struct {
	r *Resolver

	mu     sync.Mutex
	caps   *ogc.Capabilities
	layers map[string]*Layer
}

func NewRegistry(r *Resolver) *Registry {
	return &Registry{r: r, layers: map[string]*Layer{}}
}

func (g *Registry) Resolver() *Resolver { return g.r }

func layerKey(t *dt.Type) string {
	if st := t.Subtype(); st != nil {
		return t.Typename() + "|" + st.Name
	}
	return t.Typename()
}

// Capabilities returns the memoised WFS capabilities.
func (g *Registry) Capabilities(ctx context.Context) (*ogc.Capabilities, error) {
	g.mu.Lock()
	caps := g.caps
	g.mu.Unlock()
	if caps != nil {
		return caps, nil
	}
	caps, err := g.r.Capabilities(ctx)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.caps == nil {
		g.caps = caps
	}
	return g.caps, nil
}

// Layer resolves t on first use and returns the memoised result after.
func (g *Registry) Layer(ctx context.Context, t *dt.Type) (*Layer, error) {
	key := layerKey(t)
	g.mu.Lock()
	l, ok := g.layers[key]
	g.mu.Unlock()
	if ok {
		return l, nil
	}
	l, err := g.resolve(ctx, t)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if prev, ok := g.layers[key]; ok {
		return prev, nil
	}
	g.layers[key] = l
	return l, nil
}

func (g *Registry) resolve(ctx context.Context, t *dt.Type) (*Layer, error) {
	caps, err := g.Capabilities(ctx)
	if err != nil {
		return nil, err
	}
	wl, err := caps.Layer(t.Typename())
	if err != nil {
		return nil, err
	}

	schema, err := g.r.DescribeFeatureType(ctx, t.Typename())
	if err != nil {
		return nil, err
	}

	if len(wl.MetadataURLs) == 0 {
		return nil, doverr.New(doverr.ErrMetadataNotFound, t.Typename(), "layer %s has no metadata URL", t.Typename())
	}
	uuid, err := g.r.FeatureCatalogueUUID(ctx, wl.MetadataURLs[0])
	if err != nil {
		return nil, notFound(err, t.Typename(), "metadata of %s", t.Typename())
	}
	cat, err := g.r.FeatureCatalogue(ctx, uuid)
	if err != nil {
		return nil, notFound(err, t.Typename(), "feature catalogue %s of %s", uuid, t.Typename())
	}

	full := t.WithInjected(injectedFields(t, schema, cat))
	enums := g.enumerations(ctx, full)

	l := &Layer{
		Type:           full,
		Title:          wl.Title,
		Description:    wl.Abstract,
		Namespace:      schema.TargetNamespace,
		GeometryColumn: schema.GeometryColumn,
		DefaultCount:   caps.DefaultCount,
		byName:         map[string]int{},
	}
	if l.Namespace == "" {
		l.Namespace = t.Namespace()
	}
	for _, f := range full.Declared() {
		md := fieldMetadata(f, cat)
		if f.XSD != nil {
			if vals, ok := enums[f.XSD.TypeName]; ok {
				md.Values = vals
			}
		}
		if f.Codelist != nil {
			vals, err := g.r.Codelist(ctx, f.Codelist.Scheme)
			if err != nil {
				g.r.log.WarnContext(ctx, "codelist unavailable, values omitted",
					"field", f.Name, "scheme", f.Codelist.Scheme, "err", err)
			} else {
				md.Values = vals
			}
		}
		l.byName[md.Name] = len(l.Fields)
		l.Fields = append(l.Fields, md)
	}
	return l, nil
}

// notFound turns fetch failures into metadata-not-found errors.
func notFound(err error, input any, format string, args ...any) error {
	if errors.Is(err, doverr.ErrMetadataNotFound) || errors.Is(err, doverr.ErrFeatureCatalogueNotFound) ||
		errors.Is(err, doverr.ErrLogReplay) {
		return err
	}
	return doverr.Wrap(doverr.ErrMetadataNotFound, input, err, format, args...)
}

// enumerations fetches every XSD schema of t. A failing schema is logged
// and skipped.
func (g *Registry) enumerations(ctx context.Context, t *dt.Type) map[string]map[string]string {
	out := map[string]map[string]string{}
	for _, s := range t.XSDSchemas() {
		enums, err := g.r.XSDEnumerations(ctx, s)
		if err != nil {
			g.r.log.WarnContext(ctx, "xsd fetch failed, enumerations omitted", "schema", s,
				"err", doverr.Wrap(doverr.ErrXSDFetch, s, err, "fetch %s", s))
			continue
		}
		for name, vals := range enums {
			out[name] = vals
		}
	}
	return out
}

// injectedFields returns the remote WFS attributes that no declared field
// maps to.
func injectedFields(t *dt.Type, schema *ogc.Schema, cat *ogc.Catalogue) []dt.Field {
	declared := map[string]bool{}
	for _, f := range t.Fields(dt.SourceWFS) {
		declared[f.SourceName] = true
		declared[f.Name] = true
	}
	for _, r := range t.Requires() {
		declared[r] = true
	}
	var out []dt.Field
	for _, sf := range schema.Fields {
		if declared[sf.Name] {
			continue
		}
		var opts []dt.FieldOption
		if a, ok := cat.Attributes[sf.Name]; ok {
			opts = append(opts, dt.WithDefinition(a.Definition))
		}
		out = append(out, dt.WFSInjectedField(sf.Name, dt.FromXSDType(sf.XSDType), opts...))
	}
	return out
}

func fieldMetadata(f dt.Field, cat *ogc.Catalogue) dt.FieldMetadata {
	md := dt.FieldMetadata{
		Name:       f.Name,
		Definition: f.Definition,
		Type:       f.Type,
		NotNull:    f.NotNull,
		Query:      f.Source() == dt.SourceWFS,
		Cost:       f.Cost(),
	}
	if f.Source() != dt.SourceWFS {
		return md
	}
	a, ok := cat.Attributes[f.SourceName]
	if !ok {
		return md
	}
	if md.Definition == "" {
		md.Definition = a.Definition
	}
	if !md.NotNull {
		md.NotNull = a.NotNull()
	}
	if len(a.Values) > 0 {
		md.Values = a.Values
	}
	return md
}
