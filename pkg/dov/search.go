package dov

import (
	"context"
	"fmt"
	"sort"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/geodov/godov/internal/cache"
	"github.com/geodov/godov/internal/core/config"
	"github.com/geodov/godov/internal/core/observability"
	"github.com/geodov/godov/internal/engine"
	dt "github.com/geodov/godov/pkg/dovtype"
	"github.com/geodov/godov/pkg/table"
	"github.com/geodov/godov/pkg/types"
)

type (
	Config      = config.Config
	CacheConfig = config.CacheCfg
	Cache       = cache.Cache
	Metrics     = observability.Metrics
	// Request is one search: location, query, sort order, return fields
	// and the maximum number of features.
	Request = engine.Request
)

// FeatureOverflowLimit is the largest number of features one search may
// return.
const FeatureOverflowLimit = engine.FeatureOverflowLimit

// DefaultConfig returns the built-in configuration with the environment
// applied.
func DefaultConfig() Config { return config.FromEnv() }

// NewMetrics registers the search collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics { return observability.Init(reg, true) }

// Search runs searches for one object family.
type Search struct {
	c   *Client
	typ *dt.Type
}

// For returns the search of t.
func (c *Client) For(t *dt.Type) *Search { return &Search{c: c, typ: t} }

// Family returns the search of a family by its short name, e.g. "boring".
func (c *Client) Family(name string) (*Search, error) {
	t, ok := types.All[name]
	if !ok {
		known := make([]string, 0, len(types.All))
		for k := range types.All {
			known = append(known, k)
		}
		sort.Strings(known)
		return nil, fmt.Errorf("dov: unknown family %q, known: %v", name, known)
	}
	return c.For(t), nil
}

func (c *Client) Boring() *Search            { return c.For(types.Boring) }
func (c *Client) Sondering() *Search         { return c.For(types.Sondering) }
func (c *Client) GrondwaterFilter() *Search  { return c.For(types.GrondwaterFilter) }
func (c *Client) GrondwaterMonster() *Search { return c.For(types.GrondwaterMonster) }
func (c *Client) Grondmonster() *Search      { return c.For(types.Grondmonster) }
func (c *Client) Bodemlocatie() *Search      { return c.For(types.Bodemlocatie) }
func (c *Client) Bodemobservatie() *Search   { return c.For(types.Bodemobservatie) }

func (c *Client) InformeleStratigrafie() *Search { return c.For(types.InformeleStratigrafie) }
func (c *Client) FormeleStratigrafie() *Search   { return c.For(types.FormeleStratigrafie) }
func (c *Client) HydrogeologischeStratigrafie() *Search {
	return c.For(types.HydrogeologischeStratigrafie)
}
func (c *Client) LithologischeBeschrijvingen() *Search { return c.For(types.LithologischeBeschrijvingen) }
func (c *Client) GecodeerdeLithologie() *Search        { return c.For(types.GecodeerdeLithologie) }
func (c *Client) GeotechnischeCodering() *Search       { return c.For(types.GeotechnischeCodering) }
func (c *Client) QuartairStratigrafie() *Search        { return c.For(types.QuartairStratigrafie) }
func (c *Client) InformeleHydrogeologischeStratigrafie() *Search {
	return c.For(types.InformeleHydrogeologischeStratigrafie)
}

// Type is the family's declared type.
func (s *Search) Type() *dt.Type { return s.typ }

// WithSubtype returns a search of the same family with st as its subtype,
// or without subtype when st is nil.
func (s *Search) WithSubtype(st *dt.Subtype) (*Search, error) {
	t, err := s.typ.WithSubtype(st)
	if err != nil {
		return nil, err
	}
	return s.c.For(t), nil
}

// Description returns the abstract of the WFS layer.
func (s *Search) Description(ctx context.Context) (string, error) {
	l, err := s.c.registry.Layer(ctx, s.typ)
	if err != nil {
		return "", err
	}
	return l.Description, nil
}

// Fields returns the enriched field metadata in documented order. The
// first call resolves the layer; later calls are served from memory.
func (s *Search) Fields(ctx context.Context) ([]dt.FieldMetadata, error) {
	l, err := s.c.registry.Layer(ctx, s.typ)
	if err != nil {
		return nil, err
	}
	return append([]dt.FieldMetadata(nil), l.Fields...), nil
}

// Search runs req and returns the result table.
func (s *Search) Search(ctx context.Context, req Request) (*table.Table, error) {
	return s.c.engine.Search(ctx, s.typ, req)
}
