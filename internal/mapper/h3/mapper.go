package h3mapper

import (
	"errors"
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	h3 "github.com/uber/h3-go/v4"
)

type Mapper struct{}

func New() *Mapper { return &Mapper{} }

// CellsForBound covers a lon/lat bound (EPSG:4326) with cells at res.
func (m *Mapper) CellsForBound(b orb.Bound, res int) ([]h3.Cell, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	outer := h3.GeoLoop{
		{Lat: b.Min.Lat(), Lng: b.Min.Lon()},
		{Lat: b.Min.Lat(), Lng: b.Max.Lon()},
		{Lat: b.Max.Lat(), Lng: b.Max.Lon()},
		{Lat: b.Max.Lat(), Lng: b.Min.Lon()},
	}
	return polyfill([]h3.GeoPolygon{{GeoLoop: outer}}, res)
}

// CellsForGeometry covers a lon/lat polygon, multipolygon or bound with
// cells at res. The result is sorted and free of duplicates.
func (m *Mapper) CellsForGeometry(g orb.Geometry, res int) ([]h3.Cell, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	switch v := g.(type) {
	case orb.Bound:
		return m.CellsForBound(v, res)
	case orb.Polygon:
		p, err := toGeoPolygon(v)
		if err != nil {
			return nil, err
		}
		return polyfill([]h3.GeoPolygon{p}, res)
	case orb.MultiPolygon:
		if len(v) == 0 {
			return nil, errors.New("empty multipolygon")
		}
		polys := make([]h3.GeoPolygon, 0, len(v))
		for i, poly := range v {
			p, err := toGeoPolygon(poly)
			if err != nil {
				return nil, fmt.Errorf("polygon %d: %w", i, err)
			}
			polys = append(polys, p)
		}
		return polyfill(polys, res)
	}
	return nil, fmt.Errorf("unsupported geometry type: %s", g.GeoJSONType())
}

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}

func toGeoPolygon(p orb.Polygon) (h3.GeoPolygon, error) {
	if len(p) == 0 {
		return h3.GeoPolygon{}, errors.New("empty polygon")
	}
	outer := toLoop(p[0])
	if len(outer) < 3 {
		return h3.GeoPolygon{}, errors.New("outer ring has < 3 distinct vertices")
	}
	var holes []h3.GeoLoop
	for i, r := range p[1:] {
		h := toLoop(r)
		if len(h) < 3 {
			return h3.GeoPolygon{}, fmt.Errorf("hole %d has < 3 distinct vertices", i)
		}
		holes = append(holes, h)
	}
	return h3.GeoPolygon{GeoLoop: outer, Holes: holes}, nil
}

// toLoop converts a lon/lat ring to a loop, dropping the closing vertex.
func toLoop(r orb.Ring) h3.GeoLoop {
	loop := make(h3.GeoLoop, 0, len(r))
	for _, p := range r {
		loop = append(loop, h3.LatLng{Lat: p.Lat(), Lng: p.Lon()})
	}
	if len(loop) >= 2 && loop[0] == loop[len(loop)-1] {
		loop = loop[:len(loop)-1]
	}
	return loop
}

func polyfill(polys []h3.GeoPolygon, res int) ([]h3.Cell, error) {
	seen := map[h3.Cell]struct{}{}
	var out []h3.Cell
	for _, p := range polys {
		cells, err := h3.PolygonToCells(p, res)
		if err != nil {
			return nil, fmt.Errorf("h3 polyfill: %w", err)
		}
		for _, c := range cells {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
