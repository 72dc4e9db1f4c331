package location

import (
	"errors"
	"fmt"

	flatgeobuf "github.com/flatgeobuf/flatgeobuf/src/go"
	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/paulmach/orb"

	"github.com/geodov/godov/pkg/doverr"
)

var ErrNoIndex = errors.New("flatgeobuf file has no spatial index")

// FlatGeobufFile reads all geometries of a FlatGeobuf file. The CRS is taken
// from the file header (DefaultEPSG when absent). The file needs a packed
// R-tree index, which is how features are enumerated.
func FlatGeobufFile(path string) Source {
	return SourceFunc(func() ([]Geometry, error) {
		fgb, err := flatgeobuf.New(path)
		if err != nil {
			return nil, fmt.Errorf("open flatgeobuf %s: %w", path, err)
		}
		h := fgb.Header()
		if h == nil {
			return nil, doverr.New(doverr.ErrInvalidSearchParameter, path, "flatgeobuf without header")
		}
		if h.FeaturesCount() == 0 {
			return nil, nil
		}
		if h.IndexNodeSize() == 0 || h.EnvelopeLength() < 4 {
			return nil, doverr.Wrap(doverr.ErrInvalidSearchParameter, path, ErrNoIndex, "read %s", path)
		}
		epsg := DefaultEPSG
		var crs flattypes.Crs
		if h.Crs(&crs) != nil && crs.Code() > 0 {
			epsg = int(crs.Code())
		}
		features, err := fgb.Search(h.Envelope(0), h.Envelope(1), h.Envelope(2), h.Envelope(3))
		if err != nil {
			return nil, fmt.Errorf("search flatgeobuf %s: %w", path, err)
		}
		out := make([]Geometry, 0, len(features))
		for _, f := range features {
			var g flattypes.Geometry
			if f.Geometry(&g) == nil {
				continue
			}
			if og := fromFGB(&g); og != nil {
				out = append(out, OrbGeometry{Geometry: og, EPSG: epsg})
			}
		}
		return out, nil
	})
}

func fromFGB(g *flattypes.Geometry) orb.Geometry {
	switch g.Type() {
	case flattypes.GeometryTypePoint:
		if g.XyLength() < 2 {
			return nil
		}
		return orb.Point{g.Xy(0), g.Xy(1)}
	case flattypes.GeometryTypeMultiPoint:
		return orb.MultiPoint(fgbPoints(g, 0, g.XyLength()/2))
	case flattypes.GeometryTypeLineString:
		return orb.LineString(fgbPoints(g, 0, g.XyLength()/2))
	case flattypes.GeometryTypeMultiLineString:
		var mls orb.MultiLineString
		for _, part := range fgbParts(g) {
			mls = append(mls, orb.LineString(part))
		}
		return mls
	case flattypes.GeometryTypePolygon:
		return fgbPolygon(g)
	case flattypes.GeometryTypeMultiPolygon:
		var mp orb.MultiPolygon
		for i := 0; i < g.PartsLength(); i++ {
			var part flattypes.Geometry
			if g.Parts(&part, i) {
				mp = append(mp, fgbPolygon(&part))
			}
		}
		return mp
	}
	return nil
}

func fgbPoints(g *flattypes.Geometry, from, to int) []orb.Point {
	pts := make([]orb.Point, 0, to-from)
	for i := from; i < to; i++ {
		pts = append(pts, orb.Point{g.Xy(2 * i), g.Xy(2*i + 1)})
	}
	return pts
}

// fgbParts splits the flat coordinate array at the ends offsets.
func fgbParts(g *flattypes.Geometry) [][]orb.Point {
	n := g.XyLength() / 2
	if g.EndsLength() == 0 {
		return [][]orb.Point{fgbPoints(g, 0, n)}
	}
	var parts [][]orb.Point
	start := 0
	for i := 0; i < g.EndsLength(); i++ {
		end := int(g.Ends(i))
		if end > n {
			end = n
		}
		parts = append(parts, fgbPoints(g, start, end))
		start = end
	}
	return parts
}

func fgbPolygon(g *flattypes.Geometry) orb.Polygon {
	var poly orb.Polygon
	for _, part := range fgbParts(g) {
		poly = append(poly, orb.Ring(part))
	}
	return poly
}
