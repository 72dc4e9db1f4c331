// Package location builds the spatial part of a search: geometries,
// spatial predicates and their AND/OR/NOT combinations, serialised as
// OGC Filter Encoding 2.0 with GML 3.2 geometries.
package location

import (
	"fmt"

	"github.com/beevik/etree"
	"github.com/cespare/xxhash/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"

	"github.com/geodov/godov/pkg/doverr"
	"github.com/geodov/godov/pkg/gml"
)

// DefaultEPSG is Belgian Lambert 72, the storage CRS of most DOV layers.
const DefaultEPSG = 31370

// Geometry is anything that serialises to a GML 3.2 geometry element
// carrying an explicit srsName.
type Geometry interface {
	GML() (*etree.Element, error)
}

func epsgOrDefault(epsg int) int {
	if epsg == 0 {
		return DefaultEPSG
	}
	return epsg
}

// geometryID derives a stable gml:id from the geometry's coordinates so
// that identical inputs always serialise identically.
func geometryID(g orb.Geometry, epsg int) string {
	h := xxhash.New()
	_, _ = fmt.Fprintf(h, "%d;", epsg)
	_, _ = h.WriteString(wkt.MarshalString(g))
	return fmt.Sprintf("g%016x", h.Sum64())
}

// Box is an axis-aligned rectangle, serialised as gml:Envelope.
type Box struct {
	MinX, MinY, MaxX, MaxY float64
	EPSG                   int // 0 means DefaultEPSG
}

func (b Box) GML() (*etree.Element, error) {
	if b.MinX > b.MaxX || b.MinY > b.MaxY {
		return nil, doverr.New(doverr.ErrInvalidSearchParameter, b, "box minimum exceeds maximum")
	}
	bound := orb.Bound{Min: orb.Point{b.MinX, b.MinY}, Max: orb.Point{b.MaxX, b.MaxY}}
	return gml.Encode(bound, epsgOrDefault(b.EPSG), "")
}

// Point is a single position.
type Point struct {
	X, Y float64
	EPSG int
}

func (p Point) GML() (*etree.Element, error) {
	pt := orb.Point{p.X, p.Y}
	epsg := epsgOrDefault(p.EPSG)
	return gml.Encode(pt, epsg, geometryID(pt, epsg))
}

// OrbGeometry wraps any orb geometry (polygons, lines, multi-geometries).
type OrbGeometry struct {
	Geometry orb.Geometry
	EPSG     int
}

func (o OrbGeometry) GML() (*etree.Element, error) {
	if o.Geometry == nil {
		return nil, doverr.New(doverr.ErrInvalidSearchParameter, nil, "empty geometry")
	}
	epsg := epsgOrDefault(o.EPSG)
	id := ""
	if _, isBound := o.Geometry.(orb.Bound); !isBound {
		id = geometryID(o.Geometry, epsg)
	}
	el, err := gml.Encode(o.Geometry, epsg, id)
	if err != nil {
		return nil, doverr.Wrap(doverr.ErrInvalidSearchParameter, o.Geometry.GeoJSONType(), err, "encode geometry")
	}
	return el, nil
}

// GMLElement is a geometry already expressed in GML 3.2. The element must
// use the gml prefix and carry an srsName.
type GMLElement struct {
	Element *etree.Element
}

func (g GMLElement) GML() (*etree.Element, error) {
	if g.Element == nil {
		return nil, doverr.New(doverr.ErrInvalidSearchParameter, nil, "empty GML element")
	}
	if err := gml.CheckVersion(g.Element); err != nil {
		return nil, doverr.Wrap(doverr.ErrInvalidSearchParameter, g.Element.Tag, err, "GML geometry")
	}
	if g.Element.SelectAttrValue("srsName", "") == "" {
		return nil, doverr.New(doverr.ErrInvalidSearchParameter, g.Element.Tag, "GML geometry %s without srsName", g.Element.Tag)
	}
	return g.Element.Copy(), nil
}
