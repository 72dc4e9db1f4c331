package location

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/beevik/etree"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/geodov/godov/pkg/doverr"
	"github.com/geodov/godov/pkg/gml"
)

// Source yields the geometries of an external input, one per feature.
type Source interface {
	Geometries() ([]Geometry, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func() ([]Geometry, error)

func (f SourceFunc) Geometries() ([]Geometry, error) { return f() }

type sourceOptions struct {
	distance float64
	units    string
	combine  func(...Filter) Filter
}

type SourceOption func(*sourceOptions)

// WithDistance sets the buffer for KindWithinDistance predicates.
func WithDistance(d float64, units string) SourceOption {
	return func(o *sourceOptions) { o.distance, o.units = d, units }
}

// CombineWith replaces the default Or combinator.
func CombineWith(fn func(...Filter) Filter) SourceOption {
	return func(o *sourceOptions) { o.combine = fn }
}

// CombineAnd combines the per-geometry predicates with And.
func CombineAnd(ops ...Filter) Filter { return And(ops...) }

// FromSource builds one predicate of kind per geometry in src and combines
// them, by default with Or. A single geometry yields the bare predicate.
func FromSource(src Source, kind Kind, opts ...SourceOption) (Filter, error) {
	o := sourceOptions{combine: func(ops ...Filter) Filter { return Or(ops...) }}
	for _, opt := range opts {
		opt(&o)
	}
	if !kind.valid() {
		return nil, doverr.New(doverr.ErrInvalidSearchParameter, kind, "unknown spatial predicate %q", kind)
	}
	geoms, err := src.Geometries()
	if err != nil {
		return nil, err
	}
	if len(geoms) == 0 {
		return nil, doverr.New(doverr.ErrInvalidSearchParameter, nil, "location source contains no geometries")
	}
	preds := make([]Filter, len(geoms))
	for i, g := range geoms {
		preds[i] = Predicate{Kind: kind, Geometry: g, Distance: o.distance, Units: o.units}
	}
	if len(preds) == 1 {
		return preds[0], nil
	}
	return o.combine(preds...), nil
}

// FromGeometries is an in-memory source of orb geometries in one CRS.
func FromGeometries(epsg int, geoms ...orb.Geometry) Source {
	return SourceFunc(func() ([]Geometry, error) {
		out := make([]Geometry, 0, len(geoms))
		for _, g := range geoms {
			if g != nil {
				out = append(out, OrbGeometry{Geometry: g, EPSG: epsg})
			}
		}
		return out, nil
	})
}

// GMLString reads every outermost geometry of a GML 3.2 document. GML 3.1
// input is rejected.
func GMLString(s string) Source {
	return SourceFunc(func() ([]Geometry, error) {
		doc := etree.NewDocument()
		if err := doc.ReadFromString(s); err != nil {
			return nil, doverr.Wrap(doverr.ErrInvalidSearchParameter, nil, err, "parse GML")
		}
		return gmlGeometries(doc)
	})
}

// GMLFile is GMLString for a file on disk.
func GMLFile(path string) Source {
	return SourceFunc(func() ([]Geometry, error) {
		doc := etree.NewDocument()
		if err := doc.ReadFromFile(path); err != nil {
			return nil, doverr.Wrap(doverr.ErrInvalidSearchParameter, path, err, "read GML file")
		}
		return gmlGeometries(doc)
	})
}

func gmlGeometries(doc *etree.Document) ([]Geometry, error) {
	root := doc.Root()
	if root == nil {
		return nil, doverr.New(doverr.ErrInvalidSearchParameter, nil, "empty GML document")
	}
	els, err := gml.FindGeometries(root)
	if err != nil {
		return nil, doverr.Wrap(doverr.ErrInvalidSearchParameter, nil, err, "GML source")
	}
	out := make([]Geometry, 0, len(els))
	for _, el := range els {
		out = append(out, GMLElement{Element: normalizeGML(el)})
	}
	return out, nil
}

// normalizeGML detaches a geometry from its document: the gml prefix is
// used throughout, ids are kept, and an inherited srsName is made explicit.
func normalizeGML(el *etree.Element) *etree.Element {
	srs := ""
	for p := el; p != nil; p = p.Parent() {
		if s := p.SelectAttrValue("srsName", ""); s != "" {
			srs = s
			break
		}
	}
	type fix struct {
		el    *etree.Element
		isGML bool
		attrs []int
	}
	var fixes []fix
	var walk func(*etree.Element)
	walk = func(e *etree.Element) {
		f := fix{el: e, isGML: e.NamespaceURI() == gml.Namespace}
		for i, a := range e.Attr {
			if a.Space != "" && a.Space != "xmlns" && a.NamespaceURI() == gml.Namespace {
				f.attrs = append(f.attrs, i)
			}
		}
		fixes = append(fixes, f)
		for _, c := range e.ChildElements() {
			walk(c)
		}
	}
	walk(el)
	for _, f := range fixes {
		if f.isGML {
			f.el.Space = "gml"
		}
		for _, i := range f.attrs {
			f.el.Attr[i].Space = "gml"
		}
	}
	out := el.Copy()
	for _, a := range append([]etree.Attr(nil), out.Attr...) {
		if a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns") {
			out.RemoveAttr(a.FullKey())
		}
	}
	if srs != "" && out.SelectAttrValue("srsName", "") == "" {
		out.CreateAttr("srsName", srs)
	}
	return out
}

// GeoJSONBytes reads a GeoJSON FeatureCollection, Feature or bare
// geometry. Coordinates are EPSG:4326 unless a legacy "crs" member names
// another EPSG code.
func GeoJSONBytes(data []byte) Source {
	return SourceFunc(func() ([]Geometry, error) {
		var hdr struct {
			Type string `json:"type"`
			CRS  *struct {
				Properties struct {
					Name string `json:"name"`
				} `json:"properties"`
			} `json:"crs"`
		}
		if err := json.Unmarshal(data, &hdr); err != nil {
			return nil, doverr.Wrap(doverr.ErrInvalidSearchParameter, nil, err, "parse geojson")
		}
		epsg := 4326
		if hdr.CRS != nil && hdr.CRS.Properties.Name != "" {
			code, err := gml.ParseSRS(hdr.CRS.Properties.Name)
			if err != nil {
				return nil, doverr.Wrap(doverr.ErrInvalidSearchParameter, hdr.CRS.Properties.Name, err, "geojson crs")
			}
			epsg = code
		}

		var geoms []orb.Geometry
		switch hdr.Type {
		case "FeatureCollection":
			fc, err := geojson.UnmarshalFeatureCollection(data)
			if err != nil {
				return nil, doverr.Wrap(doverr.ErrInvalidSearchParameter, nil, err, "parse geojson feature collection")
			}
			for _, f := range fc.Features {
				geoms = append(geoms, f.Geometry)
			}
		case "Feature":
			f, err := geojson.UnmarshalFeature(data)
			if err != nil {
				return nil, doverr.Wrap(doverr.ErrInvalidSearchParameter, nil, err, "parse geojson feature")
			}
			geoms = append(geoms, f.Geometry)
		default:
			g, err := geojson.UnmarshalGeometry(data)
			if err != nil {
				return nil, doverr.Wrap(doverr.ErrInvalidSearchParameter, hdr.Type, err, "parse geojson geometry")
			}
			geoms = append(geoms, g.Geometry())
		}
		return FromGeometries(epsg, geoms...).Geometries()
	})
}

// GeoJSONFile is GeoJSONBytes for a file on disk.
func GeoJSONFile(path string) Source {
	return SourceFunc(func() ([]Geometry, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read geojson file: %w", err)
		}
		return GeoJSONBytes(data).Geometries()
	})
}
