// Package gml converts between GML 3.2 elements and orb geometries.
package gml

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/paulmach/orb"
)

const (
	Namespace   = "http://www.opengis.net/gml/3.2"
	Namespace31 = "http://www.opengis.net/gml"
)

var (
	ErrGML31           = errors.New("gml: GML 3.1 is not supported, use GML 3.2")
	ErrUnsupportedType = errors.New("gml: unsupported geometry type")
	ErrInvalidSRS      = errors.New("gml: invalid srsName")
)

// SRSName returns the OGC URN for an EPSG code.
func SRSName(epsg int) string {
	return "urn:ogc:def:crs:EPSG::" + strconv.Itoa(epsg)
}

// ParseSRS extracts the EPSG code from the common srsName spellings:
// EPSG:31370, urn:ogc:def:crs:EPSG::31370, urn:x-ogc:def:crs:EPSG:31370,
// http://www.opengis.net/def/crs/EPSG/0/31370 and
// http://www.opengis.net/gml/srs/epsg.xml#31370.
func ParseSRS(srs string) (int, error) {
	s := strings.TrimSpace(srs)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidSRS)
	}
	idx := strings.LastIndexAny(s, ":/#")
	if idx < 0 || !strings.Contains(strings.ToUpper(s), "EPSG") {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSRS, srs)
	}
	code, err := strconv.Atoi(s[idx+1:])
	if err != nil || code <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSRS, srs)
	}
	return code, nil
}

// latLonOrder reports whether the URN axis order of the CRS is latitude first.
func latLonOrder(epsg int) bool {
	switch epsg {
	case 4326, 4258, 4269, 4230:
		return true
	}
	return false
}

// Encode renders g as a GML 3.2 element in the given CRS. The element and
// its nested members get gml:id values derived from id.
func Encode(g orb.Geometry, epsg int, id string) (*etree.Element, error) {
	e := &encoder{swap: latLonOrder(epsg)}
	el, err := e.encode(g, id)
	if err != nil {
		return nil, err
	}
	el.CreateAttr("srsName", SRSName(epsg))
	return el, nil
}

type encoder struct {
	swap bool
}

func (e *encoder) encode(g orb.Geometry, id string) (*etree.Element, error) {
	switch v := g.(type) {
	case orb.Point:
		el := newGeom("gml:Point", id)
		el.CreateElement("gml:pos").SetText(e.coords([]orb.Point{v}))
		return el, nil
	case orb.Bound:
		el := etree.NewElement("gml:Envelope")
		el.CreateElement("gml:lowerCorner").SetText(e.coords([]orb.Point{v.Min}))
		el.CreateElement("gml:upperCorner").SetText(e.coords([]orb.Point{v.Max}))
		return el, nil
	case orb.LineString:
		el := newGeom("gml:LineString", id)
		el.CreateElement("gml:posList").SetText(e.coords(v))
		return el, nil
	case orb.Ring:
		return e.encode(orb.Polygon{v}, id)
	case orb.Polygon:
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: empty polygon", ErrUnsupportedType)
		}
		el := newGeom("gml:Polygon", id)
		for i, ring := range v {
			wrap := "gml:exterior"
			if i > 0 {
				wrap = "gml:interior"
			}
			lr := el.CreateElement(wrap).CreateElement("gml:LinearRing")
			lr.CreateElement("gml:posList").SetText(e.coords(closeRing(ring)))
		}
		return el, nil
	case orb.MultiPoint:
		el := newGeom("gml:MultiPoint", id)
		for i, p := range v {
			child, _ := e.encode(p, memberID(id, i))
			el.CreateElement("gml:pointMember").AddChild(child)
		}
		return el, nil
	case orb.MultiLineString:
		el := newGeom("gml:MultiCurve", id)
		for i, ls := range v {
			child, _ := e.encode(ls, memberID(id, i))
			el.CreateElement("gml:curveMember").AddChild(child)
		}
		return el, nil
	case orb.MultiPolygon:
		el := newGeom("gml:MultiSurface", id)
		for i, p := range v {
			child, err := e.encode(p, memberID(id, i))
			if err != nil {
				return nil, err
			}
			el.CreateElement("gml:surfaceMember").AddChild(child)
		}
		return el, nil
	case orb.Collection:
		el := newGeom("gml:MultiGeometry", id)
		for i, m := range v {
			child, err := e.encode(m, memberID(id, i))
			if err != nil {
				return nil, err
			}
			el.CreateElement("gml:geometryMember").AddChild(child)
		}
		return el, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, g)
	}
}

func newGeom(tag, id string) *etree.Element {
	el := etree.NewElement(tag)
	if id != "" {
		el.CreateAttr("gml:id", id)
	}
	return el
}

func memberID(id string, i int) string {
	if id == "" {
		return ""
	}
	return id + "." + strconv.Itoa(i)
}

func closeRing(r orb.Ring) orb.Ring {
	if len(r) > 0 && !r.Closed() {
		return append(append(orb.Ring(nil), r...), r[0])
	}
	return r
}

func (e *encoder) coords(pts []orb.Point) string {
	var b strings.Builder
	for i, p := range pts {
		if i > 0 {
			b.WriteByte(' ')
		}
		x, y := p[0], p[1]
		if e.swap {
			x, y = y, x
		}
		b.WriteString(strconv.FormatFloat(x, 'f', -1, 64))
		b.WriteByte(' ')
		b.WriteString(strconv.FormatFloat(y, 'f', -1, 64))
	}
	return b.String()
}

// IsGeometry reports whether el is a GML 3.2 geometry element this package decodes.
func IsGeometry(el *etree.Element) bool {
	if el == nil || !inGMLNamespace(el) {
		return false
	}
	switch el.Tag {
	case "Point", "LineString", "Polygon", "Envelope", "MultiPoint", "MultiCurve",
		"MultiLineString", "MultiSurface", "MultiPolygon", "MultiGeometry", "Surface", "Curve", "LinearRing":
		return true
	}
	return false
}

func inGMLNamespace(el *etree.Element) bool {
	uri := el.NamespaceURI()
	return uri == Namespace || (uri == "" && el.Space == "gml")
}

// CheckVersion returns ErrGML31 when el lives in the GML 3.1 namespace.
func CheckVersion(el *etree.Element) error {
	if el != nil && el.NamespaceURI() == Namespace31 {
		return ErrGML31
	}
	return nil
}

// Decode converts a GML 3.2 geometry element to an orb geometry and returns
// the EPSG code of its srsName (inherited from ancestors, 0 when unknown).
// Coordinates are returned in x/lon, y/lat order.
func Decode(el *etree.Element) (orb.Geometry, int, error) {
	if err := CheckVersion(el); err != nil {
		return nil, 0, err
	}
	epsg := 0
	for p := el; p != nil; p = p.Parent() {
		if s := p.SelectAttrValue("srsName", ""); s != "" {
			code, err := ParseSRS(s)
			if err != nil {
				return nil, 0, err
			}
			epsg = code
			break
		}
	}
	d := &decoder{swap: latLonOrder(epsg)}
	g, err := d.decode(el)
	if err != nil {
		return nil, 0, err
	}
	return g, epsg, nil
}

type decoder struct {
	swap bool
}

func (d *decoder) decode(el *etree.Element) (orb.Geometry, error) {
	if !inGMLNamespace(el) {
		if err := CheckVersion(el); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, el.FullTag())
	}
	switch el.Tag {
	case "Point":
		pts, err := d.points(el)
		if err != nil {
			return nil, err
		}
		if len(pts) != 1 {
			return nil, fmt.Errorf("gml: point with %d positions", len(pts))
		}
		return pts[0], nil
	case "Envelope":
		lo, err := d.parse(childText(el, "lowerCorner"))
		if err != nil {
			return nil, err
		}
		hi, err := d.parse(childText(el, "upperCorner"))
		if err != nil {
			return nil, err
		}
		if len(lo) != 1 || len(hi) != 1 {
			return nil, errors.New("gml: envelope needs lowerCorner and upperCorner")
		}
		return orb.Bound{Min: lo[0], Max: hi[0]}, nil
	case "LineString", "LinearRing":
		pts, err := d.points(el)
		if err != nil {
			return nil, err
		}
		if el.Tag == "LinearRing" {
			return orb.Ring(pts), nil
		}
		return orb.LineString(pts), nil
	case "Curve":
		var ls orb.LineString
		for _, seg := range grandchildren(el, "segments") {
			pts, err := d.points(seg)
			if err != nil {
				return nil, err
			}
			if len(ls) > 0 && len(pts) > 0 && ls[len(ls)-1].Equal(pts[0]) {
				pts = pts[1:]
			}
			ls = append(ls, pts...)
		}
		return ls, nil
	case "Polygon":
		return d.polygon(el)
	case "Surface":
		var mp orb.MultiPolygon
		for _, patch := range grandchildren(el, "patches") {
			p, err := d.polygon(patch)
			if err != nil {
				return nil, err
			}
			mp = append(mp, p)
		}
		if len(mp) == 1 {
			return mp[0], nil
		}
		return mp, nil
	case "MultiPoint":
		var mp orb.MultiPoint
		for _, m := range d.members(el, "pointMember", "pointMembers") {
			g, err := d.decode(m)
			if err != nil {
				return nil, err
			}
			p, ok := g.(orb.Point)
			if !ok {
				return nil, fmt.Errorf("%w: %T in MultiPoint", ErrUnsupportedType, g)
			}
			mp = append(mp, p)
		}
		return mp, nil
	case "MultiCurve", "MultiLineString":
		var ml orb.MultiLineString
		for _, m := range d.members(el, "curveMember", "curveMembers", "lineStringMember") {
			g, err := d.decode(m)
			if err != nil {
				return nil, err
			}
			ls, ok := g.(orb.LineString)
			if !ok {
				return nil, fmt.Errorf("%w: %T in MultiCurve", ErrUnsupportedType, g)
			}
			ml = append(ml, ls)
		}
		return ml, nil
	case "MultiSurface", "MultiPolygon":
		var mp orb.MultiPolygon
		for _, m := range d.members(el, "surfaceMember", "surfaceMembers", "polygonMember") {
			g, err := d.decode(m)
			if err != nil {
				return nil, err
			}
			switch v := g.(type) {
			case orb.Polygon:
				mp = append(mp, v)
			case orb.MultiPolygon:
				mp = append(mp, v...)
			default:
				return nil, fmt.Errorf("%w: %T in MultiSurface", ErrUnsupportedType, g)
			}
		}
		return mp, nil
	case "MultiGeometry":
		var c orb.Collection
		for _, m := range d.members(el, "geometryMember", "geometryMembers") {
			g, err := d.decode(m)
			if err != nil {
				return nil, err
			}
			c = append(c, g)
		}
		return c, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, el.FullTag())
}

func (d *decoder) polygon(el *etree.Element) (orb.Polygon, error) {
	var p orb.Polygon
	for _, wrap := range el.ChildElements() {
		if wrap.Tag != "exterior" && wrap.Tag != "interior" {
			continue
		}
		for _, lr := range wrap.ChildElements() {
			pts, err := d.points(lr)
			if err != nil {
				return nil, err
			}
			if wrap.Tag == "exterior" {
				p = append(orb.Polygon{orb.Ring(pts)}, p...)
			} else {
				p = append(p, orb.Ring(pts))
			}
		}
	}
	if len(p) == 0 {
		return nil, errors.New("gml: polygon without exterior ring")
	}
	return p, nil
}

// members returns the geometries wrapped by the given member properties.
func (d *decoder) members(el *etree.Element, tags ...string) []*etree.Element {
	var out []*etree.Element
	for _, c := range el.ChildElements() {
		for _, t := range tags {
			if c.Tag == t {
				out = append(out, c.ChildElements()...)
			}
		}
	}
	return out
}

func (d *decoder) points(el *etree.Element) ([]orb.Point, error) {
	var pts []orb.Point
	for _, c := range el.ChildElements() {
		switch c.Tag {
		case "pos", "posList":
			dim := 2
			if s := c.SelectAttrValue("srsDimension", ""); s != "" {
				if n, err := strconv.Atoi(s); err == nil && n > 0 {
					dim = n
				}
			}
			p, err := d.parseDim(c.Text(), dim)
			if err != nil {
				return nil, err
			}
			pts = append(pts, p...)
		case "coordinates":
			return nil, ErrGML31
		}
	}
	if len(pts) == 0 {
		return nil, fmt.Errorf("gml: %s without coordinates", el.Tag)
	}
	return pts, nil
}

func (d *decoder) parse(s string) ([]orb.Point, error) {
	return d.parseDim(s, 2)
}

func (d *decoder) parseDim(s string, dim int) ([]orb.Point, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 || len(fields)%dim != 0 {
		return nil, fmt.Errorf("gml: malformed coordinate list %q", s)
	}
	pts := make([]orb.Point, 0, len(fields)/dim)
	for i := 0; i < len(fields); i += dim {
		x, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, fmt.Errorf("gml: coordinate %q: %w", fields[i], err)
		}
		y, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return nil, fmt.Errorf("gml: coordinate %q: %w", fields[i+1], err)
		}
		if d.swap {
			x, y = y, x
		}
		pts = append(pts, orb.Point{x, y})
	}
	return pts, nil
}

func grandchildren(el *etree.Element, tag string) []*etree.Element {
	var out []*etree.Element
	for _, c := range el.ChildElements() {
		if c.Tag == tag {
			out = append(out, c.ChildElements()...)
		}
	}
	return out
}

func childText(el *etree.Element, tag string) string {
	for _, c := range el.ChildElements() {
		if c.Tag == tag {
			return c.Text()
		}
	}
	return ""
}

// FindGeometries returns the outermost GML geometries below root, in
// document order. Geometries nested in other geometries are not repeated.
func FindGeometries(root *etree.Element) ([]*etree.Element, error) {
	var out []*etree.Element
	var walk func(*etree.Element) error
	walk = func(el *etree.Element) error {
		if err := CheckVersion(el); err != nil {
			return err
		}
		if IsGeometry(el) {
			out = append(out, el)
			return nil
		}
		for _, c := range el.ChildElements() {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	return out, nil
}
