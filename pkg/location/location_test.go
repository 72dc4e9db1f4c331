package location

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/beevik/etree"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geodov/godov/pkg/doverr"
)

func render(t *testing.T, el *etree.Element) string {
	t.Helper()
	doc := etree.NewDocument()
	doc.SetRoot(el)
	s, err := doc.WriteToString()
	require.NoError(t, err)
	return s
}

func TestPredicate_UnboundColumnIsProgrammingError(t *testing.T) {
	_, err := Within(Box{MinX: 1, MinY: 2, MaxX: 3, MaxY: 4}).Element()
	require.Error(t, err)
	assert.True(t, errors.Is(err, doverr.ErrProgramming))

	_, err = Or(Within(Point{X: 1, Y: 1}), Intersects(Point{X: 2, Y: 2})).Element()
	assert.True(t, errors.Is(err, doverr.ErrProgramming))
}

func TestPredicate_WithinBox(t *testing.T) {
	f := Within(Box{MinX: 151650, MinY: 214675, MaxX: 151750, MaxY: 214775}).WithGeometryColumn("geom")
	el, err := f.Element()
	require.NoError(t, err)

	assert.Equal(t, "fes:Within", el.FullTag())
	assert.Equal(t, "geom", el.FindElement("./fes:ValueReference").Text())
	env := el.FindElement("./gml:Envelope")
	require.NotNil(t, env)
	assert.Equal(t, "urn:ogc:def:crs:EPSG::31370", env.SelectAttrValue("srsName", ""))
	assert.Equal(t, "151650 214675", env.FindElement("./gml:lowerCorner").Text())
	assert.Equal(t, "151750 214775", env.FindElement("./gml:upperCorner").Text())
}

func TestPredicate_WithinDistance(t *testing.T) {
	f := WithinDistance(Point{X: 150000, Y: 200000}, 250, "").WithGeometryColumn("geom")
	el, err := f.Element()
	require.NoError(t, err)

	assert.Equal(t, "fes:DWithin", el.FullTag())
	children := el.ChildElements()
	require.Len(t, children, 3)
	assert.Equal(t, "fes:ValueReference", children[0].FullTag())
	assert.Equal(t, "gml:Point", children[1].FullTag())
	assert.Equal(t, "fes:Distance", children[2].FullTag())
	assert.Equal(t, "meter", children[2].SelectAttrValue("uom", ""))
	assert.Equal(t, "250", children[2].Text())
}

func TestPredicate_NegativeDistance(t *testing.T) {
	_, err := WithinDistance(Point{X: 1, Y: 1}, -1, "meter").WithGeometryColumn("g").Element()
	assert.True(t, errors.Is(err, doverr.ErrInvalidSearchParameter))
}

func TestGeometryColumn_BindsWholeTree(t *testing.T) {
	tree := And(
		Within(Box{MaxX: 10, MaxY: 10}),
		Not(Or(Touches(Point{X: 1, Y: 1}), Disjoint(Point{X: 2, Y: 2}))),
	).WithGeometryColumn("shape")

	el, err := tree.Element()
	require.NoError(t, err)
	refs := el.FindElements(".//fes:ValueReference")
	require.Len(t, refs, 3)
	for _, r := range refs {
		assert.Equal(t, "shape", r.Text())
	}
}

func TestLogical_NeedsTwoOperands(t *testing.T) {
	_, err := Or(Within(Point{X: 1, Y: 1})).WithGeometryColumn("g").Element()
	assert.True(t, errors.Is(err, doverr.ErrInvalidSearchParameter))
}

func TestGeometryIDs_Deterministic(t *testing.T) {
	poly := orb.Polygon{{{0, 0}, {10, 0}, {10, 10}, {0, 0}}}
	a, err := OrbGeometry{Geometry: poly}.GML()
	require.NoError(t, err)
	b, err := OrbGeometry{Geometry: poly}.GML()
	require.NoError(t, err)
	assert.Equal(t, render(t, a), render(t, b))

	other, err := OrbGeometry{Geometry: poly, EPSG: 3812}.GML()
	require.NoError(t, err)
	assert.NotEqual(t, a.SelectAttrValue("gml:id", ""), other.SelectAttrValue("gml:id", ""))
}

func TestBox_Invalid(t *testing.T) {
	_, err := Box{MinX: 5, MaxX: 1}.GML()
	assert.True(t, errors.Is(err, doverr.ErrInvalidSearchParameter))
}

const gml32 = `<?xml version="1.0"?>
<collection xmlns:g="http://www.opengis.net/gml/3.2" xmlns="urn:test">
  <member>
    <g:Point g:id="p1" srsName="urn:ogc:def:crs:EPSG::31370"><g:pos>100 200</g:pos></g:Point>
  </member>
  <member srsName="EPSG:31370">
    <g:Polygon g:id="p2">
      <g:exterior><g:LinearRing><g:posList>0 0 1 0 1 1 0 0</g:posList></g:LinearRing></g:exterior>
    </g:Polygon>
  </member>
</collection>`

func TestGMLString(t *testing.T) {
	geoms, err := GMLString(gml32).Geometries()
	require.NoError(t, err)
	require.Len(t, geoms, 2)

	first, err := geoms[0].GML()
	require.NoError(t, err)
	assert.Equal(t, "gml:Point", first.FullTag())
	assert.Equal(t, "p1", first.SelectAttrValue("gml:id", ""))

	second, err := geoms[1].GML()
	require.NoError(t, err)
	assert.Equal(t, "gml:Polygon", second.FullTag())
	assert.Equal(t, "EPSG:31370", second.SelectAttrValue("srsName", ""))
}

func TestGMLString_RejectsGML31(t *testing.T) {
	doc := `<gml:Point xmlns:gml="http://www.opengis.net/gml" srsName="EPSG:31370"><gml:pos>1 2</gml:pos></gml:Point>`
	_, err := GMLString(doc).Geometries()
	assert.True(t, errors.Is(err, doverr.ErrInvalidSearchParameter))
}

func TestFromSource(t *testing.T) {
	t.Run("single geometry yields bare predicate", func(t *testing.T) {
		f, err := FromSource(FromGeometries(31370, orb.Point{1, 2}), KindIntersects)
		require.NoError(t, err)
		p, ok := f.(Predicate)
		require.True(t, ok)
		assert.Equal(t, KindIntersects, p.Kind)
	})

	t.Run("many geometries combined with or", func(t *testing.T) {
		f, err := FromSource(FromGeometries(31370, orb.Point{1, 2}, orb.Point{3, 4}), KindWithinDistance, WithDistance(10, "meter"))
		require.NoError(t, err)
		l, ok := f.(Logical)
		require.True(t, ok)
		assert.Equal(t, "Or", l.Op)
		assert.Len(t, l.Operands, 2)
		assert.Equal(t, 10.0, l.Operands[0].(Predicate).Distance)
	})

	t.Run("custom combinator", func(t *testing.T) {
		f, err := FromSource(FromGeometries(31370, orb.Point{1, 2}, orb.Point{3, 4}), KindWithin, CombineWith(CombineAnd))
		require.NoError(t, err)
		assert.Equal(t, "And", f.(Logical).Op)
	})

	t.Run("empty source", func(t *testing.T) {
		_, err := FromSource(FromGeometries(31370), KindWithin)
		assert.True(t, errors.Is(err, doverr.ErrInvalidSearchParameter))
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := FromSource(FromGeometries(31370, orb.Point{1, 2}), Kind("Crosses"))
		assert.True(t, errors.Is(err, doverr.ErrInvalidSearchParameter))
	})
}

func TestGeoJSONFile(t *testing.T) {
	data := `{"type":"FeatureCollection","crs":{"type":"name","properties":{"name":"urn:ogc:def:crs:EPSG::31370"}},
"features":[{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[150000,200000]}},
{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[151000,201000]}}]}`
	path := filepath.Join(t.TempDir(), "in.geojson")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	geoms, err := GeoJSONFile(path).Geometries()
	require.NoError(t, err)
	require.Len(t, geoms, 2)
	og := geoms[1].(OrbGeometry)
	assert.Equal(t, 31370, og.EPSG)
	assert.Equal(t, orb.Point{151000, 201000}, og.Geometry)
}

func TestGeoJSONBytes_DefaultsToWGS84(t *testing.T) {
	geoms, err := GeoJSONBytes([]byte(`{"type":"Point","coordinates":[3.7,51.05]}`)).Geometries()
	require.NoError(t, err)
	require.Len(t, geoms, 1)
	assert.Equal(t, 4326, geoms[0].(OrbGeometry).EPSG)
}

func TestH3Cover(t *testing.T) {
	area := orb.Polygon{{{3.70, 51.04}, {3.74, 51.04}, {3.74, 51.07}, {3.70, 51.07}, {3.70, 51.04}}}
	geoms, err := H3Cover(area, 7).Geometries()
	require.NoError(t, err)
	require.NotEmpty(t, geoms)
	for _, g := range geoms {
		og := g.(OrbGeometry)
		assert.Equal(t, 4326, og.EPSG)
		_, ok := og.Geometry.(orb.Polygon)
		assert.True(t, ok)
	}

	_, err = H3Cover(area, 99).Geometries()
	assert.True(t, errors.Is(err, doverr.ErrInvalidSearchParameter))
}
