package gml

import (
	"errors"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/paulmach/orb"
)

func TestParseSRS(t *testing.T) {
	cases := map[string]int{
		"EPSG:31370":                                   31370,
		"urn:ogc:def:crs:EPSG::4326":                   4326,
		"urn:x-ogc:def:crs:EPSG:3857":                  3857,
		"http://www.opengis.net/def/crs/EPSG/0/31370":  31370,
		"http://www.opengis.net/gml/srs/epsg.xml#4258": 4258,
	}
	for in, want := range cases {
		got, err := ParseSRS(in)
		if err != nil || got != want {
			t.Fatalf("ParseSRS(%q)=%d,%v want %d", in, got, err, want)
		}
	}
	for _, bad := range []string{"", "CRS:84", "EPSG:abc"} {
		if _, err := ParseSRS(bad); !errors.Is(err, ErrInvalidSRS) {
			t.Fatalf("ParseSRS(%q) err=%v want ErrInvalidSRS", bad, err)
		}
	}
}

func encodeString(t *testing.T, g orb.Geometry, epsg int, id string) string {
	t.Helper()
	el, err := Encode(g, epsg, id)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	doc := etree.NewDocument()
	doc.SetRoot(el)
	s, err := doc.WriteToString()
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	return s
}

func TestEncode_PointAndPolygon(t *testing.T) {
	got := encodeString(t, orb.Point{151650, 214675}, 31370, "g1")
	want := `<gml:Point gml:id="g1" srsName="urn:ogc:def:crs:EPSG::31370"><gml:pos>151650 214675</gml:pos></gml:Point>`
	if got != want {
		t.Fatalf("point:\n got %s\nwant %s", got, want)
	}

	poly := orb.Polygon{{{0, 0}, {10, 0}, {10, 10}, {0, 10}}}
	got = encodeString(t, poly, 31370, "p")
	if !strings.Contains(got, "<gml:posList>0 0 10 0 10 10 0 10 0 0</gml:posList>") {
		t.Fatalf("ring not closed in output: %s", got)
	}
}

func TestEncode_SwapsAxesForGeographicCRS(t *testing.T) {
	got := encodeString(t, orb.Point{3.2, 51.1}, 4326, "")
	if !strings.Contains(got, "<gml:pos>51.1 3.2</gml:pos>") {
		t.Fatalf("expected lat/lon order for EPSG:4326, got %s", got)
	}
}

func TestEncode_MultiPolygonMemberIDs(t *testing.T) {
	mp := orb.MultiPolygon{
		{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}},
		{{{5, 5}, {6, 5}, {6, 6}, {5, 5}}},
	}
	got := encodeString(t, mp, 31370, "m")
	for _, id := range []string{`gml:id="m"`, `gml:id="m.0"`, `gml:id="m.1"`} {
		if !strings.Contains(got, id) {
			t.Fatalf("missing %s in %s", id, got)
		}
	}
}

func parseRoot(t *testing.T, s string) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	if err := doc.ReadFromString(s); err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc.Root()
}

func TestDecode_RoundTripShapes(t *testing.T) {
	shapes := []orb.Geometry{
		orb.Point{1, 2},
		orb.LineString{{0, 0}, {1, 1}},
		orb.Polygon{{{0, 0}, {4, 0}, {4, 4}, {0, 4}, {0, 0}}, {{1, 1}, {2, 1}, {2, 2}, {1, 1}}},
		orb.MultiPolygon{{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}},
		orb.MultiLineString{{{0, 0}, {1, 1}}, {{2, 2}, {3, 3}}},
		orb.MultiPoint{{1, 1}, {2, 2}},
	}
	for _, g := range shapes {
		s := encodeString(t, g, 31370, "x")
		s = strings.Replace(s, "<gml:"+firstTag(s), `<gml:`+firstTag(s)+` xmlns:gml="`+Namespace+`"`, 1)
		got, epsg, err := Decode(parseRoot(t, s))
		if err != nil {
			t.Fatalf("Decode(%T): %v", g, err)
		}
		if epsg != 31370 {
			t.Fatalf("epsg=%d want 31370", epsg)
		}
		if !orb.Equal(got, g) {
			t.Fatalf("round trip %T: got %v want %v", g, got, g)
		}
	}
}

func firstTag(s string) string {
	s = strings.TrimPrefix(s, "<gml:")
	return s[:strings.IndexAny(s, " >")]
}

func TestDecode_LatLonResponse(t *testing.T) {
	s := `<gml:Point xmlns:gml="http://www.opengis.net/gml/3.2" srsName="urn:ogc:def:crs:EPSG::4326"><gml:pos>51.2 3.1</gml:pos></gml:Point>`
	g, epsg, err := Decode(parseRoot(t, s))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if epsg != 4326 || !orb.Equal(g, orb.Point{3.1, 51.2}) {
		t.Fatalf("got %v (epsg %d)", g, epsg)
	}
}

func TestDecode_RejectsGML31(t *testing.T) {
	s := `<gml:Point xmlns:gml="http://www.opengis.net/gml" srsName="EPSG:31370"><gml:coordinates>1,2</gml:coordinates></gml:Point>`
	if _, _, err := Decode(parseRoot(t, s)); !errors.Is(err, ErrGML31) {
		t.Fatalf("err=%v want ErrGML31", err)
	}
}

func TestFindGeometries_OutermostOnly(t *testing.T) {
	s := `<fc xmlns:gml="http://www.opengis.net/gml/3.2">
	  <member><geom><gml:MultiSurface gml:id="a" srsName="EPSG:31370">
	    <gml:surfaceMember><gml:Polygon gml:id="a.0"><gml:exterior><gml:LinearRing>
	      <gml:posList>0 0 1 0 1 1 0 0</gml:posList></gml:LinearRing></gml:exterior></gml:Polygon></gml:surfaceMember>
	  </gml:MultiSurface></geom></member>
	  <member><geom><gml:Point gml:id="b" srsName="EPSG:31370"><gml:pos>5 5</gml:pos></gml:Point></geom></member>
	</fc>`
	got, err := FindGeometries(parseRoot(t, s))
	if err != nil {
		t.Fatalf("FindGeometries: %v", err)
	}
	if len(got) != 2 || got[0].Tag != "MultiSurface" || got[1].Tag != "Point" {
		t.Fatalf("unexpected geometries: %d", len(got))
	}
}
