package ogc

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/geodov/godov/pkg/doverr"
	"github.com/geodov/godov/pkg/gml"
	"github.com/geodov/godov/pkg/location"
	"github.com/geodov/godov/pkg/query"
)

const (
	WFSNamespace      = "http://www.opengis.net/wfs/2.0"
	FESNamespace      = query.FESNamespace
	xsiNamespace      = "http://www.w3.org/2001/XMLSchema-instance"
	wfsSchemaLocation = "http://www.opengis.net/wfs/2.0 http://schemas.opengis.net/wfs/2.0/wfs.xsd"

	// gmlIDPrefix is used when ids in a request collide.
	gmlIDPrefix = "pydov."
)

var crsPattern = regexp.MustCompile(`^EPSG:(\d+)$`)

// GetFeatureRequest describes one WFS 2.0 GetFeature POST.
type GetFeatureRequest struct {
	Typename string
	// Namespace, when set, is declared for the typename prefix.
	Namespace      string
	GeometryColumn string
	Location       location.Filter
	Filter         query.Filter
	SortBy         query.SortBy
	PropertyNames  []string
	// MaxFeatures is the count attribute; 0 leaves it out.
	MaxFeatures int
	StartIndex  int
	// CRS is the output CRS as EPSG:<code>; empty keeps the layer CRS.
	CRS string
}

// Build serialises r. Equal requests produce byte-equal documents.
func (r GetFeatureRequest) Build() ([]byte, error) {
	doc, err := r.Document()
	if err != nil {
		return nil, err
	}
	doc.WriteSettings.CanonicalEndTags = false
	return doc.WriteToBytes()
}

func (r GetFeatureRequest) Document() (*etree.Document, error) {
	if strings.TrimSpace(r.Typename) == "" {
		return nil, doverr.New(doverr.ErrProgramming, r.Typename, "GetFeature without typename")
	}
	if r.MaxFeatures < 0 {
		return nil, doverr.New(doverr.ErrInvalidSearchParameter, r.MaxFeatures, "max features must be positive, got %d", r.MaxFeatures)
	}
	if r.StartIndex < 0 {
		return nil, doverr.New(doverr.ErrProgramming, r.StartIndex, "negative start index %d", r.StartIndex)
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("wfs:GetFeature")
	root.CreateAttr("xmlns:wfs", WFSNamespace)
	root.CreateAttr("xmlns:fes", FESNamespace)
	root.CreateAttr("xmlns:gml", gml.Namespace)
	root.CreateAttr("xmlns:xsi", xsiNamespace)
	if prefix, _, ok := strings.Cut(r.Typename, ":"); ok && r.Namespace != "" {
		root.CreateAttr("xmlns:"+prefix, r.Namespace)
	}
	root.CreateAttr("service", "WFS")
	root.CreateAttr("version", "2.0.0")
	root.CreateAttr("startIndex", strconv.Itoa(r.StartIndex))
	if r.MaxFeatures > 0 {
		root.CreateAttr("count", strconv.Itoa(r.MaxFeatures))
	}
	root.CreateAttr("xsi:schemaLocation", wfsSchemaLocation)

	q := root.CreateElement("wfs:Query")
	q.CreateAttr("typeNames", r.Typename)
	if r.CRS != "" {
		m := crsPattern.FindStringSubmatch(r.CRS)
		if m == nil {
			return nil, doverr.New(doverr.ErrInvalidSearchParameter, r.CRS, "crs must be of the form EPSG:<code>, got %q", r.CRS)
		}
		q.CreateAttr("srsName", "urn:ogc:def:crs:EPSG::"+m[1])
	}

	props := append([]string(nil), r.PropertyNames...)
	sort.Strings(props)
	for i, p := range props {
		if i > 0 && p == props[i-1] {
			continue
		}
		q.CreateElement("wfs:PropertyName").SetText(p)
	}

	var pred *etree.Element
	if r.Filter != nil {
		if err := query.Validate(r.Filter); err != nil {
			return nil, err
		}
		pred = r.Filter.Element()
	}
	if r.Location != nil {
		if r.GeometryColumn == "" {
			return nil, doverr.New(doverr.ErrProgramming, r.Typename, "location filter on %s without geometry column", r.Typename)
		}
		loc, err := r.Location.WithGeometryColumn(r.GeometryColumn).Element()
		if err != nil {
			return nil, err
		}
		if pred != nil {
			and := etree.NewElement("fes:And")
			and.AddChild(pred)
			and.AddChild(loc)
			pred = and
		} else {
			pred = loc
		}
	}
	if pred != nil {
		q.CreateElement("fes:Filter").AddChild(pred)
	}
	if len(r.SortBy) > 0 {
		q.AddChild(r.SortBy.Element())
	}

	UniqueGMLIDs(root)
	return doc, nil
}

// UniqueGMLIDs rewrites every gml:id below root to pydov.<n>, in document
// order, when any two of them collide. It reports whether it rewrote.
func UniqueGMLIDs(root *etree.Element) bool {
	var attrs []*etree.Attr
	var walk func(*etree.Element)
	walk = func(el *etree.Element) {
		for i := range el.Attr {
			a := &el.Attr[i]
			if a.Key == "id" && (a.Space == "gml" || a.NamespaceURI() == gml.Namespace) {
				attrs = append(attrs, a)
			}
		}
		for _, c := range el.ChildElements() {
			walk(c)
		}
	}
	walk(root)

	seen := make(map[string]struct{}, len(attrs))
	dup := false
	for _, a := range attrs {
		if _, ok := seen[a.Value]; ok {
			dup = true
			break
		}
		seen[a.Value] = struct{}{}
	}
	if !dup {
		return false
	}
	for i, a := range attrs {
		a.Value = fmt.Sprintf("%s%d", gmlIDPrefix, i)
	}
	return true
}
