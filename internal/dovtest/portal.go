// Package dovtest runs an in-process fake of the DOV portal: WFS
// capabilities, DescribeFeatureType and paged GetFeature, the CSW metadata
// and feature catalogue records, XSD schemas, the SPARQL endpoint and the
// per-object XML documents.
package dovtest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/beevik/etree"
	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb"

	"github.com/geodov/godov/pkg/gml"
)

// Attribute is one WFS attribute of a layer, described in both the
// DescribeFeatureType schema and the feature catalogue.
type Attribute struct {
	Name       string
	XSDType    string // e.g. "string", "decimal", "date"
	Definition string
	// Lower is the catalogue's minimum multiplicity; 1 marks notnull.
	Lower  int
	Values map[string]string
}

// Feature is one WFS feature: attribute source names to their text, plus
// an optional geometry served in the layer's geometry column.
type Feature struct {
	Attrs map[string]string
	Geom  orb.Geometry
}

type Layer struct {
	Typename  string // e.g. "dov-pub:Boringen"
	Title     string
	Abstract  string
	Namespace string
	// GeometryColumn is declared as a gml:GeometryPropertyType element.
	GeometryColumn string
	Attributes     []Attribute
	Features       []Feature
	// NoMetadata drops the MetadataURL from the capabilities.
	NoMetadata bool
}

// Request is one request received by the portal.
type Request struct {
	Method   string
	Path     string
	RawQuery string
	Body     []byte
}

// Portal is the fake. The zero value is not usable; call New.
type Portal struct {
	Server *httptest.Server
	URL    string

	mu sync.Mutex
	// CountDefault is advertised in the capabilities; 0 advertises none.
	CountDefault int
	layers       []*Layer
	docs         map[string][]byte
	sparql       []byte
	status       map[string]int
	requests     []Request
}

// New starts a portal that is closed when t ends.
func New(t testing.TB) *Portal {
	t.Helper()
	p := &Portal{docs: map[string][]byte{}, status: map[string]int{}}

	r := chi.NewRouter()
	r.Use(p.record)
	r.Get("/geoserver/wfs", p.wfsGet)
	r.Post("/geoserver/wfs", p.getFeature)
	r.Get("/geonetwork/srv/{lang}/csw", p.csw)
	r.Post("/sparql", p.sparqlQuery)
	r.Get("/*", p.document)

	p.Server = httptest.NewServer(r)
	p.URL = p.Server.URL
	t.Cleanup(p.Server.Close)
	return p
}

// AddLayer serves l. Features may be appended later through the returned
// pointer under the portal lock.
func (p *Portal) AddLayer(l Layer) *Layer {
	p.mu.Lock()
	defer p.mu.Unlock()
	lp := &l
	p.layers = append(p.layers, lp)
	return lp
}

// ObjectURL is the permanent key of an object served by the portal.
func (p *Portal) ObjectURL(family, id string) string {
	return p.URL + "/data/" + family + "/" + id
}

// AddObject serves xml as the document of family/id and returns its
// permanent key.
func (p *Portal) AddObject(family, id, xml string) string {
	pkey := p.ObjectURL(family, id)
	p.SetDocument("/data/"+family+"/"+id+".xml", []byte(xml))
	return pkey
}

// SetDocument serves data at path for GET.
func (p *Portal) SetDocument(path string, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.docs[path] = data
}

// SetSPARQL sets the RDF/XML answer of the SPARQL endpoint.
func (p *Portal) SetSPARQL(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sparql = data
}

// Fail answers every request on path with status; 0 clears it.
func (p *Portal) Fail(path string, status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if status == 0 {
		delete(p.status, path)
		return
	}
	p.status[path] = status
}

// Requests returns the received requests whose path has the given prefix.
func (p *Portal) Requests(prefix string) []Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Request
	for _, r := range p.requests {
		if strings.HasPrefix(r.Path, prefix) {
			out = append(out, r)
		}
	}
	return out
}

// GetFeatureRequests returns the bodies of the GetFeature posts.
func (p *Portal) GetFeatureRequests() []*etree.Document {
	var out []*etree.Document
	for _, r := range p.Requests("/geoserver/wfs") {
		if r.Method != http.MethodPost {
			continue
		}
		doc := etree.NewDocument()
		if err := doc.ReadFromBytes(r.Body); err == nil {
			out = append(out, doc)
		}
	}
	return out
}

// Reset forgets the received requests.
func (p *Portal) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = nil
}

func (p *Portal) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		p.mu.Lock()
		p.requests = append(p.requests, Request{Method: r.Method, Path: r.URL.Path, RawQuery: r.URL.RawQuery, Body: body})
		status := p.status[r.URL.Path]
		p.mu.Unlock()

		if status != 0 {
			http.Error(w, http.StatusText(status), status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (p *Portal) layer(typename string) *Layer {
	for _, l := range p.layers {
		if l.Typename == typename {
			return l
		}
	}
	return nil
}

func localName(typename string) string {
	if _, after, ok := strings.Cut(typename, ":"); ok {
		return after
	}
	return typename
}

func writeXML(w http.ResponseWriter, doc *etree.Document) {
	doc.Indent(2)
	w.Header().Set("Content-Type", "text/xml; charset=UTF-8")
	_, _ = doc.WriteTo(w)
}

func exceptionReport(w http.ResponseWriter, status int, msg string) {
	doc := etree.NewDocument()
	root := doc.CreateElement("ows:ExceptionReport")
	root.CreateAttr("xmlns:ows", "http://www.opengis.net/ows/1.1")
	root.CreateElement("ows:Exception").CreateElement("ows:ExceptionText").SetText(msg)
	w.Header().Set("Content-Type", "text/xml; charset=UTF-8")
	w.WriteHeader(status)
	_, _ = doc.WriteTo(w)
}

func (p *Portal) wfsGet(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	q := r.URL.Query()
	switch strings.ToLower(q.Get("request")) {
	case "getcapabilities":
		writeXML(w, p.capabilities())
	case "describefeaturetype":
		l := p.layer(q.Get("typeNames"))
		if l == nil {
			exceptionReport(w, http.StatusBadRequest, "unknown type "+q.Get("typeNames"))
			return
		}
		writeXML(w, describeFeatureType(l))
	default:
		exceptionReport(w, http.StatusBadRequest, "unsupported request")
	}
}

func (p *Portal) capabilities() *etree.Document {
	doc := etree.NewDocument()
	root := doc.CreateElement("wfs:WFS_Capabilities")
	root.CreateAttr("xmlns:wfs", "http://www.opengis.net/wfs/2.0")
	root.CreateAttr("xmlns:ows", "http://www.opengis.net/ows/1.1")
	root.CreateAttr("xmlns:xlink", "http://www.w3.org/1999/xlink")
	root.CreateAttr("version", "2.0.0")
	if p.CountDefault > 0 {
		c := root.CreateElement("ows:OperationsMetadata").CreateElement("ows:Constraint")
		c.CreateAttr("name", "CountDefault")
		c.CreateElement("ows:NoValues")
		c.CreateElement("ows:DefaultValue").SetText(strconv.Itoa(p.CountDefault))
	}
	list := root.CreateElement("wfs:FeatureTypeList")
	for _, l := range p.layers {
		ft := list.CreateElement("wfs:FeatureType")
		ft.CreateElement("wfs:Name").SetText(l.Typename)
		ft.CreateElement("wfs:Title").SetText(l.Title)
		ft.CreateElement("wfs:Abstract").SetText(l.Abstract)
		if !l.NoMetadata {
			ft.CreateElement("wfs:MetadataURL").CreateAttr("xlink:href",
				p.URL+"/geonetwork/srv/nl/csw?service=CSW&request=GetRecordById&id=md-"+localName(l.Typename))
		}
	}
	return doc
}

func describeFeatureType(l *Layer) *etree.Document {
	doc := etree.NewDocument()
	root := doc.CreateElement("xsd:schema")
	root.CreateAttr("xmlns:xsd", "http://www.w3.org/2001/XMLSchema")
	root.CreateAttr("xmlns:gml", gml.Namespace)
	root.CreateAttr("targetNamespace", l.Namespace)
	seq := root.CreateElement("xsd:complexType")
	seq.CreateAttr("name", localName(l.Typename)+"Type")
	seq = seq.CreateElement("xsd:complexContent").CreateElement("xsd:extension")
	seq.CreateAttr("base", "gml:AbstractFeatureType")
	seq = seq.CreateElement("xsd:sequence")
	for _, a := range l.Attributes {
		el := seq.CreateElement("xsd:element")
		el.CreateAttr("name", a.Name)
		el.CreateAttr("type", "xsd:"+a.XSDType)
		el.CreateAttr("minOccurs", "0")
	}
	if l.GeometryColumn != "" {
		el := seq.CreateElement("xsd:element")
		el.CreateAttr("name", l.GeometryColumn)
		el.CreateAttr("type", "gml:GeometryPropertyType")
	}
	return doc
}

func (p *Portal) csw(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := r.URL.Query().Get("id")
	doc := etree.NewDocument()
	root := doc.CreateElement("csw:GetRecordByIdResponse")
	root.CreateAttr("xmlns:csw", "http://www.opengis.net/cat/csw/2.0.2")

	switch {
	case strings.HasPrefix(id, "md-"):
		root.CreateAttr("xmlns:gmd", "http://www.isotc211.org/2005/gmd")
		md := root.CreateElement("gmd:MD_Metadata")
		md.CreateElement("gmd:contentInfo").CreateElement("gmd:MD_FeatureCatalogueDescription").
			CreateElement("gmd:featureCatalogueCitation").CreateAttr("uuidref", "fc-"+strings.TrimPrefix(id, "md-"))
	case strings.HasPrefix(id, "fc-"):
		var l *Layer
		for _, c := range p.layers {
			if localName(c.Typename) == strings.TrimPrefix(id, "fc-") {
				l = c
			}
		}
		if l != nil {
			featureCatalogue(root, l)
		}
	}
	writeXML(w, doc)
}

func featureCatalogue(root *etree.Element, l *Layer) {
	root.CreateAttr("xmlns:gfc", "http://www.isotc211.org/2005/gfc")
	root.CreateAttr("xmlns:gco", "http://www.isotc211.org/2005/gco")
	ft := root.CreateElement("gfc:FC_FeatureCatalogue").CreateElement("gfc:featureType").CreateElement("gfc:FC_FeatureType")
	ft.CreateElement("gfc:typeName").CreateElement("gco:LocalName").SetText(localName(l.Typename))
	ft.CreateElement("gfc:definition").CreateElement("gco:CharacterString").SetText(l.Abstract)
	for _, a := range l.Attributes {
		fa := ft.CreateElement("gfc:carrierOfCharacteristics").CreateElement("gfc:FC_FeatureAttribute")
		fa.CreateElement("gfc:memberName").CreateElement("gco:LocalName").SetText(a.Name)
		fa.CreateElement("gfc:definition").CreateElement("gco:CharacterString").SetText(a.Definition)
		rng := fa.CreateElement("gfc:cardinality").CreateElement("gco:Multiplicity").
			CreateElement("gco:range").CreateElement("gco:MultiplicityRange")
		rng.CreateElement("gco:lower").CreateElement("gco:Integer").SetText(strconv.Itoa(a.Lower))
		rng.CreateElement("gco:upper").CreateElement("gco:UnlimitedInteger").SetText("1")

		labels := make([]string, 0, len(a.Values))
		for k := range a.Values {
			labels = append(labels, k)
		}
		sort.Strings(labels)
		for _, k := range labels {
			lv := fa.CreateElement("gfc:listedValue").CreateElement("gfc:FC_ListedValue")
			lv.CreateElement("gfc:label").CreateElement("gco:CharacterString").SetText(k)
			lv.CreateElement("gfc:definition").CreateElement("gco:CharacterString").SetText(a.Values[k])
		}
	}
}

func (p *Portal) sparqlQuery(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sparql == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/rdf+xml")
	_, _ = w.Write(p.sparql)
}

func (p *Portal) document(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	data, ok := p.docs[r.URL.Path]
	p.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/xml; charset=UTF-8")
	_, _ = w.Write(data)
}

// getFeature answers a WFS 2.0 GetFeature post. It honours startIndex and
// count, and a filter that is a single PropertyIsEqualTo or an And of them;
// other filters match every feature.
func (p *Portal) getFeature(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	req := etree.NewDocument()
	if err := req.ReadFromBytes(body); err != nil || req.Root() == nil {
		exceptionReport(w, http.StatusBadRequest, "malformed GetFeature")
		return
	}
	root := req.Root()
	q := root.FindElement("./Query")
	if q == nil {
		exceptionReport(w, http.StatusBadRequest, "GetFeature without Query")
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	l := p.layer(q.SelectAttrValue("typeNames", ""))
	if l == nil {
		exceptionReport(w, http.StatusBadRequest, "unknown type "+q.SelectAttrValue("typeNames", ""))
		return
	}

	var matched []Feature
	conds := equalities(q.FindElement("./Filter"))
	for _, f := range l.Features {
		if matches(f, conds) {
			matched = append(matched, f)
		}
	}

	start, _ := strconv.Atoi(root.SelectAttrValue("startIndex", "0"))
	count := len(matched)
	if c, err := strconv.Atoi(root.SelectAttrValue("count", "")); err == nil {
		count = c
	}
	if p.CountDefault > 0 && count > p.CountDefault {
		count = p.CountDefault
	}
	page := []Feature{}
	if start < len(matched) {
		page = matched[start:min(start+count, len(matched))]
	}

	doc := etree.NewDocument()
	fc := doc.CreateElement("wfs:FeatureCollection")
	fc.CreateAttr("xmlns:wfs", "http://www.opengis.net/wfs/2.0")
	fc.CreateAttr("xmlns:gml", gml.Namespace)
	prefix, _, _ := strings.Cut(l.Typename, ":")
	fc.CreateAttr("xmlns:"+prefix, l.Namespace)
	fc.CreateAttr("numberMatched", strconv.Itoa(len(matched)))
	fc.CreateAttr("numberReturned", strconv.Itoa(len(page)))
	for i, f := range page {
		el := fc.CreateElement("wfs:member").CreateElement(l.Typename)
		el.CreateAttr("gml:id", localName(l.Typename)+"."+strconv.Itoa(start+i))
		names := make([]string, 0, len(f.Attrs))
		for k := range f.Attrs {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			el.CreateElement(prefix + ":" + k).SetText(f.Attrs[k])
		}
		if f.Geom != nil && l.GeometryColumn != "" {
			g, err := gml.Encode(f.Geom, 31370, localName(l.Typename)+".geom."+strconv.Itoa(start+i))
			if err == nil {
				el.CreateElement(prefix + ":" + l.GeometryColumn).AddChild(g)
			}
		}
	}
	writeXML(w, doc)
}

type equality struct{ name, value string }

func equalities(filter *etree.Element) []equality {
	if filter == nil || len(filter.ChildElements()) != 1 {
		return nil
	}
	pred := filter.ChildElements()[0]
	leaves := []*etree.Element{pred}
	if pred.Tag == "And" {
		leaves = pred.ChildElements()
	}
	var out []equality
	for _, el := range leaves {
		if el.Tag != "PropertyIsEqualTo" {
			continue
		}
		ref, lit := el.FindElement("./ValueReference"), el.FindElement("./Literal")
		if ref == nil || lit == nil {
			continue
		}
		out = append(out, equality{name: ref.Text(), value: lit.Text()})
	}
	return out
}

func matches(f Feature, conds []equality) bool {
	for _, c := range conds {
		if f.Attrs[c.name] != c.value {
			return false
		}
	}
	return true
}
