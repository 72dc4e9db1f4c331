package ogc

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/geodov/godov/pkg/doverr"
)

func readDoc(data []byte) (*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, err
	}
	if doc.Root() == nil {
		return nil, doverr.New(doverr.ErrXMLParse, nil, "empty XML document")
	}
	return doc.Root(), nil
}

// local finds the first descendant (or self) with the given local tag.
func local(el *etree.Element, tag string) *etree.Element {
	if el == nil {
		return nil
	}
	if el.Tag == tag {
		return el
	}
	return el.FindElement(".//" + tag)
}

func locals(el *etree.Element, tag string) []*etree.Element {
	if el == nil {
		return nil
	}
	return el.FindElements(".//" + tag)
}

func childText(el *etree.Element, path string) string {
	if el == nil {
		return ""
	}
	if c := el.FindElement(path); c != nil {
		return strings.TrimSpace(c.Text())
	}
	return ""
}

// tail returns the last n bytes of data for error messages.
func tail(data []byte, n int) string {
	if len(data) > n {
		data = data[len(data)-n:]
	}
	return string(data)
}

// exception returns the text of an OWS exception report, if data is one.
func exception(root *etree.Element) (string, bool) {
	if root == nil || root.Tag != "ExceptionReport" {
		return "", false
	}
	var msgs []string
	for _, t := range locals(root, "ExceptionText") {
		msgs = append(msgs, strings.TrimSpace(t.Text()))
	}
	return strings.Join(msgs, "; "), true
}

// Layer is one FeatureType of the capabilities document.
type Layer struct {
	Name         string
	Title        string
	Abstract     string
	MetadataURLs []string
}

type Capabilities struct {
	// DefaultCount is the server page size (CountDefault); 0 when absent.
	DefaultCount int
	Layers       map[string]Layer
}

func (c *Capabilities) Layer(typename string) (Layer, error) {
	l, ok := c.Layers[typename]
	if !ok {
		return Layer{}, doverr.New(doverr.ErrLayerNotFound, typename, "layer %s not found in WFS capabilities", typename)
	}
	return l, nil
}

func ParseCapabilities(data []byte) (*Capabilities, error) {
	root, err := readDoc(data)
	if err != nil {
		return nil, doverr.Wrap(doverr.ErrXMLParse, nil, err, "parse WFS capabilities")
	}
	if msg, ok := exception(root); ok {
		return nil, doverr.New(doverr.ErrRemoteFetch, nil, "WFS capabilities exception: %s", msg)
	}
	caps := &Capabilities{Layers: map[string]Layer{}}
	for _, c := range locals(root, "Constraint") {
		if c.SelectAttrValue("name", "") != "CountDefault" {
			continue
		}
		if n, err := strconv.Atoi(childText(c, "./DefaultValue")); err == nil && n > 0 {
			caps.DefaultCount = n
		}
	}
	for _, ft := range locals(root, "FeatureType") {
		l := Layer{
			Name:     childText(ft, "./Name"),
			Title:    childText(ft, "./Title"),
			Abstract: childText(ft, "./Abstract"),
		}
		if l.Name == "" {
			continue
		}
		for _, m := range ft.SelectElements("MetadataURL") {
			if href := m.SelectAttrValue("xlink:href", m.SelectAttrValue("href", "")); href != "" {
				l.MetadataURLs = append(l.MetadataURLs, href)
			}
		}
		caps.Layers[l.Name] = l
	}
	return caps, nil
}

// SchemaField is one element of a DescribeFeatureType response.
type SchemaField struct {
	Name    string
	XSDType string // without prefix, e.g. int or MultiPointPropertyType
}

type Schema struct {
	TargetNamespace string
	Fields          []SchemaField
	GeometryColumn  string
}

func isGeometryType(t string) bool {
	return strings.HasSuffix(t, "PropertyType") && t != "PropertyType"
}

// ParseDescribeFeatureType reads the element list of the layer's complex
// type. The first geometry-typed element is the geometry column.
func ParseDescribeFeatureType(data []byte) (*Schema, error) {
	root, err := readDoc(data)
	if err != nil {
		return nil, doverr.Wrap(doverr.ErrXMLParse, nil, err, "parse DescribeFeatureType")
	}
	if msg, ok := exception(root); ok {
		return nil, doverr.New(doverr.ErrRemoteFetch, nil, "DescribeFeatureType exception: %s", msg)
	}
	s := &Schema{TargetNamespace: root.SelectAttrValue("targetNamespace", "")}
	for _, ct := range locals(root, "complexType") {
		for _, el := range locals(ct, "element") {
			name := el.SelectAttrValue("name", "")
			if name == "" {
				continue
			}
			typ := el.SelectAttrValue("type", "")
			if _, after, ok := strings.Cut(typ, ":"); ok {
				typ = after
			}
			s.Fields = append(s.Fields, SchemaField{Name: name, XSDType: typ})
			if s.GeometryColumn == "" && isGeometryType(typ) {
				s.GeometryColumn = name
			}
		}
	}
	if len(s.Fields) == 0 {
		return nil, doverr.New(doverr.ErrMetadataNotFound, nil, "DescribeFeatureType without elements")
	}
	return s, nil
}

// ParseFeatureCatalogueUUID extracts the feature catalogue reference from
// an ISO 19139 metadata record.
func ParseFeatureCatalogueUUID(data []byte) (string, error) {
	root, err := readDoc(data)
	if err != nil {
		return "", doverr.Wrap(doverr.ErrMetadataNotFound, nil, err, "parse ISO metadata")
	}
	if local(root, "MD_Metadata") == nil {
		return "", doverr.New(doverr.ErrMetadataNotFound, nil, "no MD_Metadata in metadata record")
	}
	for _, c := range locals(root, "featureCatalogueCitation") {
		if u := c.SelectAttrValue("uuidref", ""); u != "" {
			return u, nil
		}
	}
	return "", doverr.New(doverr.ErrFeatureCatalogueNotFound, nil, "metadata record has no feature catalogue reference")
}

// Unbounded marks an unlimited upper multiplicity.
const Unbounded = -1

// Attribute is one FC_FeatureAttribute.
type Attribute struct {
	Name       string
	Definition string
	Lower      int
	Upper      int // Unbounded when unlimited
	Values     map[string]string
}

// NotNull reports a mandatory attribute.
func (a Attribute) NotNull() bool { return a.Lower >= 1 }

type Catalogue struct {
	Definition string
	Attributes map[string]Attribute
}

// ParseFeatureCatalogue reads an ISO 19110 feature catalogue.
func ParseFeatureCatalogue(data []byte) (*Catalogue, error) {
	root, err := readDoc(data)
	if err != nil {
		return nil, doverr.Wrap(doverr.ErrMetadataNotFound, nil, err, "parse feature catalogue")
	}
	ft := local(root, "FC_FeatureType")
	if ft == nil {
		return nil, doverr.New(doverr.ErrFeatureCatalogueNotFound, nil, "no FC_FeatureType in feature catalogue")
	}
	cat := &Catalogue{
		Definition: childText(ft, "./definition/CharacterString"),
		Attributes: map[string]Attribute{},
	}
	for _, fa := range locals(ft, "FC_FeatureAttribute") {
		a := Attribute{
			Name:       childText(fa, "./memberName/LocalName"),
			Definition: childText(fa, "./definition/CharacterString"),
			Upper:      Unbounded,
		}
		if a.Name == "" {
			continue
		}
		if r := local(fa, "MultiplicityRange"); r != nil {
			if n, err := strconv.Atoi(childText(r, "./lower/Integer")); err == nil {
				a.Lower = n
			}
			up := r.FindElement("./upper/UnlimitedInteger")
			if up != nil && up.SelectAttrValue("isInfinite", "false") != "true" {
				if n, err := strconv.Atoi(strings.TrimSpace(up.Text())); err == nil {
					a.Upper = n
				}
			}
		}
		for _, lv := range locals(fa, "FC_ListedValue") {
			label := childText(lv, "./label/CharacterString")
			if label == "" {
				continue
			}
			if a.Values == nil {
				a.Values = map[string]string{}
			}
			a.Values[label] = childText(lv, "./definition/CharacterString")
		}
		cat.Attributes[a.Name] = a
	}
	return cat, nil
}

// ParseXSDEnumerations returns, per named simple type, its enumeration
// values mapped to their documentation.
func ParseXSDEnumerations(data []byte) (map[string]map[string]string, error) {
	root, err := readDoc(data)
	if err != nil {
		return nil, doverr.Wrap(doverr.ErrXSDFetch, nil, err, "parse XSD")
	}
	out := map[string]map[string]string{}
	for _, st := range locals(root, "simpleType") {
		name := st.SelectAttrValue("name", "")
		if name == "" {
			continue
		}
		values := map[string]string{}
		for _, e := range locals(st, "enumeration") {
			v := e.SelectAttrValue("value", "")
			values[v] = childText(e, "./annotation/documentation")
		}
		if len(values) > 0 {
			out[name] = values
		}
	}
	return out, nil
}

// SPARQLCodelistQuery selects the notations and labels of a SKOS scheme.
func SPARQLCodelistQuery(scheme string) string {
	return `PREFIX skos: <http://www.w3.org/2004/02/skos/core#>
CONSTRUCT { ?c skos:notation ?notation ; skos:prefLabel ?label }
WHERE {
  ?c skos:inScheme <` + scheme + `> ;
     skos:notation ?notation ;
     skos:prefLabel ?label .
}`
}

// ParseSPARQLCodelist maps skos:notation to skos:prefLabel for every
// resource description of an RDF/XML response.
func ParseSPARQLCodelist(data []byte) (map[string]string, error) {
	root, err := readDoc(data)
	if err != nil {
		return nil, doverr.Wrap(doverr.ErrXMLParse, nil, err, "parse SPARQL response")
	}
	out := map[string]string{}
	for _, d := range locals(root, "Description") {
		notation := childText(d, "./notation")
		if notation == "" {
			continue
		}
		out[notation] = childText(d, "./prefLabel")
	}
	return out, nil
}

// FeatureCollection is one parsed GetFeature page.
type FeatureCollection struct {
	// NumberMatched is -1 when the server reports "unknown".
	NumberMatched  int
	NumberReturned int
	Members        []*etree.Element
	// Namespace is the namespace of the feature elements.
	Namespace string
}

// ParseFeatureCollection reads a WFS 2.0 (or 1.1 numberOfFeatures)
// feature collection. A missing count is a WFS error carrying the tail of
// the response.
func ParseFeatureCollection(data []byte) (*FeatureCollection, error) {
	root, err := readDoc(data)
	if err != nil {
		return nil, doverr.Wrap(doverr.ErrWFSGetFeature, tail(data, 500), err, "parse GetFeature response")
	}
	if msg, ok := exception(root); ok {
		return nil, doverr.New(doverr.ErrWFSGetFeature, tail(data, 500), "GetFeature exception: %s", msg)
	}
	returned := root.SelectAttrValue("numberReturned", root.SelectAttrValue("numberOfFeatures", ""))
	n, err := strconv.Atoi(returned)
	if err != nil {
		return nil, doverr.New(doverr.ErrWFSGetFeature, tail(data, 500),
			"GetFeature response without feature count: %s", tail(data, 500))
	}
	fc := &FeatureCollection{NumberReturned: n, NumberMatched: -1}
	if m, err := strconv.Atoi(root.SelectAttrValue("numberMatched", "")); err == nil {
		fc.NumberMatched = m
	}
	for _, member := range root.ChildElements() {
		if member.Tag != "member" && member.Tag != "featureMember" {
			continue
		}
		for _, f := range member.ChildElements() {
			fc.Members = append(fc.Members, f)
			if fc.Namespace == "" {
				fc.Namespace = f.NamespaceURI()
			}
		}
	}
	return fc, nil
}
