package dovtype

import (
	"github.com/beevik/etree"
)

// Kind distinguishes the field variants.
type Kind int

const (
	KindWFS Kind = iota
	KindXML
	KindCustom
	KindWFSInjected
)

func (k Kind) String() string {
	switch k {
	case KindWFS:
		return "wfs"
	case KindXML:
		return "xml"
	case KindCustom:
		return "custom"
	case KindWFSInjected:
		return "wfs_injected"
	}
	return "unknown"
}

// Source is the category used to filter fields.
type Source string

const (
	SourceWFS    Source = "wfs"
	SourceXML    Source = "xml"
	SourceCustom Source = "custom"
)

// XSDType points at an enumerated simpleType in one of the type's XSD schemas.
type XSDType struct {
	Schema   string
	TypeName string
}

// Codelist names a SKOS concept scheme resolved through the SPARQL endpoint.
type Codelist struct {
	Scheme string
}

// ComputeFunc derives a value from the root element of an object's XML document.
type ComputeFunc func(root *etree.Element) (any, error)

// Field describes one output column of a type.
type Field struct {
	Name       string
	Kind       Kind
	SourceName string // WFS attribute name, for WFS kinds
	XPath      string // relative to the document root or the subtype element
	Type       Datatype
	Definition string
	NotNull    bool
	XSD        *XSDType
	Codelist   *Codelist
	Compute    ComputeFunc
}

type FieldOption func(*Field)

func WithDefinition(def string) FieldOption {
	return func(f *Field) { f.Definition = def }
}

func NotNull() FieldOption {
	return func(f *Field) { f.NotNull = true }
}

func WithXSD(schema, typeName string) FieldOption {
	return func(f *Field) { f.XSD = &XSDType{Schema: schema, TypeName: typeName} }
}

func WithCodelist(scheme string) FieldOption {
	return func(f *Field) { f.Codelist = &Codelist{Scheme: scheme} }
}

func WFSField(name, source string, dt Datatype, opts ...FieldOption) Field {
	return apply(Field{Name: name, Kind: KindWFS, SourceName: source, Type: dt}, opts)
}

func XMLField(name, xpath string, dt Datatype, opts ...FieldOption) Field {
	return apply(Field{Name: name, Kind: KindXML, XPath: xpath, Type: dt}, opts)
}

func CustomField(name string, dt Datatype, fn ComputeFunc, opts ...FieldOption) Field {
	return apply(Field{Name: name, Kind: KindCustom, Type: dt, Compute: fn}, opts)
}

func WFSInjectedField(name string, dt Datatype, opts ...FieldOption) Field {
	return apply(Field{Name: name, Kind: KindWFSInjected, SourceName: name, Type: dt}, opts)
}

func apply(f Field, opts []FieldOption) Field {
	for _, o := range opts {
		o(&f)
	}
	return f
}

func (f Field) Source() Source {
	switch f.Kind {
	case KindXML:
		return SourceXML
	case KindCustom:
		return SourceCustom
	default:
		return SourceWFS
	}
}

// Cost is 1 for fields available from WFS and 10 for fields needing the
// per-object XML document.
func (f Field) Cost() int {
	if f.Source() == SourceWFS {
		return 1
	}
	return 10
}

// Parse converts raw text to the field's datatype.
func (f Field) Parse(raw string) (any, error) {
	return ParseValue(raw, f.Type)
}

// FieldMetadata is the resolved, enriched description of a field.
type FieldMetadata struct {
	Name       string            `json:"name"`
	Definition string            `json:"definition"`
	Type       Datatype          `json:"type"`
	NotNull    bool              `json:"notnull"`
	Query      bool              `json:"query"`
	Cost       int               `json:"cost"`
	Values     map[string]string `json:"values,omitempty"`
}
