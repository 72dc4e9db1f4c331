package dovtype

import (
	"fmt"
	"slices"
	"strings"

	"github.com/beevik/etree"

	"github.com/geodov/godov/pkg/doverr"
)

// Subtype is a repeated child element of an object's XML document. Each
// child yields one output row that repeats the parent's columns.
type Subtype struct {
	Name     string
	RootPath string // e.g. ".//boring/details/boormethode"
	Fields   []Field
}

// Definition is the declarative input to New.
type Definition struct {
	// Name is the object family, e.g. "boring"; the first field must be pkey_<Name>.
	Name      string
	Typename  string // qualified WFS layer name, e.g. "dov-pub:Boringen"
	Namespace string // WFS feature namespace URI
	Fields    []Field
	Subtype   *Subtype
	// Requires lists WFS attributes that are always requested even though
	// no field maps to them; PostWFS reads them from the raw feature.
	Requires []string
	// PostWFS adjusts an object after its WFS fields were parsed, for
	// families whose keys are derived from several WFS columns.
	PostWFS func(obj *Object, feature *etree.Element, ns string) error
}

// Type is an immutable object family description. Derived types are created
// with WithSubtype and WithInjected.
type Type struct {
	def      Definition
	injected []Field
}

// New validates def and returns the type.
func New(def Definition) (*Type, error) {
	if def.Name == "" || def.Typename == "" {
		return nil, fmt.Errorf("dovtype: name and typename are required")
	}
	if len(def.Fields) == 0 || def.Fields[0].Name != "pkey_"+def.Name {
		return nil, fmt.Errorf("dovtype %s: first field must be pkey_%s", def.Name, def.Name)
	}
	seen := map[string]bool{}
	check := func(f Field) error {
		if seen[f.Name] {
			return fmt.Errorf("dovtype %s: duplicate field %q", def.Name, f.Name)
		}
		seen[f.Name] = true
		if !f.Type.Valid() {
			return fmt.Errorf("dovtype %s: field %q has invalid datatype %q", def.Name, f.Name, f.Type)
		}
		if f.Kind == KindCustom && f.Compute == nil {
			return fmt.Errorf("dovtype %s: custom field %q has no compute function", def.Name, f.Name)
		}
		return nil
	}
	for _, f := range def.Fields {
		if err := check(f); err != nil {
			return nil, err
		}
	}
	if st := def.Subtype; st != nil {
		for _, f := range st.Fields {
			if f.Kind != KindXML {
				return nil, fmt.Errorf("dovtype %s: subtype field %q must be xml-sourced", def.Name, f.Name)
			}
			if err := check(f); err != nil {
				return nil, err
			}
		}
	}
	def.Fields = slices.Clone(def.Fields)
	return &Type{def: def}, nil
}

// MustNew is New for package-level definitions.
func MustNew(def Definition) *Type {
	t, err := New(def)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Type) Name() string       { return t.def.Name }
func (t *Type) Typename() string   { return t.def.Typename }
func (t *Type) Namespace() string  { return t.def.Namespace }
func (t *Type) Subtype() *Subtype  { return t.def.Subtype }
func (t *Type) PkeyField() string  { return t.def.Fields[0].Name }
func (t *Type) Requires() []string { return slices.Clone(t.def.Requires) }

// WithSubtype returns a copy of t with st attached in place of any
// existing subtype. A nil st removes the subtype.
func (t *Type) WithSubtype(st *Subtype) (*Type, error) {
	def := t.def
	def.Subtype = st
	nt, err := New(def)
	if err != nil {
		return nil, err
	}
	nt.injected = t.injected
	return nt, nil
}

// WithInjected returns a copy of t carrying the given runtime-discovered
// WFS fields. Fields whose name is already declared are ignored.
func (t *Type) WithInjected(fields []Field) *Type {
	known := map[string]bool{}
	for _, f := range t.allFields(true, false) {
		known[f.Name] = true
	}
	nt := &Type{def: t.def}
	for _, f := range fields {
		if known[f.Name] {
			continue
		}
		f.Kind = KindWFSInjected
		if f.SourceName == "" {
			f.SourceName = f.Name
		}
		known[f.Name] = true
		nt.injected = append(nt.injected, f)
	}
	return nt
}

func (t *Type) allFields(includeSubtypes, includeInjected bool) []Field {
	out := slices.Clone(t.def.Fields)
	if includeSubtypes && t.def.Subtype != nil {
		out = append(out, t.def.Subtype.Fields...)
	}
	if includeInjected {
		out = append(out, t.injected...)
	}
	return out
}

// Declared returns the fields in documented order: type fields, subtype
// fields, then injected fields.
func (t *Type) Declared() []Field {
	return t.allFields(true, true)
}

// Field looks up a field by name across type, subtype and injected fields.
func (t *Type) Field(name string) (Field, bool) {
	for _, f := range t.allFields(true, true) {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldNames returns the documented-order field names. With returnFields
// set, the result is restricted to those names (still in documented order)
// and unknown names are rejected.
func (t *Type) FieldNames(returnFields []string, includeSubtypes, includeInjected bool) ([]string, error) {
	fields := t.allFields(includeSubtypes, includeInjected)
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}
	if returnFields == nil {
		return names, nil
	}
	want := map[string]bool{}
	for _, rf := range returnFields {
		if !slices.Contains(names, rf) {
			return nil, doverr.InvalidField(rf, "return field", names)
		}
		want[rf] = true
	}
	out := make([]string, 0, len(want))
	for _, n := range names {
		if want[n] {
			out = append(out, n)
		}
	}
	return out, nil
}

// Fields returns the fields whose source is one of sources (all when none
// are given), keyed by name. Subtype and injected fields are included.
func (t *Type) Fields(sources ...Source) map[string]Field {
	out := map[string]Field{}
	for _, f := range t.allFields(true, true) {
		if len(sources) == 0 || slices.Contains(sources, f.Source()) {
			out[f.Name] = f
		}
	}
	return out
}

// XSDSchemas lists the distinct schema URLs referenced by XML fields.
func (t *Type) XSDSchemas() []string {
	var out []string
	for _, f := range t.allFields(true, false) {
		if f.XSD != nil && !slices.Contains(out, f.XSD.Schema) {
			out = append(out, f.XSD.Schema)
		}
	}
	return out
}

// NeedsXML reports whether any of names requires the per-object XML document.
func (t *Type) NeedsXML(names []string) bool {
	for _, n := range names {
		if f, ok := t.Field(n); ok && f.Source() != SourceWFS {
			return true
		}
	}
	return false
}

func (t *Type) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)", t.def.Name, t.def.Typename)
	if t.def.Subtype != nil {
		fmt.Fprintf(&b, " subtype %s", t.def.Subtype.Name)
	}
	return b.String()
}
