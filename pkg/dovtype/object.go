package dovtype

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/beevik/etree"

	"github.com/geodov/godov/pkg/doverr"
)

// Object is one in-flight search result: the parent's values plus the
// ordered subtype children parsed from its XML document.
type Object struct {
	Pkey     string
	Data     map[string]any
	Children []map[string]any
}

// FromWFSElement parses a single WFS feature (the element inside
// wfs:member) into an Object. ns is the layer's feature namespace; when
// empty, attributes are matched on local name only.
func (t *Type) FromWFSElement(feature *etree.Element, ns string) (*Object, error) {
	obj := &Object{Data: map[string]any{}}
	for _, f := range t.allFields(true, true) {
		obj.Data[f.Name] = nil
	}
	for _, f := range t.allFields(false, true) {
		if f.Source() != SourceWFS || f.SourceName == "" {
			continue
		}
		child := FindChild(feature, f.SourceName, ns)
		if child == nil {
			continue
		}
		var (
			v   any
			err error
		)
		if f.Type == Geometry {
			if g, gerr := ParseGeometry(child); g != nil {
				v = g
			} else {
				err = gerr
			}
		} else {
			v, err = f.Parse(child.Text())
		}
		if err != nil {
			return nil, doverr.Wrap(doverr.ErrWFSGetFeature, f.SourceName, err, "%s: field %s", t.def.Typename, f.Name)
		}
		obj.Data[f.Name] = v
	}
	if t.def.PostWFS != nil {
		if err := t.def.PostWFS(obj, feature, ns); err != nil {
			return nil, err
		}
	}
	pk, _ := obj.Data[t.PkeyField()].(string)
	if pk == "" {
		return nil, doverr.New(doverr.ErrWFSGetFeature, feature.Tag, "%s: feature without %s", t.def.Typename, t.PkeyField())
	}
	obj.Pkey = pk
	return obj, nil
}

// FindChild returns the first child of el with the given local name and
// namespace (any namespace when ns is empty).
func FindChild(el *etree.Element, local, ns string) *etree.Element {
	for _, c := range el.ChildElements() {
		if c.Tag == local && (ns == "" || c.NamespaceURI() == ns) {
			return c
		}
	}
	return nil
}

// ParseXML populates the XML-sourced, computed and subtype values of obj
// from the object's XML document. Values that fail to parse are left nil
// and reported together in the returned error, which wraps doverr.ErrXMLParse.
func (t *Type) ParseXML(data []byte, obj *Object) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return doverr.Wrap(doverr.ErrXMLParse, obj.Pkey, err, "parse %s", obj.Pkey)
	}
	root := doc.Root()
	if root == nil {
		return doverr.New(doverr.ErrXMLParse, obj.Pkey, "parse %s: empty document", obj.Pkey)
	}

	var errs []error
	for _, f := range t.def.Fields {
		switch f.Kind {
		case KindXML:
			v, err := xpathValue(root, f)
			if err != nil {
				errs = append(errs, err)
			}
			obj.Data[f.Name] = v
		case KindCustom:
			v, err := f.Compute(root)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", f.Name, err))
				v = nil
			}
			obj.Data[f.Name] = v
		}
	}

	obj.Children = nil
	if st := t.def.Subtype; st != nil {
		for _, el := range root.FindElements(st.RootPath) {
			child := make(map[string]any, len(st.Fields))
			for _, f := range st.Fields {
				v, err := xpathValue(el, f)
				if err != nil {
					errs = append(errs, err)
				}
				child[f.Name] = v
			}
			obj.Children = append(obj.Children, child)
		}
	}

	if len(errs) > 0 {
		return doverr.Wrap(doverr.ErrXMLParse, obj.Pkey, errors.Join(errs...), "parse %s", obj.Pkey)
	}
	return nil
}

// xpathValue evaluates f.XPath relative to el. Paths are written rooted
// ("/boring/diepte_van") and evaluated as "./boring/diepte_van".
func xpathValue(el *etree.Element, f Field) (any, error) {
	path := f.XPath
	if strings.HasPrefix(path, "/") {
		path = "." + path
	}
	p, err := etree.CompilePath(path)
	if err != nil {
		return nil, fmt.Errorf("%s: bad xpath %q: %w", f.Name, f.XPath, err)
	}
	found := el.FindElementPath(p)
	if found == nil {
		return nil, nil
	}
	if f.Type == Geometry {
		return ParseGeometry(found)
	}
	v, err := f.Parse(found.Text())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Name, err)
	}
	return v, nil
}

// ToRows flattens objs into rows holding the columns named in columns, in
// that order. When columns include a subtype field, an object with subtype
// children yields one row per child and one without yields a single row
// with the subtype columns nil. Otherwise every object yields one row.
func (t *Type) ToRows(objs []*Object, columns []string) [][]any {
	multiply := false
	if st := t.def.Subtype; st != nil {
		for _, f := range st.Fields {
			if slices.Contains(columns, f.Name) {
				multiply = true
				break
			}
		}
	}
	var rows [][]any
	for _, o := range objs {
		if !multiply || len(o.Children) == 0 {
			rows = append(rows, row(o.Data, nil, columns))
			continue
		}
		for _, c := range o.Children {
			rows = append(rows, row(o.Data, c, columns))
		}
	}
	return rows
}

func row(parent, child map[string]any, columns []string) []any {
	r := make([]any, len(columns))
	for i, c := range columns {
		if v, ok := child[c]; ok {
			r[i] = v
			continue
		}
		r[i] = parent[c]
	}
	return r
}
