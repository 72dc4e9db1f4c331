package query

import (
	"github.com/beevik/etree"

	"github.com/geodov/godov/pkg/doverr"
)

// SortProperty orders results on one field.
type SortProperty struct {
	Name       string
	Descending bool
}

// SortBy is an ordered list of sort keys.
type SortBy []SortProperty

func Asc(name string) SortProperty  { return SortProperty{Name: name} }
func Desc(name string) SortProperty { return SortProperty{Name: name, Descending: true} }

func (s SortBy) Element() *etree.Element {
	el := fes("SortBy")
	for _, p := range s {
		sp := el.CreateElement("fes:SortProperty")
		valueReference(sp, p.Name)
		order := "ASC"
		if p.Descending {
			order = "DESC"
		}
		sp.CreateElement("fes:SortOrder").SetText(order)
	}
	return el
}

// Rename returns a copy of s with names replaced by fn(name).
func (s SortBy) Rename(fn func(string) (string, error)) (SortBy, error) {
	out := make(SortBy, len(s))
	for i, p := range s {
		n, err := fn(p.Name)
		if err != nil {
			return nil, err
		}
		out[i] = SortProperty{Name: n, Descending: p.Descending}
	}
	return out, nil
}

// ReturnField selects one output column. A non-zero EPSG requests a
// geometry column in that coordinate reference system.
type ReturnField struct {
	Name string
	EPSG int
}

// GeometryReturnField requests the geometry column name in EPSG:epsg.
func GeometryReturnField(name string, epsg int) ReturnField {
	return ReturnField{Name: name, EPSG: epsg}
}

func (r ReturnField) IsGeometry() bool { return r.EPSG != 0 }

// ReturnFields is the ordered output column selection. A nil list means
// all declared fields.
type ReturnFields []ReturnField

// Fields builds a ReturnFields of plain names.
func Fields(names ...string) ReturnFields {
	out := make(ReturnFields, len(names))
	for i, n := range names {
		out[i] = ReturnField{Name: n}
	}
	return out
}

func (r ReturnFields) Names() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r))
	for i, f := range r {
		out[i] = f.Name
	}
	return out
}

// Geometry returns the geometry return field, if any.
func (r ReturnFields) Geometry() (ReturnField, bool) {
	for _, f := range r {
		if f.IsGeometry() {
			return f, true
		}
	}
	return ReturnField{}, false
}

// Validate rejects empty selections, duplicate names, negative EPSG codes
// and more than one geometry return field.
func (r ReturnFields) Validate() error {
	if r == nil {
		return nil
	}
	if len(r) == 0 {
		return doverr.New(doverr.ErrInvalidSearchParameter, r, "return fields must not be empty")
	}
	seen := map[string]bool{}
	geoms := 0
	for _, f := range r {
		if f.Name == "" {
			return doverr.New(doverr.ErrInvalidSearchParameter, r, "return field without name")
		}
		if seen[f.Name] {
			return doverr.New(doverr.ErrInvalidSearchParameter, f.Name, "duplicate return field '%s'", f.Name)
		}
		seen[f.Name] = true
		if f.EPSG < 0 {
			return doverr.New(doverr.ErrInvalidSearchParameter, f.EPSG, "invalid EPSG code %d for '%s'", f.EPSG, f.Name)
		}
		if f.IsGeometry() {
			geoms++
		}
	}
	if geoms > 1 {
		return doverr.New(doverr.ErrInvalidSearchParameter, r, "at most one geometry return field is supported")
	}
	return nil
}
