package location

import (
	"strconv"

	"github.com/beevik/etree"

	"github.com/geodov/godov/pkg/doverr"
)

// Kind is the fes element name of a spatial predicate.
type Kind string

const (
	KindWithin         Kind = "Within"
	KindWithinDistance Kind = "DWithin"
	KindIntersects     Kind = "Intersects"
	KindEquals         Kind = "Equals"
	KindDisjoint       Kind = "Disjoint"
	KindTouches        Kind = "Touches"
)

func (k Kind) valid() bool {
	switch k {
	case KindWithin, KindWithinDistance, KindIntersects, KindEquals, KindDisjoint, KindTouches:
		return true
	}
	return false
}

// Filter is a node of a location filter tree.
type Filter interface {
	// Element serialises the node. It fails with doverr.ErrProgramming when
	// a predicate's geometry column was never bound.
	Element() (*etree.Element, error)
	// WithGeometryColumn returns a copy of the node with every predicate
	// bound to column.
	WithGeometryColumn(column string) Filter
}

// Predicate is a leaf of the tree: a spatial relation with one geometry.
type Predicate struct {
	Kind     Kind
	Geometry Geometry
	Distance float64 // WithinDistance only
	Units    string  // WithinDistance only, default "meter"

	column string
}

func Within(g Geometry) Predicate     { return Predicate{Kind: KindWithin, Geometry: g} }
func Intersects(g Geometry) Predicate { return Predicate{Kind: KindIntersects, Geometry: g} }
func Equals(g Geometry) Predicate     { return Predicate{Kind: KindEquals, Geometry: g} }
func Disjoint(g Geometry) Predicate   { return Predicate{Kind: KindDisjoint, Geometry: g} }
func Touches(g Geometry) Predicate    { return Predicate{Kind: KindTouches, Geometry: g} }

// WithinDistance matches features within distance (in units, default
// meter) of g.
func WithinDistance(g Geometry, distance float64, units string) Predicate {
	return Predicate{Kind: KindWithinDistance, Geometry: g, Distance: distance, Units: units}
}

func (p Predicate) GeometryColumn() string { return p.column }

func (p Predicate) WithGeometryColumn(column string) Filter {
	p.column = column
	return p
}

func (p Predicate) Element() (*etree.Element, error) {
	if p.column == "" {
		return nil, doverr.New(doverr.ErrProgramming, p.Kind, "%s predicate serialised before its geometry column was bound", p.Kind)
	}
	if !p.Kind.valid() {
		return nil, doverr.New(doverr.ErrInvalidSearchParameter, p.Kind, "unknown spatial predicate %q", p.Kind)
	}
	if p.Geometry == nil {
		return nil, doverr.New(doverr.ErrInvalidSearchParameter, p.Kind, "%s predicate without geometry", p.Kind)
	}
	geom, err := p.Geometry.GML()
	if err != nil {
		return nil, err
	}
	el := etree.NewElement("fes:" + string(p.Kind))
	el.CreateElement("fes:ValueReference").SetText(p.column)
	el.AddChild(geom)
	if p.Kind == KindWithinDistance {
		if p.Distance < 0 {
			return nil, doverr.New(doverr.ErrInvalidSearchParameter, p.Distance, "negative distance")
		}
		units := p.Units
		if units == "" {
			units = "meter"
		}
		d := el.CreateElement("fes:Distance")
		d.CreateAttr("uom", units)
		d.SetText(strconv.FormatFloat(p.Distance, 'f', -1, 64))
	}
	return el, nil
}

// Logical combines two or more location filters.
type Logical struct {
	Op       string // And or Or
	Operands []Filter
}

func And(ops ...Filter) Logical { return Logical{Op: "And", Operands: ops} }
func Or(ops ...Filter) Logical  { return Logical{Op: "Or", Operands: ops} }

func (l Logical) WithGeometryColumn(column string) Filter {
	ops := make([]Filter, len(l.Operands))
	for i, o := range l.Operands {
		if o != nil {
			ops[i] = o.WithGeometryColumn(column)
		}
	}
	return Logical{Op: l.Op, Operands: ops}
}

func (l Logical) Element() (*etree.Element, error) {
	if len(l.Operands) < 2 {
		return nil, doverr.New(doverr.ErrInvalidSearchParameter, l.Op, "%s needs at least two operands, got %d", l.Op, len(l.Operands))
	}
	el := etree.NewElement("fes:" + l.Op)
	for _, o := range l.Operands {
		if o == nil {
			return nil, doverr.New(doverr.ErrInvalidSearchParameter, l.Op, "%s with nil operand", l.Op)
		}
		c, err := o.Element()
		if err != nil {
			return nil, err
		}
		el.AddChild(c)
	}
	return el, nil
}

// Negation inverts a location filter.
type Negation struct {
	Operand Filter
}

func Not(f Filter) Negation { return Negation{Operand: f} }

func (n Negation) WithGeometryColumn(column string) Filter {
	if n.Operand == nil {
		return n
	}
	return Negation{Operand: n.Operand.WithGeometryColumn(column)}
}

func (n Negation) Element() (*etree.Element, error) {
	if n.Operand == nil {
		return nil, doverr.New(doverr.ErrInvalidSearchParameter, "Not", "Not without operand")
	}
	c, err := n.Operand.Element()
	if err != nil {
		return nil, err
	}
	el := etree.NewElement("fes:Not")
	el.AddChild(c)
	return el, nil
}
