package query

import (
	"github.com/beevik/etree"

	"github.com/geodov/godov/pkg/doverr"
)

// Logical combines two or more filters with And or Or.
type Logical struct {
	Op       string // And or Or
	Operands []Filter
}

func And(ops ...Filter) Logical { return Logical{Op: "And", Operands: ops} }
func Or(ops ...Filter) Logical  { return Logical{Op: "Or", Operands: ops} }

func (l Logical) Element() *etree.Element {
	el := fes(l.Op)
	for _, o := range l.Operands {
		el.AddChild(o.Element())
	}
	return el
}

func (l Logical) properties() []string {
	var out []string
	for _, o := range l.Operands {
		out = append(out, o.properties()...)
	}
	return out
}

func (l Logical) rename(fn func(string) (string, error)) (Filter, error) {
	ops := make([]Filter, len(l.Operands))
	for i, o := range l.Operands {
		r, err := o.rename(fn)
		if err != nil {
			return nil, err
		}
		ops[i] = r
	}
	return Logical{Op: l.Op, Operands: ops}, nil
}

func (l Logical) validate() error {
	if len(l.Operands) < 2 {
		return doverr.New(doverr.ErrInvalidSearchParameter, l.Op, "%s needs at least two operands, got %d", l.Op, len(l.Operands))
	}
	for _, o := range l.Operands {
		if o == nil {
			return doverr.New(doverr.ErrInvalidSearchParameter, l.Op, "%s with nil operand", l.Op)
		}
		if err := o.validate(); err != nil {
			return err
		}
	}
	return nil
}

// Negation inverts a filter.
type Negation struct {
	Operand Filter
}

func Not(f Filter) Negation { return Negation{Operand: f} }

func (n Negation) Element() *etree.Element {
	el := fes("Not")
	el.AddChild(n.Operand.Element())
	return el
}

func (n Negation) properties() []string { return n.Operand.properties() }

func (n Negation) rename(fn func(string) (string, error)) (Filter, error) {
	r, err := n.Operand.rename(fn)
	if err != nil {
		return nil, err
	}
	return Negation{Operand: r}, nil
}

func (n Negation) validate() error {
	if n.Operand == nil {
		return doverr.New(doverr.ErrInvalidSearchParameter, "Not", "Not without operand")
	}
	return n.Operand.validate()
}

// Validate checks the shape of f. It is called before any request is made.
func Validate(f Filter) error {
	if f == nil {
		return nil
	}
	return f.validate()
}

// PropertyNames lists every property name referenced in f, in tree order.
func PropertyNames(f Filter) []string {
	if f == nil {
		return nil
	}
	return f.properties()
}

// MapPropertyNames returns a copy of f with every property name replaced by
// fn(name). The first error from fn aborts the walk.
func MapPropertyNames(f Filter, fn func(string) (string, error)) (Filter, error) {
	if f == nil {
		return nil, nil
	}
	return f.rename(fn)
}

// Join builds a filter matching any of values on field: the bare equality
// for a single value, an Or over all values otherwise. Duplicates are
// dropped, keeping first occurrence order.
func Join(values []string, field string) (Filter, error) {
	seen := map[string]bool{}
	var ops []Filter
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		ops = append(ops, PropertyIsEqualTo(field, v))
	}
	switch len(ops) {
	case 0:
		return nil, doverr.New(doverr.ErrInvalidSearchParameter, values, "cannot join an empty list of values on %s", field)
	case 1:
		return ops[0], nil
	}
	return Or(ops...), nil
}
