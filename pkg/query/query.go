// Package query holds the OGC Filter Encoding 2.0 attribute filter tree,
// sort order and return-field selection accepted by a search.
package query

import (
	"fmt"
	"strconv"
	"time"

	"github.com/beevik/etree"

	"github.com/geodov/godov/pkg/doverr"
)

// FESNamespace is the OGC Filter Encoding 2.0 namespace, bound to the fes prefix.
const FESNamespace = "http://www.opengis.net/fes/2.0"

// Filter is a node of an attribute filter tree.
type Filter interface {
	// Element serialises the node as a fes-prefixed element.
	Element() *etree.Element
	properties() []string
	rename(fn func(string) (string, error)) (Filter, error)
	validate() error
}

func fes(tag string) *etree.Element {
	return etree.NewElement("fes:" + tag)
}

func valueReference(parent *etree.Element, name string) {
	parent.CreateElement("fes:ValueReference").SetText(name)
}

// Literal formats v the way the WFS server expects literals.
func Literal(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format("2006-01-02T15:04:05")
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(x)
	}
	return fmt.Sprint(v)
}

// Comparison is a binary comparison of a property with a literal.
type Comparison struct {
	Op        string // fes element name, e.g. PropertyIsEqualTo
	Property  string
	Literal   any
	MatchCase bool
}

func comparison(op, prop string, v any) Comparison {
	return Comparison{Op: op, Property: prop, Literal: v, MatchCase: true}
}

func PropertyIsEqualTo(prop string, v any) Comparison {
	return comparison("PropertyIsEqualTo", prop, v)
}

func PropertyIsNotEqualTo(prop string, v any) Comparison {
	return comparison("PropertyIsNotEqualTo", prop, v)
}

func PropertyIsLessThan(prop string, v any) Comparison {
	return comparison("PropertyIsLessThan", prop, v)
}

func PropertyIsLessThanOrEqualTo(prop string, v any) Comparison {
	return comparison("PropertyIsLessThanOrEqualTo", prop, v)
}

func PropertyIsGreaterThan(prop string, v any) Comparison {
	return comparison("PropertyIsGreaterThan", prop, v)
}

func PropertyIsGreaterThanOrEqualTo(prop string, v any) Comparison {
	return comparison("PropertyIsGreaterThanOrEqualTo", prop, v)
}

func (c Comparison) Element() *etree.Element {
	el := fes(c.Op)
	el.CreateAttr("matchCase", strconv.FormatBool(c.MatchCase))
	valueReference(el, c.Property)
	el.CreateElement("fes:Literal").SetText(Literal(c.Literal))
	return el
}

func (c Comparison) properties() []string { return []string{c.Property} }

func (c Comparison) rename(fn func(string) (string, error)) (Filter, error) {
	p, err := fn(c.Property)
	c.Property = p
	return c, err
}

func (c Comparison) validate() error {
	if c.Property == "" {
		return doverr.New(doverr.ErrInvalidSearchParameter, c.Op, "%s without property name", c.Op)
	}
	return nil
}

// Like matches a property against a pattern with % as wildcard, _ as
// single character and \ as escape.
type Like struct {
	Property  string
	Pattern   string
	MatchCase bool
}

func PropertyIsLike(prop, pattern string) Like {
	return Like{Property: prop, Pattern: pattern, MatchCase: true}
}

func (l Like) Element() *etree.Element {
	el := fes("PropertyIsLike")
	el.CreateAttr("wildCard", "%")
	el.CreateAttr("singleChar", "_")
	el.CreateAttr("escapeChar", "\\")
	el.CreateAttr("matchCase", strconv.FormatBool(l.MatchCase))
	valueReference(el, l.Property)
	el.CreateElement("fes:Literal").SetText(l.Pattern)
	return el
}

func (l Like) properties() []string { return []string{l.Property} }

func (l Like) rename(fn func(string) (string, error)) (Filter, error) {
	p, err := fn(l.Property)
	l.Property = p
	return l, err
}

func (l Like) validate() error {
	if l.Property == "" {
		return doverr.New(doverr.ErrInvalidSearchParameter, "PropertyIsLike", "PropertyIsLike without property name")
	}
	return nil
}

// Null matches features where the property has no value.
type Null struct {
	Property string
}

func PropertyIsNull(prop string) Null { return Null{Property: prop} }

func (n Null) Element() *etree.Element {
	el := fes("PropertyIsNull")
	valueReference(el, n.Property)
	return el
}

func (n Null) properties() []string { return []string{n.Property} }

func (n Null) rename(fn func(string) (string, error)) (Filter, error) {
	p, err := fn(n.Property)
	n.Property = p
	return n, err
}

func (n Null) validate() error {
	if n.Property == "" {
		return doverr.New(doverr.ErrInvalidSearchParameter, "PropertyIsNull", "PropertyIsNull without property name")
	}
	return nil
}

// Between matches lower <= property <= upper.
type Between struct {
	Property     string
	Lower, Upper any
}

func PropertyIsBetween(prop string, lower, upper any) Between {
	return Between{Property: prop, Lower: lower, Upper: upper}
}

func (b Between) Element() *etree.Element {
	el := fes("PropertyIsBetween")
	valueReference(el, b.Property)
	el.CreateElement("fes:LowerBoundary").CreateElement("fes:Literal").SetText(Literal(b.Lower))
	el.CreateElement("fes:UpperBoundary").CreateElement("fes:Literal").SetText(Literal(b.Upper))
	return el
}

func (b Between) properties() []string { return []string{b.Property} }

func (b Between) rename(fn func(string) (string, error)) (Filter, error) {
	p, err := fn(b.Property)
	b.Property = p
	return b, err
}

func (b Between) validate() error {
	if b.Property == "" {
		return doverr.New(doverr.ErrInvalidSearchParameter, "PropertyIsBetween", "PropertyIsBetween without property name")
	}
	return nil
}
