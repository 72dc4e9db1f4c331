package dovtype

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/paulmach/orb"

	"github.com/geodov/godov/pkg/gml"
)

// Datatype is the closed set of column types a field can declare.
type Datatype string

const (
	String   Datatype = "string"
	Integer  Datatype = "integer"
	Float    Datatype = "float"
	Date     Datatype = "date"
	DateTime Datatype = "datetime"
	Boolean  Datatype = "boolean"
	Geometry Datatype = "geometry"
)

func (d Datatype) Valid() bool {
	switch d {
	case String, Integer, Float, Date, DateTime, Boolean, Geometry:
		return true
	}
	return false
}

// FromXSDType maps an XML schema type name (with or without prefix) as
// found in DescribeFeatureType responses to a Datatype.
func FromXSDType(t string) Datatype {
	local := t
	if i := strings.LastIndexByte(t, ':'); i >= 0 {
		local = t[i+1:]
	}
	switch local {
	case "int", "integer", "long", "short", "byte", "nonNegativeInteger", "positiveInteger":
		return Integer
	case "decimal", "double", "float":
		return Float
	case "date":
		return Date
	case "dateTime":
		return DateTime
	case "boolean":
		return Boolean
	}
	if strings.HasSuffix(local, "PropertyType") {
		return Geometry
	}
	return String
}

var datetimeLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// ParseValue converts raw text to the Go value of dt:
// string, int64, float64, bool or time.Time. Empty text is null (nil).
func ParseValue(raw string, dt Datatype) (any, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, nil
	}
	switch dt {
	case String:
		return text, nil
	case Integer:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse integer %q: %w", text, err)
		}
		return n, nil
	case Float:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("parse float %q: %w", text, err)
		}
		return f, nil
	case Boolean:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return nil, fmt.Errorf("parse boolean %q: %w", text, err)
		}
		return b, nil
	case Date:
		return parseDate(text)
	case DateTime:
		if i := strings.IndexByte(text, '.'); i >= 0 {
			text = text[:i]
		}
		for _, layout := range datetimeLayouts {
			if t, err := time.Parse(layout, text); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("parse datetime %q", raw)
	case Geometry:
		return nil, fmt.Errorf("geometry values are parsed from GML elements, not text")
	}
	return nil, fmt.Errorf("unknown datatype %q", dt)
}

// parseDate parses an ISO-8601 date. The WFS service serialises dates in UTC
// with a trailing Z, one day early; such values are shifted forward a day.
func parseDate(text string) (time.Time, error) {
	zulu := strings.HasSuffix(text, "Z")
	text = strings.TrimSuffix(text, "Z")
	if len(text) > 10 {
		text = text[:10]
	}
	d, err := time.Parse("2006-01-02", text)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", text, err)
	}
	if zulu {
		d = d.AddDate(0, 0, 1)
	}
	return d, nil
}

// ParseGeometry decodes the first GML geometry below el.
func ParseGeometry(el *etree.Element) (orb.Geometry, error) {
	if el == nil {
		return nil, nil
	}
	geoms, err := gml.FindGeometries(el)
	if err != nil {
		return nil, err
	}
	if len(geoms) == 0 {
		return nil, nil
	}
	g, _, err := gml.Decode(geoms[0])
	return g, err
}
