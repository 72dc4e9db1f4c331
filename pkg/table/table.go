// Package table holds a search result: a flat list of rows over labelled
// columns, each with a declared datatype.
package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"

	dt "github.com/geodov/godov/pkg/dovtype"
)

// Column is a labelled, typed column.
type Column struct {
	Name string
	Type dt.Datatype
}

// Table stores values row-major. A nil value is null; otherwise a value is
// string, int64, float64, time.Time, bool or orb.Geometry according to the
// column type.
type Table struct {
	columns []Column
	index   map[string]int
	rows    [][]any
}

func New(columns []Column) *Table {
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		idx[c.Name] = i
	}
	return &Table{columns: columns, index: idx}
}

// Append adds a row. The row length must equal the column count and every
// non-nil value must match its column type.
func (t *Table) Append(row []any) error {
	if len(row) != len(t.columns) {
		return fmt.Errorf("table: row has %d values, want %d", len(row), len(t.columns))
	}
	for i, v := range row {
		if !conforms(v, t.columns[i].Type) {
			return fmt.Errorf("table: column %s: value %v (%T) is not %s", t.columns[i].Name, v, v, t.columns[i].Type)
		}
	}
	t.rows = append(t.rows, row)
	return nil
}

func conforms(v any, typ dt.Datatype) bool {
	if v == nil {
		return true
	}
	switch typ {
	case dt.String:
		_, ok := v.(string)
		return ok
	case dt.Integer:
		_, ok := v.(int64)
		return ok
	case dt.Float:
		_, ok := v.(float64)
		return ok
	case dt.Date, dt.DateTime:
		_, ok := v.(time.Time)
		return ok
	case dt.Boolean:
		_, ok := v.(bool)
		return ok
	case dt.Geometry:
		_, ok := v.(orb.Geometry)
		return ok
	}
	return false
}

func (t *Table) Columns() []Column { return append([]Column(nil), t.columns...) }

func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

func (t *Table) Len() int { return len(t.rows) }

// Row returns the i-th row. The slice is shared with the table.
func (t *Table) Row(i int) []any { return t.rows[i] }

// Column returns a copy of the named column's values, or false when the
// table has no such column.
func (t *Table) Column(name string) ([]any, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	out := make([]any, len(t.rows))
	for r, row := range t.rows {
		out[r] = row[i]
	}
	return out, true
}

// Value returns the value at row r in the named column.
func (t *Table) Value(r int, name string) any {
	i, ok := t.index[name]
	if !ok || r < 0 || r >= len(t.rows) {
		return nil
	}
	return t.rows[r][i]
}

// WriteCSV writes a header line and one record per row. Nulls are empty,
// dates are ISO 8601 and geometries are WKT.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.ColumnNames()); err != nil {
		return err
	}
	rec := make([]string, len(t.columns))
	for _, row := range t.rows {
		for i, v := range row {
			rec[i] = format(v, t.columns[i].Type)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func format(v any, typ dt.Datatype) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if typ == dt.Date {
			return x.Format(time.DateOnly)
		}
		return x.Format("2006-01-02T15:04:05")
	case orb.Geometry:
		return wkt.MarshalString(x)
	}
	return fmt.Sprint(v)
}

// FeatureCollection exports the table as GeoJSON. The first geometry column
// becomes each feature's geometry; the other columns are properties.
func (t *Table) FeatureCollection() *geojson.FeatureCollection {
	geomCol := -1
	for i, c := range t.columns {
		if c.Type == dt.Geometry {
			geomCol = i
			break
		}
	}
	fc := geojson.NewFeatureCollection()
	for _, row := range t.rows {
		var g orb.Geometry
		if geomCol >= 0 {
			g, _ = row[geomCol].(orb.Geometry)
		}
		f := geojson.NewFeature(g)
		for i, v := range row {
			if i == geomCol {
				continue
			}
			switch x := v.(type) {
			case time.Time:
				f.Properties[t.columns[i].Name] = format(x, t.columns[i].Type)
			case orb.Geometry:
				f.Properties[t.columns[i].Name] = wkt.MarshalString(x)
			default:
				f.Properties[t.columns[i].Name] = v
			}
		}
		fc.Append(f)
	}
	return fc
}
