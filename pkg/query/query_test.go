package query

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geodov/godov/pkg/doverr"
)

func xmlString(t *testing.T, el *etree.Element) string {
	t.Helper()
	doc := etree.NewDocument()
	doc.SetRoot(el)
	s, err := doc.WriteToString()
	require.NoError(t, err)
	return s
}

func TestComparison_Element(t *testing.T) {
	got := xmlString(t, PropertyIsEqualTo("gemeente", "Blankenberge").Element())
	assert.Equal(t, `<fes:PropertyIsEqualTo matchCase="true"><fes:ValueReference>gemeente</fes:ValueReference><fes:Literal>Blankenberge</fes:Literal></fes:PropertyIsEqualTo>`, got)

	got = xmlString(t, PropertyIsGreaterThan("datum_aanvang", time.Date(2010, 1, 2, 0, 0, 0, 0, time.UTC)).Element())
	assert.Contains(t, got, "<fes:Literal>2010-01-02</fes:Literal>")

	got = xmlString(t, PropertyIsBetween("diepte_tot_m", 10, 20.5).Element())
	assert.Contains(t, got, "<fes:LowerBoundary><fes:Literal>10</fes:Literal></fes:LowerBoundary>")
	assert.Contains(t, got, "<fes:UpperBoundary><fes:Literal>20.5</fes:Literal></fes:UpperBoundary>")

	got = xmlString(t, PropertyIsLike("boornummer", "GEO-04/%").Element())
	assert.Contains(t, got, `wildCard="%" singleChar="_" escapeChar="\"`)
}

func TestLogical_ElementAndValidate(t *testing.T) {
	f := And(PropertyIsEqualTo("a", "1"), Not(PropertyIsNull("b")))
	got := xmlString(t, f.Element())
	assert.True(t, strings.HasPrefix(got, "<fes:And><fes:PropertyIsEqualTo"))
	assert.Contains(t, got, "<fes:Not><fes:PropertyIsNull><fes:ValueReference>b</fes:ValueReference></fes:PropertyIsNull></fes:Not>")
	assert.NoError(t, Validate(f))

	err := Validate(Or(PropertyIsEqualTo("a", "1")))
	assert.True(t, errors.Is(err, doverr.ErrInvalidSearchParameter))
	assert.NoError(t, Validate(nil))
}

func TestMapPropertyNames(t *testing.T) {
	f := Or(PropertyIsEqualTo("pkey_boring", "x"), Not(PropertyIsLike("boornummer", "GEO%")))
	mapping := map[string]string{"pkey_boring": "fiche", "boornummer": "boornummer"}
	renamed, err := MapPropertyNames(f, func(n string) (string, error) {
		s, ok := mapping[n]
		if !ok {
			return "", doverr.InvalidField(n, "query field", nil)
		}
		return s, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"fiche", "boornummer"}, PropertyNames(renamed))
	assert.Equal(t, []string{"pkey_boring", "boornummer"}, PropertyNames(f), "original must be untouched")

	_, err = MapPropertyNames(PropertyIsNull("onbekend"), func(n string) (string, error) {
		return "", doverr.InvalidField(n, "query field", nil)
	})
	assert.True(t, errors.Is(err, doverr.ErrInvalidField))
}

func TestJoin(t *testing.T) {
	_, err := Join(nil, "pkey_boring")
	assert.True(t, errors.Is(err, doverr.ErrInvalidSearchParameter))

	f, err := Join([]string{"a"}, "pkey_boring")
	require.NoError(t, err)
	assert.IsType(t, Comparison{}, f)

	f, err = Join([]string{"a", "b", "a"}, "pkey_boring")
	require.NoError(t, err)
	l, ok := f.(Logical)
	require.True(t, ok)
	assert.Equal(t, "Or", l.Op)
	assert.Len(t, l.Operands, 2)
}

func TestSortBy_Element(t *testing.T) {
	s, err := SortBy{Asc("diepte_tot_m"), Desc("boornummer")}.Rename(func(n string) (string, error) {
		return strings.ToUpper(n), nil
	})
	require.NoError(t, err)
	got := xmlString(t, s.Element())
	assert.Equal(t, `<fes:SortBy><fes:SortProperty><fes:ValueReference>DIEPTE_TOT_M</fes:ValueReference><fes:SortOrder>ASC</fes:SortOrder></fes:SortProperty>`+
		`<fes:SortProperty><fes:ValueReference>BOORNUMMER</fes:ValueReference><fes:SortOrder>DESC</fes:SortOrder></fes:SortProperty></fes:SortBy>`, got)
}

func TestReturnFields_Validate(t *testing.T) {
	assert.NoError(t, ReturnFields(nil).Validate())
	assert.NoError(t, append(Fields("pkey_boring"), GeometryReturnField("geom", 4326)).Validate())

	for _, bad := range []ReturnFields{
		{},
		Fields("a", "a"),
		{GeometryReturnField("g1", 4326), GeometryReturnField("g2", 31370)},
		{GeometryReturnField("g", -1)},
	} {
		err := bad.Validate()
		assert.True(t, errors.Is(err, doverr.ErrInvalidSearchParameter), "%v", bad)
	}

	g, ok := ReturnFields{{Name: "x"}, GeometryReturnField("geom", 4326)}.Geometry()
	assert.True(t, ok)
	assert.Equal(t, 4326, g.EPSG)
	assert.Nil(t, ReturnFields(nil).Names())
}
