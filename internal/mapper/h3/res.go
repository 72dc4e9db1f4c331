package h3mapper

import (
	"fmt"

	"github.com/paulmach/orb"
	h3 "github.com/uber/h3-go/v4"
)

// ParseCell parses the hex form of an H3 index.
func ParseCell(s string) (h3.Cell, error) {
	var c h3.Cell
	if err := c.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("parse cell: %w", err)
	}
	if !c.IsValid() {
		return 0, fmt.Errorf("invalid h3 cell %q", s)
	}
	return c, nil
}

// CellPolygon returns the closed lon/lat boundary of c.
func (m *Mapper) CellPolygon(c h3.Cell) (orb.Polygon, error) {
	if !c.IsValid() {
		return nil, fmt.Errorf("invalid h3 cell %s", c)
	}
	b, err := c.Boundary()
	if err != nil {
		return nil, fmt.Errorf("h3 boundary: %w", err)
	}
	ring := make(orb.Ring, 0, len(b)+1)
	for _, ll := range b {
		ring = append(ring, orb.Point{ll.Lng, ll.Lat})
	}
	if len(ring) > 0 {
		ring = append(ring, ring[0])
	}
	return orb.Polygon{ring}, nil
}

// ToParent returns the ancestor of c at parentRes.
func (m *Mapper) ToParent(c h3.Cell, parentRes int) (h3.Cell, error) {
	if err := validateRes(parentRes); err != nil {
		return 0, err
	}
	cur := c.Resolution()
	if parentRes > cur {
		return 0, fmt.Errorf("parentRes %d must be <= cell resolution %d", parentRes, cur)
	}
	if parentRes == cur {
		return c, nil
	}
	p, err := c.Parent(parentRes)
	if err != nil {
		return 0, fmt.Errorf("h3 parent: %w", err)
	}
	return p, nil
}
