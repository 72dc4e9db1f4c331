package location

import (
	"github.com/paulmach/orb"

	h3mapper "github.com/geodov/godov/internal/mapper/h3"
	"github.com/geodov/godov/pkg/doverr"
)

// H3Cover covers a lon/lat (EPSG:4326) polygon, multipolygon or bound with
// H3 cells at res and yields each cell's hexagon as a geometry. Combined
// with FromSource it splits a large area into evenly sized parts.
func H3Cover(area orb.Geometry, res int) Source {
	return SourceFunc(func() ([]Geometry, error) {
		m := h3mapper.New()
		cells, err := m.CellsForGeometry(area, res)
		if err != nil {
			return nil, doverr.Wrap(doverr.ErrInvalidSearchParameter, res, err, "h3 cover")
		}
		out := make([]Geometry, 0, len(cells))
		for _, c := range cells {
			poly, err := m.CellPolygon(c)
			if err != nil {
				return nil, err
			}
			out = append(out, OrbGeometry{Geometry: poly, EPSG: 4326})
		}
		return out, nil
	})
}
