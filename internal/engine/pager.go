package engine

import (
	"context"

	"github.com/beevik/etree"

	"github.com/geodov/godov/internal/core/ogc"
	"github.com/geodov/godov/pkg/doverr"
)

// pageSize is min(server default, remaining max features).
func pageSize(serverDefault, maxFeatures, total int) int {
	size := serverDefault
	if size <= 0 {
		size = FeatureOverflowLimit
	}
	if maxFeatures > 0 && maxFeatures-total < size {
		size = maxFeatures - total
	}
	return size
}

// fetchFeatures pages through GetFeature and returns the feature members
// in server order.
func (e *Engine) fetchFeatures(ctx context.Context, p *plan, req Request) ([]*etree.Element, error) {
	gf := ogc.GetFeatureRequest{
		Typename:       p.typ.Typename(),
		Namespace:      p.layer.Namespace,
		GeometryColumn: p.layer.GeometryColumn,
		Location:       req.Location,
		Filter:         p.filter,
		SortBy:         p.sortBy,
		PropertyNames:  p.props,
		CRS:            p.crs,
	}

	e.hooks.WFSSearchInit(ctx, gf.Typename)

	var members []*etree.Element
	total := 0
	for {
		count := pageSize(p.layer.DefaultCount, req.MaxFeatures, total)
		gf.StartIndex = total
		gf.MaxFeatures = count
		body, err := gf.Build()
		if err != nil {
			return nil, err
		}
		resp, err := e.getFeature(ctx, body)
		if err != nil {
			return nil, err
		}
		fc, err := ogc.ParseFeatureCollection(resp)
		if err != nil {
			return nil, err
		}
		members = append(members, fc.Members...)
		total += fc.NumberReturned
		e.log.DebugContext(ctx, "wfs page", "start_index", gf.StartIndex, "count", count,
			"returned", fc.NumberReturned, "matched", fc.NumberMatched)

		done := (req.MaxFeatures > 0 && total >= req.MaxFeatures) ||
			fc.NumberReturned == 0 || fc.NumberReturned < count ||
			(fc.NumberMatched >= 0 && total >= fc.NumberMatched) ||
			total >= FeatureOverflowLimit
		if done {
			break
		}
	}

	if total == FeatureOverflowLimit && (req.MaxFeatures == 0 || req.MaxFeatures > FeatureOverflowLimit) {
		return nil, doverr.New(doverr.ErrFeatureOverflow, total,
			"reached the limit of %d returned features, please split up your query to ensure less than %d features are returned",
			FeatureOverflowLimit, FeatureOverflowLimit)
	}

	e.hooks.WFSSearchResult(ctx, gf.Typename, total)
	return members, nil
}
