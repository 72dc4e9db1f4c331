package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/geodov/godov/pkg/location"
	"github.com/geodov/godov/pkg/query"
)

// parseQuery turns "a=1,b=x" into the conjunction of equalities. Numeric
// literals stay strings; the service compares them by field type.
func parseQuery(s string) (query.Filter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var ops []query.Filter
	for _, part := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(part, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("query term %q: want field=value", part)
		}
		ops = append(ops, query.PropertyIsEqualTo(k, strings.TrimSpace(v)))
	}
	if len(ops) == 1 {
		return ops[0], nil
	}
	return query.And(ops...), nil
}

func parseSort(s string) query.SortBy {
	var sb query.SortBy
	for _, name := range splitList(s) {
		if strings.HasPrefix(name, "-") {
			sb = append(sb, query.Desc(name[1:]))
			continue
		}
		sb = append(sb, query.Asc(name))
	}
	return sb
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseBox reads "minx,miny,maxx,maxy" in Lambert 72.
func parseBox(s string) (location.Box, error) {
	parts := splitList(s)
	if len(parts) != 4 {
		return location.Box{}, fmt.Errorf("bbox %q: want minx,miny,maxx,maxy", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return location.Box{}, fmt.Errorf("bbox %q: %w", s, err)
		}
		v[i] = f
	}
	return location.Box{MinX: v[0], MinY: v[1], MaxX: v[2], MaxY: v[3]}, nil
}

// areaSource picks the reader by file extension.
func areaSource(path string) (location.Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return location.GeoJSONFile(path), nil
	case ".gml", ".xml":
		return location.GMLFile(path), nil
	case ".fgb":
		return location.FlatGeobufFile(path), nil
	}
	return nil, fmt.Errorf("area %s: unsupported format", path)
}

func buildLocation(bbox, area string) (location.Filter, error) {
	var ops []location.Filter
	if bbox != "" {
		b, err := parseBox(bbox)
		if err != nil {
			return nil, err
		}
		ops = append(ops, location.Within(b))
	}
	if area != "" {
		src, err := areaSource(area)
		if err != nil {
			return nil, err
		}
		f, err := location.FromSource(src, location.KindIntersects)
		if err != nil {
			return nil, err
		}
		ops = append(ops, f)
	}
	switch len(ops) {
	case 0:
		return nil, nil
	case 1:
		return ops[0], nil
	}
	return location.And(ops...), nil
}
