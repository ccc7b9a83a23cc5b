package render

import (
	"encoding/json"
	"fmt"

	"relief-backend/internal/catalog"
)

type geojsonGeometry struct {
	Type        string            `json:"type"`
	Coordinates json.RawMessage   `json:"coordinates"`
	Geometry    json.RawMessage   `json:"geometry"`
	Features    []json.RawMessage `json:"features"`
}

// CutlineBounds computes the bounding extent of a GeoJSON cutline polygon.
// Polygon and MultiPolygon are accepted, optionally wrapped in a Feature or
// a FeatureCollection.
func CutlineBounds(cutline json.RawMessage) (catalog.Extent, error) {
	var geom geojsonGeometry
	if err := json.Unmarshal(cutline, &geom); err != nil {
		return catalog.Extent{}, fmt.Errorf("parsing cutline: %w", err)
	}

	switch geom.Type {
	case "Polygon":
		var rings [][][]float64
		if err := json.Unmarshal(geom.Coordinates, &rings); err != nil {
			return catalog.Extent{}, fmt.Errorf("parsing cutline polygon: %w", err)
		}
		return ringBounds(rings)

	case "MultiPolygon":
		var polygons [][][][]float64
		if err := json.Unmarshal(geom.Coordinates, &polygons); err != nil {
			return catalog.Extent{}, fmt.Errorf("parsing cutline multipolygon: %w", err)
		}
		var bounds *catalog.Extent
		for _, rings := range polygons {
			b, err := ringBounds(rings)
			if err != nil {
				return catalog.Extent{}, err
			}
			bounds = merge(bounds, b)
		}
		if bounds == nil {
			return catalog.Extent{}, fmt.Errorf("cutline multipolygon has no polygons")
		}
		return *bounds, nil

	case "Feature":
		if geom.Geometry == nil {
			return catalog.Extent{}, fmt.Errorf("cutline feature has no geometry")
		}
		return CutlineBounds(geom.Geometry)

	case "FeatureCollection":
		var bounds *catalog.Extent
		for _, feature := range geom.Features {
			b, err := CutlineBounds(feature)
			if err != nil {
				return catalog.Extent{}, err
			}
			bounds = merge(bounds, b)
		}
		if bounds == nil {
			return catalog.Extent{}, fmt.Errorf("cutline feature collection is empty")
		}
		return *bounds, nil

	default:
		return catalog.Extent{}, fmt.Errorf("unsupported cutline geometry type %q", geom.Type)
	}
}

func ringBounds(rings [][][]float64) (catalog.Extent, error) {
	bounds := catalog.Extent{}
	seen := false
	for _, ring := range rings {
		for _, point := range ring {
			if len(point) < 2 {
				return catalog.Extent{}, fmt.Errorf("cutline has a coordinate with fewer than 2 values")
			}
			x, y := point[0], point[1]
			if !seen {
				bounds = catalog.Extent{Left: x, Bottom: y, Right: x, Top: y}
				seen = true
				continue
			}
			bounds.Left = min(bounds.Left, x)
			bounds.Right = max(bounds.Right, x)
			bounds.Bottom = min(bounds.Bottom, y)
			bounds.Top = max(bounds.Top, y)
		}
	}
	if !seen {
		return catalog.Extent{}, fmt.Errorf("cutline polygon has no coordinates")
	}
	return bounds, nil
}

func merge(acc *catalog.Extent, next catalog.Extent) *catalog.Extent {
	if acc == nil {
		return &next
	}
	acc.Left = min(acc.Left, next.Left)
	acc.Right = max(acc.Right, next.Right)
	acc.Bottom = min(acc.Bottom, next.Bottom)
	acc.Top = max(acc.Top, next.Top)
	return acc
}
