package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"relief-backend/internal/extool"
)

// RasterInfo is the subset of gdalinfo output the service cares about.
type RasterInfo struct {
	Width  int
	Height int
	Extent Extent
	Min    float64
	Max    float64
}

type gdalinfoOutput struct {
	Size              []int `json:"size"`
	CornerCoordinates struct {
		UpperLeft  []float64 `json:"upperLeft"`
		LowerRight []float64 `json:"lowerRight"`
	} `json:"cornerCoordinates"`
	Bands []struct {
		Minimum     float64  `json:"minimum"`
		Maximum     float64  `json:"maximum"`
		ComputedMin *float64 `json:"computedMin"`
		ComputedMax *float64 `json:"computedMax"`
	} `json:"bands"`
}

// ProbeRaster reads raster metadata via gdalinfo. With computeMinMax the
// actual band extrema are computed from the pixels; published USGS metadata
// is not always trustworthy, so renders use the computed values.
func ProbeRaster(ctx context.Context, runner extool.Runner, path string, computeMinMax bool) (RasterInfo, error) {
	args := []string{"-json"}
	if computeMinMax {
		args = append(args, "-mm")
	}
	args = append(args, path)

	stdout, stderr, err := runner.Run(ctx, "gdalinfo", args...)
	if err != nil {
		return RasterInfo{}, fmt.Errorf("gdalinfo %s failed: %w: %s", path, err, strings.TrimSpace(string(stderr)))
	}

	var out gdalinfoOutput
	if err := json.Unmarshal(stdout, &out); err != nil {
		return RasterInfo{}, fmt.Errorf("parsing gdalinfo output for %s: %w", path, err)
	}
	if len(out.Size) != 2 {
		return RasterInfo{}, fmt.Errorf("gdalinfo output for %s has no raster size", path)
	}

	info := RasterInfo{Width: out.Size[0], Height: out.Size[1]}

	if len(out.CornerCoordinates.UpperLeft) == 2 && len(out.CornerCoordinates.LowerRight) == 2 {
		info.Extent = Extent{
			Left:   out.CornerCoordinates.UpperLeft[0],
			Top:    out.CornerCoordinates.UpperLeft[1],
			Right:  out.CornerCoordinates.LowerRight[0],
			Bottom: out.CornerCoordinates.LowerRight[1],
		}
	}

	if len(out.Bands) > 0 {
		band := out.Bands[0]
		info.Min, info.Max = band.Minimum, band.Maximum
		if band.ComputedMin != nil && band.ComputedMax != nil {
			info.Min, info.Max = *band.ComputedMin, *band.ComputedMax
		}
	}

	return info, nil
}
