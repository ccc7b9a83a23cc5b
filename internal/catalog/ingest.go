package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"

	"relief-backend/internal/extool"
)

// USGS 3DEP/NED cell names encode the northwest corner of a 1°x1° cell,
// e.g. USGS_NED_13_n38w106_IMG.img covers 37..38N, 106..105W.
var nedCellPattern = regexp.MustCompile(`(?i)([ns])(\d{1,3})([ew])(\d{1,3})`)

// ParseCellName derives a footprint from a USGS cell file name. The second
// return value is false when the name does not follow the cell convention.
func ParseCellName(filename string) (Extent, bool) {
	match := nedCellPattern.FindStringSubmatch(filepath.Base(filename))
	if match == nil {
		return Extent{}, false
	}

	lat, _ := strconv.Atoi(match[2])
	lon, _ := strconv.Atoi(match[4])
	if lat > 90 || lon > 180 {
		return Extent{}, false
	}

	top := float64(lat)
	if match[1] == "s" || match[1] == "S" {
		top = -top
	}
	left := float64(lon)
	if match[3] == "w" || match[3] == "W" {
		left = -left
	}

	return Extent{Left: left, Bottom: top - 1, Right: left + 1, Top: top}, true
}

// FootprintForFile resolves a tile's footprint, preferring the cheap file
// name convention and falling back to probing the raster itself.
func FootprintForFile(ctx context.Context, runner extool.Runner, path string) (Footprint, error) {
	if extent, ok := ParseCellName(path); ok {
		return Footprint{Path: path, Extent: extent}, nil
	}

	info, err := ProbeRaster(ctx, runner, path, false)
	if err != nil {
		return Footprint{}, err
	}
	if !info.Extent.Valid() {
		return Footprint{}, fmt.Errorf("raster %s has no usable corner coordinates", path)
	}

	return Footprint{Path: path, Extent: info.Extent}, nil
}
