package catalog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrNoCoverage means the requested extent intersects no tile in the
// catalog. A render with no source data cannot proceed, so callers treat
// this as a terminal job failure.
var ErrNoCoverage = errors.New("no tiles cover the requested extent")

type Extent struct {
	Left   float64
	Bottom float64
	Right  float64
	Top    float64
}

func (e Extent) Valid() bool {
	for _, v := range []float64{e.Left, e.Bottom, e.Right, e.Top} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return e.Left < e.Right && e.Bottom < e.Top
}

func (e Extent) Width() float64 {
	return e.Right - e.Left
}

func (e Extent) Height() float64 {
	return e.Top - e.Bottom
}

func (e Extent) Intersects(other Extent) bool {
	return e.Left < other.Right && other.Left < e.Right &&
		e.Bottom < other.Top && other.Bottom < e.Top
}

// Expand grows the extent by the given margins, expressed in extent units.
func (e Extent) Expand(horizontal, vertical float64) Extent {
	return Extent{
		Left:   e.Left - horizontal,
		Bottom: e.Bottom - vertical,
		Right:  e.Right + horizontal,
		Top:    e.Top + vertical,
	}
}

// Footprint is the spatial bounding box of one source elevation tile.
type Footprint struct {
	Path string
	Extent
}

// Catalog holds the static tile footprint index. It is immutable after
// construction and therefore safe for unlimited concurrent readers.
type Catalog struct {
	srid       string
	footprints []Footprint
	reproj     *Reprojector
}

func New(srid string, footprints []Footprint, reproj *Reprojector) *Catalog {
	sorted := make([]Footprint, len(footprints))
	copy(sorted, footprints)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })
	return &Catalog{srid: srid, footprints: sorted, reproj: reproj}
}

func (c *Catalog) Srid() string {
	return c.srid
}

func (c *Catalog) Len() int {
	return len(c.footprints)
}

// ResolveTiles returns the paths of every tile whose footprint intersects
// the extent, in deterministic (path-sorted) order. The extent is given in
// the reference frame named by srid; when that differs from the catalog's
// frame it is reprojected first. An empty srid means the catalog's frame.
func (c *Catalog) ResolveTiles(ctx context.Context, extent Extent, srid string) ([]string, error) {
	if !extent.Valid() {
		return nil, fmt.Errorf("malformed extent: left=%v bottom=%v right=%v top=%v", extent.Left, extent.Bottom, extent.Right, extent.Top)
	}

	if srid != "" && srid != c.srid {
		if c.reproj == nil {
			return nil, fmt.Errorf("extent srid %s differs from catalog srid %s and no reprojector is configured", srid, c.srid)
		}
		reprojected, err := c.reproj.Transform(ctx, extent, srid, c.srid)
		if err != nil {
			return nil, fmt.Errorf("reprojecting extent from %s to %s: %w", srid, c.srid, err)
		}
		extent = reprojected
	}

	var paths []string
	for _, fp := range c.footprints {
		if fp.Intersects(extent) {
			paths = append(paths, fp.Path)
		}
	}

	if len(paths) == 0 {
		return nil, ErrNoCoverage
	}
	return paths, nil
}
