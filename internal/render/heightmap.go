package render

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"relief-backend/internal/catalog"
	"relief-backend/internal/extool"
	"relief-backend/pkg/api"
)

// Heightmap elevations are rescaled into the upper UInt16 range so the
// shading engine gets consistent relief regardless of absolute terrain.
const (
	heightmapScaleMin = 8192
	heightmapScaleMax = 65533
)

type HeightmapParams struct {
	MosaicPath string
	OutPath    string
	WorkDir    string

	// Extent frames the output; nil means the cutline frames it, either
	// via crop-to-cutline or, when a margin is set, via the cutline's
	// margin-expanded bounds. At least one of the two is always set.
	Extent  *catalog.Extent
	Srid    string
	Cutline json.RawMessage

	Size   api.Size
	Margin api.Margin
}

type HeightmapRenderer struct {
	runner extool.Runner
}

func NewHeightmapRenderer(runner extool.Runner) *HeightmapRenderer {
	return &HeightmapRenderer{runner: runner}
}

// Render crops the mosaic to the (margin-expanded) extent, masks pixels
// outside the cutline, resamples to exactly the requested pixel size, and
// rescales elevations to UInt16. The output dimensions are verified; a
// mismatch is a stage failure, never silently accepted.
func (r *HeightmapRenderer) Render(ctx context.Context, p HeightmapParams) error {
	warpPath := filepath.Join(p.WorkDir, fmt.Sprintf("warp-%s.tif", uuid.New()))

	args := []string{
		"-r", "bilinear",
		"-ts", strconv.Itoa(p.Size.Width), strconv.Itoa(p.Size.Height),
		"-dstnodata", "0",
	}

	hasMargin := p.Margin.Horizontal > 0 || p.Margin.Vertical > 0

	// A cutline-only request normally lets the tool frame the crop, but a
	// margin needs an explicit window: frame it with the expanded cutline
	// bounds so the padding is not lost.
	frame := p.Extent
	cropToCutline := false
	if frame == nil && p.Cutline != nil {
		if hasMargin {
			bounds, err := CutlineBounds(p.Cutline)
			if err != nil {
				return &StageError{Stage: StageHeightmap, Err: err}
			}
			frame = &bounds
		} else {
			cropToCutline = true
		}
	}

	if frame != nil {
		extent := *frame
		if hasMargin {
			extent = extent.Expand(
				float64(p.Margin.Horizontal)*extent.Width()/float64(p.Size.Width),
				float64(p.Margin.Vertical)*extent.Height()/float64(p.Size.Height),
			)
		}
		args = append(args,
			"-te", formatCoord(extent.Left), formatCoord(extent.Bottom), formatCoord(extent.Right), formatCoord(extent.Top),
		)
		if p.Srid != "" {
			args = append(args, "-te_srs", p.Srid)
		}
	}

	if p.Cutline != nil {
		cutlinePath := filepath.Join(p.WorkDir, fmt.Sprintf("cutline-%s.json", uuid.New()))
		if err := os.WriteFile(cutlinePath, p.Cutline, 0644); err != nil {
			return &StageError{Stage: StageHeightmap, Err: fmt.Errorf("writing cutline: %w", err)}
		}
		defer os.Remove(cutlinePath)

		args = append(args, "-cutline", cutlinePath)
		if cropToCutline {
			args = append(args, "-crop_to_cutline")
		}
	}

	args = append(args, p.MosaicPath, warpPath)

	_, stderr, err := r.runner.Run(ctx, "gdalwarp", args...)
	if err != nil {
		return stageError(StageHeightmap, err, stderr)
	}
	defer os.Remove(warpPath)

	// The published min/max in USGS metadata is unreliable, so compute the
	// real extrema before rescaling.
	info, err := catalog.ProbeRaster(ctx, r.runner, warpPath, true)
	if err != nil {
		return &StageError{Stage: StageHeightmap, Err: err}
	}

	_, stderr, err = r.runner.Run(ctx, "gdal_translate",
		"-ot", "UInt16",
		"-scale", formatCoord(info.Min), formatCoord(info.Max), strconv.Itoa(heightmapScaleMin), strconv.Itoa(heightmapScaleMax),
		warpPath, p.OutPath,
	)
	if err != nil {
		return stageError(StageHeightmap, err, stderr)
	}

	out, err := catalog.ProbeRaster(ctx, r.runner, p.OutPath, false)
	if err != nil {
		return &StageError{Stage: StageHeightmap, Err: err}
	}
	if out.Width != p.Size.Width || out.Height != p.Size.Height {
		return &StageError{
			Stage: StageHeightmap,
			Err:   fmt.Errorf("rendered heightmap is %dx%d, requested %dx%d", out.Width, out.Height, p.Size.Width, p.Size.Height),
		}
	}

	return nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
