package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"relief-backend/internal/extool"
)

// Reprojector translates extents between reference frames by shelling out to
// gdaltransform. We deliberately do not reimplement projection math.
type Reprojector struct {
	runner extool.Runner
}

func NewReprojector(runner extool.Runner) *Reprojector {
	return &Reprojector{runner: runner}
}

func (r *Reprojector) Transform(ctx context.Context, extent Extent, fromSrid, toSrid string) (Extent, error) {
	input := fmt.Sprintf("%v %v\n%v %v\n", extent.Left, extent.Bottom, extent.Right, extent.Top)

	stdout, stderr, err := r.runner.RunInput(ctx, input, "gdaltransform", "-s_srs", fromSrid, "-t_srs", toSrid, "-output_xy")
	if err != nil {
		return Extent{}, fmt.Errorf("gdaltransform failed: %w: %s", err, strings.TrimSpace(string(stderr)))
	}

	var xs, ys []float64
	for _, line := range strings.Split(strings.TrimSpace(string(stdout)), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return Extent{}, fmt.Errorf("unexpected gdaltransform output line %q", line)
		}
		x, errX := strconv.ParseFloat(fields[0], 64)
		y, errY := strconv.ParseFloat(fields[1], 64)
		if errX != nil || errY != nil {
			return Extent{}, fmt.Errorf("unexpected gdaltransform output line %q", line)
		}
		xs = append(xs, x)
		ys = append(ys, y)
	}
	if len(xs) != 2 {
		return Extent{}, fmt.Errorf("expected 2 transformed points, got %d", len(xs))
	}

	// Axis order may flip between frames, so normalize the corners.
	out := Extent{
		Left:   min(xs[0], xs[1]),
		Right:  max(xs[0], xs[1]),
		Bottom: min(ys[0], ys[1]),
		Top:    max(ys[0], ys[1]),
	}
	if !out.Valid() {
		return Extent{}, fmt.Errorf("degenerate extent after reprojection: %+v", out)
	}
	return out, nil
}
