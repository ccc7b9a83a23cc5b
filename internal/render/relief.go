package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"relief-backend/internal/extool"
)

// Sampling and vertical exaggeration defaults for the shading engine. These
// are quality knobs, not correctness knobs; any positive finite value works.
const (
	DefaultSamples = 64
	DefaultScale   = 2.0
)

type ShadedReliefRenderer struct {
	runner     extool.Runner
	scriptPath string
}

func NewShadedReliefRenderer(runner extool.Runner, scriptPath string) *ShadedReliefRenderer {
	return &ShadedReliefRenderer{runner: runner, scriptPath: scriptPath}
}

// Render lights the heightmap in the external shading engine and returns the
// path of the produced raster inside workDir.
func (r *ShadedReliefRenderer) Render(ctx context.Context, heightmapPath, workDir string, samples int, scale float64) (string, error) {
	if samples <= 0 {
		samples = DefaultSamples
	}
	if scale <= 0 {
		scale = DefaultScale
	}

	// Blender writes frame 0 of the pattern, i.e. shaded-relief-0.tif.
	outPattern := fmt.Sprintf("//%s/shaded-relief-#.tif", workDir)
	outPath := filepath.Join(workDir, "shaded-relief-0.tif")

	_, stderr, err := r.runner.Run(ctx, "blender",
		"-b",
		"-P", r.scriptPath,
		"-noaudio",
		"-o", outPattern,
		"-f", "0",
		"--",
		heightmapPath,
		strconv.Itoa(samples),
		strconv.FormatFloat(scale, 'f', -1, 64),
	)
	if err != nil {
		return "", stageError(StageShadedRelief, err, stderr)
	}

	if _, err := os.Stat(outPath); err != nil {
		return "", &StageError{
			Stage: StageShadedRelief,
			Err:   fmt.Errorf("shading engine exited cleanly but produced no %s", filepath.Base(outPath)),
		}
	}

	return outPath, nil
}
