package render

import (
	"context"

	"relief-backend/internal/extool"
)

// MosaicBuilder combines the covering tiles into a single virtual elevation
// source. Tile order is whatever the catalog resolved; when tiles overlap
// the tool's own last-wins precedence applies and is not altered here.
type MosaicBuilder struct {
	runner extool.Runner
}

func NewMosaicBuilder(runner extool.Runner) *MosaicBuilder {
	return &MosaicBuilder{runner: runner}
}

func (b *MosaicBuilder) Build(ctx context.Context, tilePaths []string, outPath string) error {
	args := append([]string{"-overwrite", outPath}, tilePaths...)

	_, stderr, err := b.runner.Run(ctx, "gdalbuildvrt", args...)
	if err != nil {
		return stageError(StageMosaic, err, stderr)
	}

	return nil
}
