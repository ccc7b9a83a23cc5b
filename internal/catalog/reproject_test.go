package catalog

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	stdout string
	stderr string
	err    error

	commands [][]string
}

func (r *stubRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	r.commands = append(r.commands, append([]string{name}, args...))
	return []byte(r.stdout), []byte(r.stderr), r.err
}

func (r *stubRunner) RunInput(ctx context.Context, input string, name string, args ...string) ([]byte, []byte, error) {
	return r.Run(ctx, name, args...)
}

func TestReprojectorTransform(t *testing.T) {
	runner := &stubRunner{stdout: "500000 4100000\n600000 4200000\n"}
	reproj := NewReprojector(runner)

	out, err := reproj.Transform(context.Background(), Extent{Left: -106, Bottom: 37, Right: -105, Top: 38}, "EPSG:4326", "EPSG:26913")
	require.NoError(t, err)
	assert.Equal(t, Extent{Left: 500000, Bottom: 4100000, Right: 600000, Top: 4200000}, out)

	require.Len(t, runner.commands, 1)
	assert.Equal(t, "gdaltransform", runner.commands[0][0])
}

func TestReprojectorNormalizesFlippedAxes(t *testing.T) {
	runner := &stubRunner{stdout: "600000 4200000\n500000 4100000\n"}
	reproj := NewReprojector(runner)

	out, err := reproj.Transform(context.Background(), Extent{Left: -106, Bottom: 37, Right: -105, Top: 38}, "EPSG:4326", "EPSG:26913")
	require.NoError(t, err)
	assert.Equal(t, Extent{Left: 500000, Bottom: 4100000, Right: 600000, Top: 4200000}, out)
}

func TestReprojectorToolFailure(t *testing.T) {
	runner := &stubRunner{stderr: "ERROR 1: no such srs", err: fmt.Errorf("exit status 1")}
	reproj := NewReprojector(runner)

	_, err := reproj.Transform(context.Background(), Extent{Left: -106, Bottom: 37, Right: -105, Top: 38}, "EPSG:4326", "EPSG:99999")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such srs")
}

func TestReprojectorGarbageOutput(t *testing.T) {
	runner := &stubRunner{stdout: "not coordinates\n"}
	reproj := NewReprojector(runner)

	_, err := reproj.Transform(context.Background(), Extent{Left: -106, Bottom: 37, Right: -105, Top: 38}, "EPSG:4326", "EPSG:26913")
	assert.Error(t, err)
}

func TestProbeRaster(t *testing.T) {
	runner := &stubRunner{stdout: `{
		"size": [384, 128],
		"cornerCoordinates": {"upperLeft": [-107.0, 38.0], "lowerRight": [-104.5, 37.0]},
		"bands": [{"minimum": 100.0, "maximum": 4000.0, "computedMin": 112.5, "computedMax": 3998.25}]
	}`}

	info, err := ProbeRaster(context.Background(), runner, "/tmp/heightmap.tif", true)
	require.NoError(t, err)
	assert.Equal(t, 384, info.Width)
	assert.Equal(t, 128, info.Height)
	assert.Equal(t, Extent{Left: -107, Bottom: 37, Right: -104.5, Top: 38}, info.Extent)
	assert.Equal(t, 112.5, info.Min)
	assert.Equal(t, 3998.25, info.Max)

	require.Len(t, runner.commands, 1)
	assert.Contains(t, runner.commands[0], "-mm")
}

func TestProbeRasterFallsBackToReportedMinMax(t *testing.T) {
	runner := &stubRunner{stdout: `{"size": [10, 10], "bands": [{"minimum": 1.0, "maximum": 2.0}]}`}

	info, err := ProbeRaster(context.Background(), runner, "/tmp/a.tif", false)
	require.NoError(t, err)
	assert.Equal(t, 1.0, info.Min)
	assert.Equal(t, 2.0, info.Max)
	assert.NotContains(t, runner.commands[0], "-mm")
}
