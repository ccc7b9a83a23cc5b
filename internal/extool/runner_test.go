package extool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecRunner(t *testing.T) {
	runner := ExecRunner{}

	stdout, stderr, err := runner.Run(context.Background(), "sh", "-c", "echo out; echo err >&2")
	require.NoError(t, err)
	assert.Equal(t, "out\n", string(stdout))
	assert.Equal(t, "err\n", string(stderr))
}

func TestExecRunnerNonZeroExit(t *testing.T) {
	runner := ExecRunner{}

	_, stderr, err := runner.Run(context.Background(), "sh", "-c", "echo boom >&2; exit 3")
	require.Error(t, err)
	assert.Equal(t, "boom\n", string(stderr))
}

func TestExecRunnerInput(t *testing.T) {
	runner := ExecRunner{}

	stdout, _, err := runner.RunInput(context.Background(), "1 2\n3 4\n", "cat")
	require.NoError(t, err)
	assert.Equal(t, "1 2\n3 4\n", string(stdout))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "lo...(truncated)", truncate("long enough", 2))
}
