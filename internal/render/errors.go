package render

import (
	"fmt"
	"strings"
)

const (
	StageMosaic       = "mosaic"
	StageHeightmap    = "heightmap"
	StageShadedRelief = "shaded-relief"
)

// StageError wraps a failed external tool invocation, preserving the tool's
// diagnostic output so it reaches the stored job failure verbatim.
type StageError struct {
	Stage  string
	Err    error
	Stderr string
}

func (e *StageError) Error() string {
	msg := fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
	if diag := strings.TrimSpace(e.Stderr); diag != "" {
		msg += ": " + diag
	}
	return msg
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageError(stage string, err error, stderr []byte) *StageError {
	return &StageError{Stage: stage, Err: err, Stderr: string(stderr)}
}
