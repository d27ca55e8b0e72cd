package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrNotIdle is returned by Start while a run is still in progress.
	ErrNotIdle = errors.New("pipeline: run already in progress")

	// ErrInvalidConfig indicates a configuration that cannot produce frames.
	ErrInvalidConfig = errors.New("pipeline: invalid configuration")
)

// Stage names the step at which a frame failed.
type Stage string

const (
	StageRender  Stage = "render"
	StagePersist Stage = "persist"
)

// FrameError wraps a render or persist failure with the frame it hit.
type FrameError struct {
	FrameNumber int
	Time        float64
	Stage       Stage
	Err         error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("pipeline: %s frame %d (t=%.3f): %v", e.Stage, e.FrameNumber, e.Time, e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}
