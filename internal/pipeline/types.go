package pipeline

import (
	"context"
	"fmt"
	"image"
	"runtime"
	"time"

	"github.com/san-kum/gasket/internal/render"
)

// Renderer produces the image for one time point. Implementations must be
// safe for concurrent use and return an image the caller owns.
// *render.Renderer satisfies it.
type Renderer interface {
	Render(ctx context.Context, t float64) (image.Image, error)
}

// Sink persists finished frames. WriteFrame is only ever called from the
// collector goroutine, one frame at a time, in completion order.
type Sink interface {
	WriteFrame(frameNumber int, img image.Image) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(frameNumber int, img image.Image) error

func (f SinkFunc) WriteFrame(frameNumber int, img image.Image) error {
	return f(frameNumber, img)
}

// Preview is a downscaled copy of a persisted frame.
type Preview struct {
	FrameNumber int
	Time        float64
	Image       image.Image
}

// PreviewFunc receives previews on the collector goroutine. It must not
// call Stop; use Cancel instead.
type PreviewFunc func(Preview)

// Config describes one run over the time range [Start, End].
type Config struct {
	Workers int
	Start   float64
	End     float64
	FPS     float64

	// PreviewInterval is the minimum time between two previews. Zero
	// publishes every persisted frame.
	PreviewInterval time.Duration
	// PreviewWidth is the preview width in pixels. Zero keeps full size.
	PreviewWidth int
}

// DefaultWorkers is one worker per CPU.
func DefaultWorkers() int {
	return runtime.NumCPU()
}

func (c Config) Validate() error {
	switch {
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalidConfig, c.Workers)
	case c.FPS <= 0:
		return fmt.Errorf("%w: fps must be positive, got %f", ErrInvalidConfig, c.FPS)
	case c.End < c.Start:
		return fmt.Errorf("%w: end %f before start %f", ErrInvalidConfig, c.End, c.Start)
	case c.Frames() > render.MaxFrames:
		return fmt.Errorf("%w: more than %d frames", ErrInvalidConfig, render.MaxFrames)
	case c.PreviewInterval < 0 || c.PreviewWidth < 0:
		return fmt.Errorf("%w: negative preview setting", ErrInvalidConfig)
	}
	return nil
}

// Frames is the number of frames the run dispatches.
func (c Config) Frames() int {
	return render.FrameCount(c.Start, c.End, c.FPS)
}

// QueueCapacity bounds the number of rendered frames waiting for the
// collector.
func (c Config) QueueCapacity() int {
	return c.Workers + 2
}

// State is the lifecycle phase of a Pipeline.
type State int32

const (
	Idle State = iota
	Running
	Draining
	Cancelling
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Cancelling:
		return "cancelling"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Stats counts what happened to dispatched frames. Once the pipeline is
// Idle, Dispatched == Persisted + Discarded + Failed.
type Stats struct {
	Frames        int
	Dispatched    int
	Persisted     int
	Discarded     int
	Failed        int
	Previews      int
	MaxQueueDepth int
	LiveWorkers   int
}

type result struct {
	frame int
	t     float64
	img   image.Image
}
