package render

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/gasket/internal/gasket"
	"github.com/san-kum/gasket/internal/random"
	"github.com/san-kum/gasket/internal/reveal"
)

const (
	DefaultWidth        = 512
	DefaultHeight       = 512
	DefaultStart        = 0.0
	DefaultEnd          = 10.0
	DefaultFPS          = 30.0
	DefaultSeed         = 12
	DefaultDepth        = 4
	DefaultMinCurvature = 3.0
	DefaultMaxCurvature = 20.0
	DefaultPadding      = 8.0

	// MaxFrames bounds a single run.
	MaxFrames = 1 << 20

	// frames whose time lands within timeEpsilon of End still count
	timeEpsilon = 1e-9
)

// ErrInvalidOptions indicates animation options that cannot produce frames.
var ErrInvalidOptions = errors.New("render: invalid animation options")

// Options configures one animation run.
type Options struct {
	Width, Height int
	Start, End    float64
	FPS           float64
	Seed          int64
	Depth         int
	MinCurvature  float64
	MaxCurvature  float64
	Padding       float64
}

func DefaultOptions() Options {
	return Options{
		Width:        DefaultWidth,
		Height:       DefaultHeight,
		Start:        DefaultStart,
		End:          DefaultEnd,
		FPS:          DefaultFPS,
		Seed:         DefaultSeed,
		Depth:        DefaultDepth,
		MinCurvature: DefaultMinCurvature,
		MaxCurvature: DefaultMaxCurvature,
		Padding:      DefaultPadding,
	}
}

func (o Options) Validate() error {
	switch {
	case o.Width <= 0 || o.Height <= 0:
		return fmt.Errorf("%w: size %dx%d", ErrInvalidOptions, o.Width, o.Height)
	case !(o.FPS > 0) || math.IsInf(o.FPS, 0):
		return fmt.Errorf("%w: fps must be positive, got %f", ErrInvalidOptions, o.FPS)
	case math.IsNaN(o.Start) || math.IsNaN(o.End) || o.End < o.Start:
		return fmt.Errorf("%w: end %f before start %f", ErrInvalidOptions, o.End, o.Start)
	case !((o.End-o.Start)*o.FPS < MaxFrames):
		return fmt.Errorf("%w: more than %d frames between %f and %f at %f fps",
			ErrInvalidOptions, MaxFrames, o.Start, o.End, o.FPS)
	case o.Depth < 0 || o.Depth > gasket.MaxDepth:
		return fmt.Errorf("%w: depth %d outside [0, %d]", ErrInvalidOptions, o.Depth, gasket.MaxDepth)
	case o.MinCurvature <= 0 || o.MaxCurvature < o.MinCurvature:
		return fmt.Errorf("%w: curvature range [%f, %f]", ErrInvalidOptions, o.MinCurvature, o.MaxCurvature)
	case o.Padding < 0 || 2*o.Padding >= float64(min(o.Width, o.Height)):
		return fmt.Errorf("%w: padding %f", ErrInvalidOptions, o.Padding)
	}
	return nil
}

// FrameCount is the number of frames between start and end inclusive,
// capped at MaxFrames+1 so an oversized range never overflows.
func FrameCount(start, end, fps float64) int {
	if !(fps > 0) || !(end >= start) {
		return 0
	}
	span := (end - start) * fps
	if !(span < MaxFrames) {
		return MaxFrames + 1
	}
	return int(math.Floor(span+timeEpsilon)) + 1
}

// AnimationState is computed once per run and read-only afterwards. It is
// passed by value to every render call.
type AnimationState struct {
	Width, Height int
	Size          int
	Padding       float64
	Offset        complex128
	Scale         float64
	Start, End    float64
	FPS           float64
	Frames        int
	Seed          int64
}

// FrameIndex maps a time point to its frame number.
func (s AnimationState) FrameIndex(t float64) int {
	return int(math.Round((t - s.Start) * s.FPS))
}

// FrameTime is the time point of frame n.
func (s AnimationState) FrameTime(n int) float64 {
	return s.Start + float64(n)/s.FPS
}

// ToCanvas maps a packing circle to pixel coordinates and pixel radius.
func (s AnimationState) ToCanvas(center complex128, radius float64) (x, y, r float64) {
	half := float64(s.Size)/2 - s.Padding
	z := (center - s.Offset) * complex(s.Scale*half, 0)
	return float64(s.Width)/2 + real(z), float64(s.Height)/2 + imag(z), math.Abs(radius) * s.Scale * half
}

// Animation is everything a frame render reads: the packing, its reveal
// schedule and the derived state.
type Animation struct {
	Gasket   *gasket.Gasket
	Schedule reveal.Schedule
	State    AnimationState
}

// InitAnimation builds the packing, reveal schedule and state for one seed.
// Curvatures and reveal order both come from a single random source seeded
// with opts.Seed, so the same options always give the same animation. A
// degenerate packing is reported as gasket.ErrDegenerate; picking another
// seed is left to the caller.
func InitAnimation(opts Options) (*Animation, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	rng := random.New(opts.Seed)
	g, err := gasket.RandomGasket(rng, opts.MinCurvature, opts.MaxCurvature, opts.Depth)
	if err != nil {
		return nil, err
	}

	frames := FrameCount(opts.Start, opts.End, opts.FPS)
	sched := reveal.Build(len(g.Generated), frames, rng)
	for i := range g.Generated {
		g.Generated[i].RevealFrame = sched[i]
	}

	ref := g.Reference()
	return &Animation{
		Gasket:   g,
		Schedule: sched,
		State: AnimationState{
			Width:   opts.Width,
			Height:  opts.Height,
			Size:    min(opts.Width, opts.Height),
			Padding: opts.Padding,
			Offset:  ref.Center,
			Scale:   1 / math.Abs(ref.Radius),
			Start:   opts.Start,
			End:     opts.End,
			FPS:     opts.FPS,
			Frames:  frames,
			Seed:    opts.Seed,
		},
	}, nil
}
