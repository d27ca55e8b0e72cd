// Package controller owns the lifecycle of one animation run: picking a
// usable seed, creating the run directory, driving the pipeline and
// recording the outcome.
package controller

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/san-kum/gasket/internal/gasket"
	"github.com/san-kum/gasket/internal/logging"
	"github.com/san-kum/gasket/internal/pipeline"
	"github.com/san-kum/gasket/internal/render"
	"github.com/san-kum/gasket/internal/storage"
)

const DefaultMaxRetries = 16

var (
	// ErrRetriesExhausted wraps gasket.ErrDegenerate once every seed in
	// the retry window produced a degenerate packing.
	ErrRetriesExhausted = errors.New("controller: no usable seed")

	// ErrBusy is returned by Run while another run is active.
	ErrBusy = errors.New("controller: run already in progress")
)

type Options struct {
	Render     render.Options
	Workers    int
	MaxRetries int

	PreviewInterval time.Duration
	PreviewWidth    int
}

func DefaultOptions() Options {
	return Options{
		Render:          render.DefaultOptions(),
		Workers:         pipeline.DefaultWorkers(),
		MaxRetries:      DefaultMaxRetries,
		PreviewInterval: 100 * time.Millisecond,
		PreviewWidth:    160,
	}
}

func (o Options) pipelineConfig() pipeline.Config {
	return pipeline.Config{
		Workers:         o.Workers,
		Start:           o.Render.Start,
		End:             o.Render.End,
		FPS:             o.Render.FPS,
		PreviewInterval: o.PreviewInterval,
		PreviewWidth:    o.PreviewWidth,
	}
}

// Report summarises a finished run.
type Report struct {
	RunID        string
	Dir          string
	Seed         int64
	AcceptedSeed int64
	Attempts     int
	Circles      int
	Frames       int
	Persisted    int
	Discarded    int
	Failed       int
	Status       string
	Elapsed      time.Duration
}

// Event is a progress snapshot. The last event of a run has Done set and
// carries the report.
type Event struct {
	Frame   int
	Time    float64
	Preview image.Image
	Stats   pipeline.Stats
	Elapsed time.Duration

	Done   bool
	Report *Report
	Err    error
}

type Controller struct {
	store *storage.Store
	init  func(render.Options) (*render.Animation, error)

	mu        sync.Mutex
	running   bool
	cancelled bool
	pipe      *pipeline.Pipeline

	events chan Event
}

func New(store *storage.Store) *Controller {
	return &Controller{
		store:  store,
		init:   render.InitAnimation,
		events: make(chan Event, 16),
	}
}

// Events delivers progress snapshots. Slow readers lose older snapshots,
// never the final one.
func (c *Controller) Events() <-chan Event {
	return c.events
}

func (c *Controller) publish(ev Event) {
	for {
		select {
		case c.events <- ev:
			return
		default:
		}
		select {
		case <-c.events:
		default:
		}
	}
}

// Prepare builds the animation, moving to seed+1, seed+2, ... while the
// packing is degenerate. It returns the animation and the number of seeds
// tried.
func (c *Controller) Prepare(opts Options) (*render.Animation, int, error) {
	log := logging.Logger()
	ropts := opts.Render
	retries := max(opts.MaxRetries, 0)

	for attempt := 1; attempt <= retries+1; attempt++ {
		anim, err := c.init(ropts)
		if err == nil {
			if attempt > 1 {
				log.Info("seed accepted", "seed", ropts.Seed, "attempts", attempt)
			}
			return anim, attempt, nil
		}
		if !errors.Is(err, gasket.ErrDegenerate) {
			return nil, attempt, err
		}
		log.Warn("degenerate packing, reseeding", "seed", ropts.Seed, "err", err)
		ropts.Seed++
	}
	return nil, retries + 1, fmt.Errorf("%w: seeds %d..%d: %w",
		ErrRetriesExhausted, opts.Render.Seed, ropts.Seed-1, gasket.ErrDegenerate)
}

// Run performs one complete run and blocks until it ends. Cancel ends it
// early with status cancelled and no error; cancelling ctx does the same
// but returns ctx.Err().
func (c *Controller) Run(ctx context.Context, opts Options) (*Report, error) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	c.running = true
	c.cancelled = false
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.running = false
		c.pipe = nil
		c.mu.Unlock()
	}()

	started := time.Now()
	log := logging.Logger()

	cfg := opts.pipelineConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	anim, attempts, err := c.Prepare(opts)
	if err != nil {
		return nil, err
	}

	meta := storage.RunMetadata{
		Seed:         opts.Render.Seed,
		AcceptedSeed: anim.State.Seed,
		Attempts:     attempts,
		Width:        anim.State.Width,
		Height:       anim.State.Height,
		Start:        anim.State.Start,
		End:          anim.State.End,
		FPS:          anim.State.FPS,
		Depth:        anim.Gasket.Depth,
		Frames:       anim.State.Frames,
		Circles:      len(anim.Gasket.Generated),
		Workers:      opts.Workers,
	}
	run, err := c.store.Create(meta)
	if err != nil {
		return nil, err
	}
	meta.ID = run.ID()
	log.Info("run started", "id", run.ID(), "seed", meta.AcceptedSeed, "frames", meta.Frames, "circles", meta.Circles)

	var pipe *pipeline.Pipeline
	pipe = pipeline.New(render.NewRenderer(anim), run, func(pv pipeline.Preview) {
		c.publish(Event{
			Frame:   pv.FrameNumber,
			Time:    pv.Time,
			Preview: pv.Image,
			Stats:   pipe.Stats(),
			Elapsed: time.Since(started),
		})
	})

	c.mu.Lock()
	c.pipe = pipe
	if !c.cancelled {
		err = pipe.Start(ctx, cfg)
	}
	c.mu.Unlock()
	if err == nil {
		err = pipe.Wait()
	}

	stats := pipe.Stats()
	report := &Report{
		RunID:        run.ID(),
		Dir:          run.Dir(),
		Seed:         meta.Seed,
		AcceptedSeed: meta.AcceptedSeed,
		Attempts:     attempts,
		Circles:      meta.Circles,
		Frames:       meta.Frames,
		Persisted:    stats.Persisted,
		Discarded:    stats.Discarded,
		Failed:       stats.Failed,
		Status:       status(err, stats.Persisted, meta.Frames),
		Elapsed:      time.Since(started),
	}

	meta.Persisted = report.Persisted
	meta.Discarded = report.Discarded
	meta.Elapsed = report.Elapsed.Seconds()
	meta.Status = report.Status
	if err != nil {
		meta.Error = err.Error()
	}
	if serr := run.SaveMetadata(meta); serr != nil && err == nil {
		err = serr
	}

	log.Info("run finished", "id", report.RunID, "status", report.Status,
		"persisted", report.Persisted, "elapsed", report.Elapsed)
	c.publish(Event{Stats: stats, Elapsed: report.Elapsed, Done: true, Report: report, Err: err})
	return report, err
}

func status(err error, persisted, frames int) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return storage.StatusCancelled
	case err != nil:
		return storage.StatusFailed
	case persisted < frames:
		return storage.StatusCancelled
	}
	return storage.StatusCompleted
}

// Cancel stops the active run cooperatively. It is safe from any
// goroutine and may be called more than once. Calling it before the
// pipeline exists still cancels the run.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.cancelled = true
	if c.pipe != nil {
		c.pipe.Cancel()
	}
}

// Running reports whether a run is active.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
