// Package pipeline renders the frames of an animation on a pool of workers
// and hands them to a single collector that persists them.
//
// Workers claim time points from a shared cursor, render them and push the
// result into a bounded queue. A full queue blocks the workers, so at most
// QueueCapacity rendered frames wait for persistence at any time. Frames
// are persisted in completion order; the frame number travels with the
// image.
//
// Cancellation is cooperative. Stop and Cancel clear the continue flag and
// close the run's stop channel, which unblocks every worker waiting on the
// queue. A frame already being rendered finishes; anything rendered after
// cancellation is discarded instead of persisted.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/san-kum/gasket/internal/logging"
)

// Pipeline reuses one renderer and sink across runs. Only one run is
// active at a time.
type Pipeline struct {
	renderer Renderer
	sink     Sink
	preview  PreviewFunc

	mu     sync.Mutex
	state  State
	cursor int
	frames int
	cont   bool
	run    *run
	err    error
	stats  Stats

	live atomic.Int32
}

// run holds the channels of one Start..Idle cycle.
type run struct {
	cfg     Config
	parent  context.Context
	ctx     context.Context
	cancel  context.CancelFunc
	results chan result
	stop    chan struct{}
	once    sync.Once
	workers sync.WaitGroup
	done    chan struct{}
}

func (r *run) halt() {
	r.once.Do(func() {
		close(r.stop)
		r.cancel()
	})
}

func (r *run) stopped() bool {
	select {
	case <-r.stop:
		return true
	default:
		return false
	}
}

// New creates an idle pipeline. preview may be nil.
func New(renderer Renderer, sink Sink, preview PreviewFunc) *Pipeline {
	return &Pipeline{renderer: renderer, sink: sink, preview: preview}
}

// Start begins a run and returns immediately. Cancelling ctx cancels the
// run; Wait then reports ctx.Err().
func (p *Pipeline) Start(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	if p.state != Idle || p.run != nil {
		p.mu.Unlock()
		return ErrNotIdle
	}
	runCtx, cancel := context.WithCancel(ctx)
	r := &run{
		cfg:     cfg,
		parent:  ctx,
		ctx:     runCtx,
		cancel:  cancel,
		results: make(chan result, cfg.QueueCapacity()),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	p.run = r
	p.state = Running
	p.cursor = 0
	p.frames = cfg.Frames()
	p.cont = true
	p.err = nil
	p.stats = Stats{Frames: p.frames}
	p.mu.Unlock()

	logging.Logger().Info("pipeline started",
		"workers", cfg.Workers, "frames", p.frames, "queue", cfg.QueueCapacity())

	r.workers.Add(cfg.Workers)
	p.live.Add(int32(cfg.Workers))
	for i := 0; i < cfg.Workers; i++ {
		go p.work(r)
	}
	go func() {
		r.workers.Wait()
		close(r.results)
	}()
	go p.collect(r)
	go func() {
		select {
		case <-ctx.Done():
			p.abort(r, ctx.Err())
		case <-r.done:
		}
	}()
	return nil
}

// claim hands out the next frame, or false once the range is exhausted or
// the run was cancelled.
func (p *Pipeline) claim(r *run) (frame int, t float64, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.cont {
		return 0, 0, false
	}
	if p.cursor >= p.frames {
		if p.state == Running {
			p.state = Draining
		}
		return 0, 0, false
	}
	frame = p.cursor
	p.cursor++
	p.stats.Dispatched++
	return frame, r.cfg.Start + float64(frame)/r.cfg.FPS, true
}

func (p *Pipeline) work(r *run) {
	defer r.workers.Done()
	defer p.live.Add(-1)

	for {
		frame, t, ok := p.claim(r)
		if !ok {
			return
		}

		img, err := p.renderer.Render(r.ctx, t)
		if err != nil {
			if r.stopped() || r.ctx.Err() != nil {
				p.count(func(s *Stats) { s.Discarded++ })
				return
			}
			p.count(func(s *Stats) { s.Failed++ })
			p.abort(r, &FrameError{FrameNumber: frame, Time: t, Stage: StageRender, Err: err})
			return
		}

		select {
		case r.results <- result{frame: frame, t: t, img: img}:
			depth := len(r.results)
			p.count(func(s *Stats) { s.MaxQueueDepth = max(s.MaxQueueDepth, depth) })
		case <-r.stop:
			p.count(func(s *Stats) { s.Discarded++ })
			return
		}
	}
}

func (p *Pipeline) collect(r *run) {
	log := logging.Logger()
	var lastPreview time.Time

	for res := range r.results {
		if r.stopped() {
			p.count(func(s *Stats) { s.Discarded++ })
			continue
		}
		if err := p.sink.WriteFrame(res.frame, res.img); err != nil {
			p.count(func(s *Stats) { s.Failed++ })
			p.abort(r, &FrameError{FrameNumber: res.frame, Time: res.t, Stage: StagePersist, Err: err})
			continue
		}
		p.count(func(s *Stats) { s.Persisted++ })
		log.Debug("frame persisted", "frame", res.frame, "t", res.t)

		if p.preview == nil {
			continue
		}
		now := time.Now()
		if !lastPreview.IsZero() && now.Sub(lastPreview) < r.cfg.PreviewInterval {
			continue
		}
		lastPreview = now
		p.preview(Preview{FrameNumber: res.frame, Time: res.t, Image: Downscale(res.img, r.cfg.PreviewWidth)})
		p.count(func(s *Stats) { s.Previews++ })
	}

	p.mu.Lock()
	if p.err == nil && r.parent.Err() != nil {
		p.err = r.parent.Err()
	}
	p.state = Idle
	p.run = nil
	p.cont = false
	stats, err := p.stats, p.err
	p.mu.Unlock()
	r.cancel()
	close(r.done)

	log.Info("pipeline finished",
		"persisted", stats.Persisted, "discarded", stats.Discarded, "failed", stats.Failed, "err", err)
}

func (p *Pipeline) count(f func(*Stats)) {
	p.mu.Lock()
	f(&p.stats)
	p.mu.Unlock()
}

// abort records err as the run's error unless one is already set, then
// cancels the run. A nil err is a plain user cancellation.
func (p *Pipeline) abort(r *run, err error) {
	p.mu.Lock()
	if p.run != r {
		p.mu.Unlock()
		return
	}
	if err != nil && p.err == nil {
		p.err = err
		logging.Logger().Error("pipeline failed", "err", err)
	}
	p.cont = false
	p.state = Cancelling
	p.mu.Unlock()
	r.halt()
}

// Cancel requests cancellation without waiting for the run to wind down.
// It is safe from any goroutine, including a PreviewFunc, and a no-op when
// idle.
func (p *Pipeline) Cancel() {
	p.mu.Lock()
	r := p.run
	p.mu.Unlock()
	if r != nil {
		p.abort(r, nil)
	}
}

// Stop cancels the current run and blocks until the pipeline is Idle.
// Calling it when idle or more than once is harmless.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	r := p.run
	p.mu.Unlock()
	if r == nil {
		return
	}
	p.abort(r, nil)
	<-r.done
}

// Wait blocks until the current run is over and returns its first fatal
// error. It returns the previous run's error when already idle.
func (p *Pipeline) Wait() error {
	p.mu.Lock()
	r := p.run
	p.mu.Unlock()
	if r != nil {
		<-r.done
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Done is closed when the current run ends. It is nil when idle.
func (p *Pipeline) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.run == nil {
		return nil
	}
	return p.run.done
}

func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	s := p.stats
	p.mu.Unlock()
	s.LiveWorkers = int(p.live.Load())
	return s
}
