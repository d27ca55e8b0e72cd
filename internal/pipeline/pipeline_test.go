package pipeline_test

import (
	"context"
	"errors"
	"image"
	"math"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/gasket/internal/pipeline"
)

const fps = 10.0

type fakeRenderer struct {
	delay  time.Duration
	failAt int
	err    error
}

func (f *fakeRenderer) Render(ctx context.Context, t float64) (image.Image, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil && int(math.Round(t*fps)) == f.failAt {
		return nil, f.err
	}
	return image.NewRGBA(image.Rect(0, 0, 32, 16)), nil
}

type memorySink struct {
	mu      sync.Mutex
	writes  map[int]int
	gate    chan struct{}
	failAt  int
	err     error
	onWrite func(persisted int)
}

func newMemorySink() *memorySink {
	return &memorySink{writes: make(map[int]int), failAt: -1}
}

func (s *memorySink) WriteFrame(frame int, img image.Image) error {
	if s.gate != nil {
		<-s.gate
	}
	if s.err != nil && frame == s.failAt {
		return s.err
	}
	s.mu.Lock()
	s.writes[frame]++
	n := len(s.writes)
	s.mu.Unlock()
	if s.onWrite != nil {
		s.onWrite(n)
	}
	return nil
}

func (s *memorySink) persisted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

func (s *memorySink) duplicates() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var dup []int
	for frame, n := range s.writes {
		if n > 1 {
			dup = append(dup, frame)
		}
	}
	return dup
}

func (s *memorySink) has(frame int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes[frame] > 0
}

// hundredFrames covers t in [0, 9.9] at 10 fps.
func hundredFrames(workers int) pipeline.Config {
	return pipeline.Config{Workers: workers, Start: 0, End: 9.9, FPS: fps}
}

func expectBalanced(s pipeline.Stats) {
	ExpectWithOffset(1, s.LiveWorkers).To(BeZero())
	ExpectWithOffset(1, s.Dispatched).To(Equal(s.Persisted + s.Discarded + s.Failed))
}

var _ = Describe("Pipeline", func() {
	var (
		renderer *fakeRenderer
		sink     *memorySink
		p        *pipeline.Pipeline
	)

	BeforeEach(func() {
		renderer = &fakeRenderer{failAt: -1}
		sink = newMemorySink()
		p = pipeline.New(renderer, sink, nil)
	})

	Describe("a run to completion", func() {
		It("persists every frame exactly once", func() {
			Expect(p.Start(context.Background(), hundredFrames(4))).To(Succeed())
			Expect(p.Wait()).To(Succeed())

			Expect(sink.persisted()).To(Equal(100))
			Expect(sink.duplicates()).To(BeEmpty())
			for frame := 0; frame < 100; frame++ {
				Expect(sink.has(frame)).To(BeTrue(), "frame %d missing", frame)
			}

			stats := p.Stats()
			Expect(stats.Frames).To(Equal(100))
			Expect(stats.Dispatched).To(Equal(100))
			Expect(stats.Persisted).To(Equal(100))
			expectBalanced(stats)
			Expect(p.State()).To(Equal(pipeline.Idle))
		})

		It("renders a single frame when start equals end", func() {
			cfg := pipeline.Config{Workers: 3, Start: 2, End: 2, FPS: fps}
			Expect(p.Start(context.Background(), cfg)).To(Succeed())
			Expect(p.Wait()).To(Succeed())
			Expect(sink.persisted()).To(Equal(1))
		})

		It("can be started again once idle", func() {
			Expect(p.Start(context.Background(), hundredFrames(2))).To(Succeed())
			Expect(p.Wait()).To(Succeed())

			sink.writes = make(map[int]int)
			Expect(p.Start(context.Background(), hundredFrames(2))).To(Succeed())
			Expect(p.Wait()).To(Succeed())
			Expect(sink.persisted()).To(Equal(100))
			Expect(p.Stats().Dispatched).To(Equal(100))
		})
	})

	Describe("cancellation", func() {
		It("stops after the frame that triggered it and leaks nothing", func() {
			renderer.delay = 2 * time.Millisecond
			sink.onWrite = func(n int) {
				if n == 20 {
					p.Cancel()
				}
			}

			Expect(p.Start(context.Background(), hundredFrames(4))).To(Succeed())
			Expect(p.Wait()).To(Succeed())

			stats := p.Stats()
			Expect(stats.Persisted).To(Equal(20))
			Expect(stats.Dispatched).To(BeNumerically("<", 100))
			expectBalanced(stats)
			Consistently(sink.persisted, 50*time.Millisecond).Should(Equal(20))
			Expect(p.State()).To(Equal(pipeline.Idle))
		})

		It("treats Stop before Start as a no-op", func() {
			p.Stop()
			p.Stop()
			Expect(p.State()).To(Equal(pipeline.Idle))
			Expect(p.Wait()).To(Succeed())
		})

		It("is idempotent when stopped from several goroutines", func() {
			renderer.delay = 5 * time.Millisecond
			Expect(p.Start(context.Background(), hundredFrames(4))).To(Succeed())
			Eventually(sink.persisted).Should(BeNumerically(">", 0))

			var wg sync.WaitGroup
			for i := 0; i < 3; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					p.Stop()
				}()
			}
			wg.Wait()
			p.Stop()

			Expect(p.State()).To(Equal(pipeline.Idle))
			Expect(p.Wait()).To(Succeed())
			expectBalanced(p.Stats())
		})

		It("reports the caller's context error", func() {
			renderer.delay = 5 * time.Millisecond
			ctx, cancel := context.WithCancel(context.Background())
			Expect(p.Start(ctx, hundredFrames(4))).To(Succeed())
			Eventually(sink.persisted).Should(BeNumerically(">", 0))
			cancel()

			err := p.Wait()
			Expect(errors.Is(err, context.Canceled)).To(BeTrue(), "got %v", err)
			Expect(sink.persisted()).To(BeNumerically("<", 100))
			expectBalanced(p.Stats())
		})
	})

	Describe("backpressure", func() {
		It("never holds more than workers+2 finished frames", func() {
			const workers = 3
			sink.gate = make(chan struct{})
			Expect(p.Start(context.Background(), hundredFrames(workers))).To(Succeed())

			Eventually(func() int { return p.Stats().MaxQueueDepth }).Should(Equal(workers + 2))
			// one frame in the sink, a full queue, one blocked result per worker
			Consistently(func() int { return p.Stats().Dispatched }, 50*time.Millisecond).
				Should(BeNumerically("<=", 1+(workers+2)+workers))

			close(sink.gate)
			Expect(p.Wait()).To(Succeed())
			stats := p.Stats()
			Expect(stats.Persisted).To(Equal(100))
			Expect(stats.MaxQueueDepth).To(BeNumerically("<=", workers+2))
			Expect(sink.duplicates()).To(BeEmpty())
		})
	})

	Describe("failures", func() {
		It("surfaces a render error with its frame", func() {
			boom := errors.New("rasterizer exploded")
			renderer.err, renderer.failAt = boom, 7

			Expect(p.Start(context.Background(), hundredFrames(4))).To(Succeed())
			err := p.Wait()
			Expect(err).To(MatchError(boom))

			var fe *pipeline.FrameError
			Expect(errors.As(err, &fe)).To(BeTrue())
			Expect(fe.FrameNumber).To(Equal(7))
			Expect(fe.Stage).To(Equal(pipeline.StageRender))

			stats := p.Stats()
			Expect(stats.Failed).To(Equal(1))
			expectBalanced(stats)
			Expect(sink.has(7)).To(BeFalse())
		})

		It("surfaces a persist error with its frame", func() {
			diskFull := errors.New("no space left on device")
			sink.err, sink.failAt = diskFull, 5

			Expect(p.Start(context.Background(), hundredFrames(2))).To(Succeed())
			err := p.Wait()
			Expect(err).To(MatchError(diskFull))

			var fe *pipeline.FrameError
			Expect(errors.As(err, &fe)).To(BeTrue())
			Expect(fe.FrameNumber).To(Equal(5))
			Expect(fe.Stage).To(Equal(pipeline.StagePersist))

			stats := p.Stats()
			Expect(stats.Failed).To(Equal(1))
			Expect(stats.Persisted).To(BeNumerically("<", 100))
			expectBalanced(stats)
		})
	})

	Describe("Start", func() {
		It("rejects a second run while one is active", func() {
			renderer.delay = 5 * time.Millisecond
			Expect(p.Start(context.Background(), hundredFrames(2))).To(Succeed())
			Expect(p.Start(context.Background(), hundredFrames(2))).To(MatchError(pipeline.ErrNotIdle))
			p.Stop()
		})

		DescribeTable("rejects invalid configurations",
			func(cfg pipeline.Config) {
				Expect(p.Start(context.Background(), cfg)).To(MatchError(pipeline.ErrInvalidConfig))
				Expect(p.State()).To(Equal(pipeline.Idle))
			},
			Entry("no workers", pipeline.Config{Workers: 0, End: 1, FPS: fps}),
			Entry("zero fps", pipeline.Config{Workers: 1, End: 1}),
			Entry("end before start", pipeline.Config{Workers: 1, Start: 2, End: 1, FPS: fps}),
			Entry("too many frames", pipeline.Config{Workers: 1, End: 1e12, FPS: fps}),
			Entry("negative preview width", pipeline.Config{Workers: 1, End: 1, FPS: fps, PreviewWidth: -1}),
		)
	})

	Describe("previews", func() {
		var (
			mu       sync.Mutex
			previews []pipeline.Preview
		)

		BeforeEach(func() {
			previews = nil
			p = pipeline.New(renderer, sink, func(pv pipeline.Preview) {
				mu.Lock()
				previews = append(previews, pv)
				mu.Unlock()
			})
		})

		It("publishes one downscaled preview per interval", func() {
			cfg := hundredFrames(4)
			cfg.PreviewInterval = time.Hour
			cfg.PreviewWidth = 8

			Expect(p.Start(context.Background(), cfg)).To(Succeed())
			Expect(p.Wait()).To(Succeed())

			mu.Lock()
			defer mu.Unlock()
			Expect(previews).To(HaveLen(1))
			Expect(previews[0].Image.Bounds().Dx()).To(Equal(8))
			Expect(previews[0].Image.Bounds().Dy()).To(Equal(4))
			Expect(p.Stats().Previews).To(Equal(1))
		})

		It("publishes every frame without an interval", func() {
			Expect(p.Start(context.Background(), hundredFrames(2))).To(Succeed())
			Expect(p.Wait()).To(Succeed())

			mu.Lock()
			defer mu.Unlock()
			Expect(previews).To(HaveLen(100))
			Expect(previews[0].Image.Bounds().Dx()).To(Equal(32))
		})
	})
})

var _ = Describe("Downscale", func() {
	It("keeps the aspect ratio", func() {
		src := image.NewRGBA(image.Rect(0, 0, 100, 50))
		Expect(pipeline.Downscale(src, 20).Bounds()).To(Equal(image.Rect(0, 0, 20, 10)))
	})

	It("leaves small images alone", func() {
		src := image.NewRGBA(image.Rect(0, 0, 10, 10))
		Expect(pipeline.Downscale(src, 20)).To(BeIdenticalTo(src))
		Expect(pipeline.Downscale(src, 0)).To(BeIdenticalTo(src))
	})
})
