package render

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/gogpu/gg"
	"github.com/san-kum/gasket/internal/random"
)

// Background fills the canvas outside the reference circle.
var Background color.Color = color.RGBA{R: 0x0a, G: 0x0a, B: 0x12, A: 0xff}

// circleColor draws the next palette entry. Every circle consumes exactly
// one entry whether or not it is visible, so a circle keeps its colour
// across frames.
func circleColor(rng *random.Random) color.Color {
	h := rng.Float64() * 360
	s := 0.55 + 0.35*rng.Float64()
	l := 0.45 + 0.2*rng.Float64()
	return gg.HSL(h, s, l).Color()
}

// DrawFrame renders the frame for time t onto c. Circles are drawn in
// generation order; visibility comes from each circle's reveal frame, never
// from state shared between renders.
func (a *Animation) DrawFrame(c Canvas, t float64) error {
	st := a.State
	frame := st.FrameIndex(t)
	rng := random.New(st.Seed)

	c.Clear(Background)

	ref := a.Gasket.Reference()
	x, y, r := st.ToCanvas(ref.Center, ref.Radius)
	if err := c.FillCircle(x, y, r, circleColor(rng)); err != nil {
		return fmt.Errorf("draw reference circle: %w", err)
	}

	for i, circle := range a.Gasket.Generated {
		col := circleColor(rng)
		if !a.Schedule.Visible(i, frame) {
			continue
		}
		x, y, r := st.ToCanvas(circle.Center, circle.Radius)
		if err := c.FillCircle(x, y, r, col); err != nil {
			return fmt.Errorf("draw circle %d: %w", i, err)
		}
	}
	return nil
}

// Colors returns the colour of the reference circle followed by the colour
// of every generated circle, as DrawFrame assigns them.
func (a *Animation) Colors() []color.Color {
	rng := random.New(a.State.Seed)
	cols := make([]color.Color, 0, 1+len(a.Gasket.Generated))
	for i := 0; i <= len(a.Gasket.Generated); i++ {
		cols = append(cols, circleColor(rng))
	}
	return cols
}

// Renderer turns time points into owned images. It is safe for concurrent
// use: each call borrows its own canvas.
type Renderer struct {
	anim *Animation
	pool *CanvasPool
}

func NewRenderer(a *Animation) *Renderer {
	return NewRendererWithPool(a, NewCanvasPool(a.State.Width, a.State.Height, nil))
}

func NewRendererWithPool(a *Animation, pool *CanvasPool) *Renderer {
	return &Renderer{anim: a, pool: pool}
}

func (r *Renderer) Animation() *Animation { return r.anim }

func (r *Renderer) Render(ctx context.Context, t float64) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := r.pool.Get()
	defer r.pool.Put(c)

	if err := r.anim.DrawFrame(c, t); err != nil {
		return nil, err
	}
	return c.Image(), nil
}
