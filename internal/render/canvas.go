package render

import (
	"image"
	"image/color"

	"github.com/gogpu/gg"
)

// Canvas is the raster surface a frame is drawn on.
type Canvas interface {
	Width() int
	Height() int
	Clear(c color.Color)
	FillCircle(x, y, r float64, c color.Color) error
	// Image returns a snapshot the caller owns.
	Image() image.Image
}

// GGCanvas draws with the gg software rasterizer.
type GGCanvas struct {
	dc *gg.Context
}

func NewGGCanvas(width, height int) *GGCanvas {
	return &GGCanvas{dc: gg.NewContext(width, height)}
}

func (c *GGCanvas) Width() int  { return c.dc.Width() }
func (c *GGCanvas) Height() int { return c.dc.Height() }

func (c *GGCanvas) Clear(col color.Color) {
	c.dc.ClearWithColor(gg.FromColor(col))
}

func (c *GGCanvas) FillCircle(x, y, r float64, col color.Color) error {
	c.dc.SetColor(col)
	c.dc.DrawCircle(x, y, r)
	return c.dc.Fill()
}

func (c *GGCanvas) Image() image.Image {
	return c.dc.Image()
}

func (c *GGCanvas) Close() error {
	return c.dc.Close()
}
