package viz

import (
	"image"
	"image/color"
	"strings"
)

// Braille Patterns: 2x4 dots
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

// Canvas is a grid of braille cells, each holding 2x4 sub-pixels.
type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// Set lights the sub-pixel at (x, y). The canvas is Width*2 by Height*4
// sub-pixels.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = 0x2800
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

// luminanceThreshold separates lit from dark sub-pixels, on the 16-bit
// scale of color.Gray16.
const luminanceThreshold = 0x3000

// DrawImage samples img onto the canvas, lighting every sub-pixel whose
// source pixel is brighter than the background.
func (c *Canvas) DrawImage(img image.Image) {
	c.Clear()
	b := img.Bounds()
	if b.Empty() {
		return
	}
	sw, sh := c.Width*2, c.Height*4
	for y := 0; y < sh; y++ {
		sy := b.Min.Y + y*b.Dy()/sh
		for x := 0; x < sw; x++ {
			sx := b.Min.X + x*b.Dx()/sw
			if color.Gray16Model.Convert(img.At(sx, sy)).(color.Gray16).Y > luminanceThreshold {
				c.Set(x, y)
			}
		}
	}
}
