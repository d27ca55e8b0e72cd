package pipeline

import (
	"image"

	"golang.org/x/image/draw"
)

// Downscale returns a copy of src scaled to width pixels, keeping the
// aspect ratio. Images already narrower than width, or width <= 0, are
// returned unchanged.
func Downscale(src image.Image, width int) image.Image {
	b := src.Bounds()
	if width <= 0 || b.Dx() <= width {
		return src
	}
	height := max(1, b.Dy()*width/b.Dx())
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}
