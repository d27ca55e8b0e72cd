package viz

import (
	"fmt"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/gasket/internal/reveal"
)

// RevealCurve plots how many circles are visible at each frame.
func RevealCurve(s reveal.Schedule, frames, width, height int) string {
	curve := s.Curve(frames)
	if len(curve) == 0 {
		return ""
	}
	if len(curve) == 1 {
		curve = append(curve, curve[0])
	}
	return asciigraph.Plot(curve,
		asciigraph.Width(width),
		asciigraph.Height(height),
		asciigraph.Caption(fmt.Sprintf("visible circles over %d frames", frames)))
}
