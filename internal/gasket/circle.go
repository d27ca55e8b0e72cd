package gasket

import (
	"math"
	"math/cmplx"
)

// Circle is a value in the packing. Radius is signed: the enclosing circle
// carries a negative radius so the Descartes relations hold without case
// analysis.
type Circle struct {
	Center      complex128
	Radius      float64
	RevealFrame int
}

func NewCircle(center complex128, radius float64) Circle {
	return Circle{Center: center, Radius: radius}
}

func (c Circle) Curvature() float64 { return 1 / c.Radius }

func (c Circle) IsFinite() bool {
	if math.IsNaN(c.Radius) || math.IsInf(c.Radius, 0) || c.Radius == 0 {
		return false
	}
	return !cmplx.IsNaN(c.Center) && !cmplx.IsInf(c.Center)
}

// TangencyError returns how far c and o are from touching, using the signed
// convention: external tangency at |ra+rb|, internal when one radius is
// negative.
func (c Circle) TangencyError(o Circle) float64 {
	return math.Abs(cmplx.Abs(c.Center-o.Center) - math.Abs(c.Radius+o.Radius))
}
