package gasket

import (
	"math"
	"math/cmplx"
)

// ThreeCirclesFromRadii lays out three mutually tangent circles with the
// given radii and returns them together with the circle enclosing all
// three. The enclosing circle comes first and has a negative radius.
//
// c2 sits at the origin, c3 on the positive x axis, c4 above the axis.
// Nothing is validated here: a configuration without an enclosing circle
// or with a singular solve shows up as a non-negative or non-finite radius
// on the first circle.
func ThreeCirclesFromRadii(r2, r3, r4 float64) [4]Circle {
	c2 := NewCircle(0, r2)
	c3 := NewCircle(complex(r2+r3, 0), r3)

	d23 := r2 + r3
	d24 := r2 + r4
	d34 := r3 + r4
	x := (d24*d24 - d34*d34 + d23*d23) / (2 * d23)
	y := math.Sqrt(d24*d24 - x*x)
	c4 := NewCircle(complex(x, y), r4)

	c1 := enclosing(c2, c3, c4)
	return [4]Circle{c1, c2, c3, c4}
}

// enclosing solves the Descartes relation on the "-" root, which for three
// externally tangent circles is the circle around them.
func enclosing(a, b, c Circle) Circle {
	ka, kb, kc := a.Curvature(), b.Curvature(), c.Curvature()
	k := ka + kb + kc - 2*math.Sqrt(ka*kb+kb*kc+kc*ka)

	za, zb, zc := a.Center, b.Center, c.Center
	sum := complex(ka, 0)*za + complex(kb, 0)*zb + complex(kc, 0)*zc
	root := 2 * cmplx.Sqrt(complex(ka*kb, 0)*za*zb+complex(kb*kc, 0)*zb*zc+complex(kc*ka, 0)*zc*za)

	r := 1 / k
	plus := NewCircle((sum+root)/complex(k, 0), r)
	minus := NewCircle((sum-root)/complex(k, 0), r)

	// The complex companion formula has two roots; only one of them is
	// tangent to all three circles.
	if residual(minus, a, b, c) < residual(plus, a, b, c) {
		return minus
	}
	return plus
}

func residual(x Circle, others ...Circle) float64 {
	sum := 0.0
	for _, o := range others {
		sum += x.TangencyError(o)
	}
	return sum
}

// SecondSolution returns the other circle tangent to c1, c2 and c3 given
// that fixed is one of the two. Both roots of the Descartes relation sum to
// 2(k1+k2+k3), and the complex relation is linear in the same way, so no
// square root is needed.
func SecondSolution(fixed, c1, c2, c3 Circle) Circle {
	k1, k2, k3 := c1.Curvature(), c2.Curvature(), c3.Curvature()
	kf := fixed.Curvature()
	k := 2*(k1+k2+k3) - kf

	z := 2*(complex(k1, 0)*c1.Center+complex(k2, 0)*c2.Center+complex(k3, 0)*c3.Center) -
		complex(kf, 0)*fixed.Center

	return NewCircle(z/complex(k, 0), 1/k)
}

// DescartesResidual measures how far four curvatures are from satisfying
// (k1+k2+k3+k4)^2 = 2(k1^2+k2^2+k3^2+k4^2), relative to the left side.
func DescartesResidual(cs [4]Circle) float64 {
	var sum, sq float64
	for _, c := range cs {
		k := c.Curvature()
		sum += k
		sq += k * k
	}
	lhs := sum * sum
	if lhs == 0 {
		return math.Abs(2 * sq)
	}
	return math.Abs(lhs-2*sq) / lhs
}
