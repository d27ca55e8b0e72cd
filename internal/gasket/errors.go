package gasket

import (
	"errors"
	"fmt"
)

// ErrDegenerate indicates the starting curvatures produced a packing that
// cannot be drawn: a non-finite circle or no enclosing circle at all.
var ErrDegenerate = errors.New("gasket: degenerate starting circles")

// DegenerateError wraps ErrDegenerate with the curvatures that caused it.
type DegenerateError struct {
	Curvatures [3]float64
}

func (e *DegenerateError) Error() string {
	return fmt.Sprintf("%v (curvatures %.4f, %.4f, %.4f)",
		ErrDegenerate, e.Curvatures[0], e.Curvatures[1], e.Curvatures[2])
}

func (e *DegenerateError) Unwrap() error {
	return ErrDegenerate
}
