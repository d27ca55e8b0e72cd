package gasket

import "github.com/san-kum/gasket/internal/random"

// Gasket holds the four starting circles and every circle produced from
// them. Generated keeps generation order; index 0 is the special circle
// produced at depth 0, which takes the enclosing circle's slot. The
// enclosing circle itself stays available as Initial[0].
type Gasket struct {
	Initial   [4]Circle
	Generated []Circle
	Depth     int
}

// quad is one branch of the generation tree: fixed was produced last and is
// tangent to the three circles around it.
type quad struct {
	fixed  Circle
	around [3]Circle
	depth  int
}

// MaxDepth bounds generation. Depth 12 already yields close to 800k circles.
const MaxDepth = 12

// CircleCount is the length of Generated after generating to depth. Depths
// above MaxDepth count as MaxDepth.
func CircleCount(depth int) int {
	if depth <= 0 {
		return 4
	}
	depth = min(depth, MaxDepth)
	pow := 1
	for i := 0; i < depth; i++ {
		pow *= 3
	}
	return 4 + 3*(pow-1)
}

// Generate grows the packing from initial down to maxDepth, clamped to
// [0, MaxDepth]. The tree is
// walked with an explicit stack so deep configurations cannot exhaust the
// goroutine stack.
func Generate(initial [4]Circle, maxDepth int) *Gasket {
	maxDepth = max(0, min(maxDepth, MaxDepth))
	g := &Gasket{
		Initial:   initial,
		Generated: make([]Circle, 4, CircleCount(maxDepth)),
		Depth:     maxDepth,
	}
	copy(g.Generated, initial[:])

	outer, inner := initial[0], [3]Circle{initial[1], initial[2], initial[3]}
	special := SecondSolution(outer, inner[0], inner[1], inner[2])
	g.Generated[0] = special

	// top of stack is popped first: the special circle's branch, then the
	// gaps between the inner circles and the enclosing one.
	stack := []quad{
		{fixed: outer, around: inner},
		{fixed: special, around: inner},
	}

	for len(stack) > 0 {
		q := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if q.depth >= maxDepth {
			continue
		}

		var children [3]quad
		for i := 0; i < 3; i++ {
			replaced := q.around[i]
			o1, o2 := q.around[(i+1)%3], q.around[(i+2)%3]
			next := SecondSolution(replaced, q.fixed, o1, o2)
			g.Generated = append(g.Generated, next)
			children[i] = quad{
				fixed:  next,
				around: [3]Circle{q.fixed, o1, o2},
				depth:  q.depth + 1,
			}
		}
		for i := 2; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}

	return g
}

// Valid reports whether the packing can be drawn. Only the first generated
// circle and the enclosing circle are checked: degeneracy in the starting
// configuration propagates into every circle derived from it.
func (g *Gasket) Valid() bool {
	if len(g.Generated) == 0 || !g.Generated[0].IsFinite() {
		return false
	}
	ref := g.Initial[0]
	return ref.IsFinite() && ref.Radius < 0
}

// Reference is the enclosing circle used to centre and scale the drawing.
func (g *Gasket) Reference() Circle {
	return g.Initial[0]
}

// RandomGasket draws three curvatures in [minCurvature, maxCurvature) and
// generates the packing. A degenerate result is returned together with a
// *DegenerateError so callers can inspect it before reseeding.
func RandomGasket(rng *random.Random, minCurvature, maxCurvature float64, depth int) (*Gasket, error) {
	var ks [3]float64
	for i := range ks {
		ks[i] = rng.Range(minCurvature, maxCurvature)
	}

	g := Generate(ThreeCirclesFromRadii(1/ks[0], 1/ks[1], 1/ks[2]), depth)
	if !g.Valid() {
		return g, &DegenerateError{Curvatures: ks}
	}
	return g, nil
}
