// Package reveal decides on which frame each circle of a packing first
// appears.
package reveal

import "github.com/san-kum/gasket/internal/random"

// LeadIn is the number of frames during which only the reference circle is
// visible.
const LeadIn = 1

// Schedule maps a circle's generation index to its reveal frame.
type Schedule []int

// Build assigns reveal frames for n circles over frames output frames.
// Circle 0 is always revealed on frame 0. The others are shuffled with rng
// and spread proportionally over the remaining frames in shuffled order, so
// the last of them appears no later than the final frame.
func Build(n, frames int, rng *random.Random) Schedule {
	s := make(Schedule, n)
	if n <= 1 {
		return s
	}

	order := make([]int, n-1)
	for i := range order {
		order[i] = i + 1
	}
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	lead := LeadIn
	if frames <= lead {
		lead = 0
	}
	span := frames - lead
	if span < 1 {
		span = 1
	}

	for pos, idx := range order {
		s[idx] = lead + pos*span/(n-1)
	}
	return s
}

// Visible reports whether circle idx is drawn on frame.
func (s Schedule) Visible(idx, frame int) bool {
	return s[idx] <= frame
}

// VisibleAt counts the circles drawn on frame.
func (s Schedule) VisibleAt(frame int) int {
	count := 0
	for _, f := range s {
		if f <= frame {
			count++
		}
	}
	return count
}

// Curve returns VisibleAt for every frame in [0, frames).
func (s Schedule) Curve(frames int) []float64 {
	if frames <= 0 {
		return nil
	}
	counts := make([]int, frames+1)
	for _, f := range s {
		if f < frames {
			counts[f]++
		}
	}
	curve := make([]float64, frames)
	total := 0
	for i := 0; i < frames; i++ {
		total += counts[i]
		curve[i] = float64(total)
	}
	return curve
}

// Last returns the frame on which the final circle appears.
func (s Schedule) Last() int {
	last := 0
	for _, f := range s {
		if f > last {
			last = f
		}
	}
	return last
}
