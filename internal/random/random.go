// Package random provides the seeded pseudo-random source every stochastic
// part of a run draws from: starting curvatures, reveal order and circle
// colours.
//
// A Random is not safe for concurrent use. Goroutines that need random
// numbers create their own instance from the run seed, which keeps output
// independent of scheduling.
package random

import "math/rand"

type Random struct {
	seed int64
	src  *rand.Rand
}

func New(seed int64) *Random {
	return &Random{seed: seed, src: rand.New(rand.NewSource(seed))}
}

// Reset rewinds the generator to the state it had right after New.
func (r *Random) Reset() {
	r.src = rand.New(rand.NewSource(r.seed))
}

func (r *Random) Seed() int64 { return r.seed }

func (r *Random) Float64() float64 { return r.src.Float64() }

// Range returns a value in [lo, hi).
func (r *Random) Range(lo, hi float64) float64 {
	return lo + r.src.Float64()*(hi-lo)
}

func (r *Random) Intn(n int) int { return r.src.Intn(n) }

// Shuffle permutes n elements with a Fisher-Yates pass from the top down.
func (r *Random) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := r.src.Intn(i + 1)
		swap(i, j)
	}
}
