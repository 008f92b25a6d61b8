package engagement

import "math/rand/v2"

// Rand is the randomness the engine consumes: template choice and the
// odds of optional mails. *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

type globalRand struct{}

func (globalRand) IntN(n int) int    { return rand.IntN(n) }
func (globalRand) Float64() float64 { return rand.Float64() }

// DefaultRand draws from the process-wide source, which is safe for
// concurrent use. A seeded *rand.Rand is not.
func DefaultRand() Rand { return globalRand{} }

// pick returns a uniformly chosen element of xs.
func pick[T any](r Rand, xs []T) (T, bool) {
	var zero T
	if len(xs) == 0 {
		return zero, false
	}
	return xs[r.IntN(len(xs))], true
}
