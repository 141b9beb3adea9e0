package shuffle

import "math/rand"

// Shuffle returns a new slice with the same elements as items in
// pseudo-random order. The input is never mutated. A nil rng falls
// back to the shared package-level source.
func Shuffle[T any](rng *rand.Rand, items []T) []T {
	out := make([]T, len(items))
	copy(out, items)

	swap := func(i, j int) {
		out[i], out[j] = out[j], out[i]
	}

	if rng != nil {
		rng.Shuffle(len(out), swap)
	} else {
		rand.Shuffle(len(out), swap)
	}

	return out
}
