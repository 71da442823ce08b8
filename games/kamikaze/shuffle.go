/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package kamikaze

import "math/rand/v2"

// Source draws uniform integers in [0, n). *rand.Rand satisfies it.
type Source interface {
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) IntN(n int) int {
	return rand.IntN(n)
}

// DefaultSource uses the math/rand/v2 package generator, which is safe for
// concurrent use.
var DefaultSource Source = globalSource{}

// Shuffle returns a Fisher-Yates permutation of in, leaving in untouched.
func Shuffle[T any](src Source, in []T) []T {
	out := make([]T, len(in))
	copy(out, in)

	for i := len(out) - 1; i > 0; i-- {
		j := src.IntN(i + 1)
		out[i], out[j] = out[j], out[i]
	}

	return out
}
