// Package index embeds country-day documents and answers nearest-neighbour
// queries over immutable generations.
package index

import (
	"math"

	"github.com/agenthands/moodmap/internal/core/model"
)

// Cosine returns dot(a,b)/(|a||b|). Both vectors must have the same length
// and a non-zero norm.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, model.ErrDimensionMismatch
	}
	na, nb := norm(a), norm(b)
	if degenerate(na) || degenerate(nb) {
		return 0, &model.DegenerateVectorError{}
	}
	return clampUnit(dot(a, b) / (na * nb)), nil
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func norm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}

// degenerate reports a norm that cannot take part in a cosine: zero, NaN or
// infinite.
func degenerate(n float64) bool {
	return n == 0 || math.IsNaN(n) || math.IsInf(n, 0)
}

// clampUnit absorbs rounding that pushes |cos| a hair past 1.
func clampUnit(x float64) float64 {
	return math.Max(-1, math.Min(1, x))
}
