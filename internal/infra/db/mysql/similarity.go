package mysql

import "math"

// cosineSimilarity computes the cosine of the angle between two vectors.
// Returns 0 for mismatched lengths or zero-magnitude inputs.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// clampSimilarity maps raw cosine, which ranges over [-1,1], onto the
// [0,1] range similarity scores are documented to carry. Ranking always
// happens on the raw value first.
func clampSimilarity(s float64) float64 {
	if s < 0 {
		return 0
	}
	return s
}
