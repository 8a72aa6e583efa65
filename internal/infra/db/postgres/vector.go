package postgres

import (
	"fmt"
	"strconv"
	"strings"
)

// encodeVector renders a float slice as a pgvector literal, e.g.
// "[0.1,0.2,0.3]". The literal is always bound as a parameter with a
// ::vector cast, never interpolated into SQL.
func encodeVector(vec []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// decodeVector parses a pgvector text representation back into floats.
func decodeVector(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("malformed vector literal: %q", truncateLiteral(s))
	}
	s = strings.Trim(s, "[]")
	if s == "" {
		return []float32{}, nil
	}
	parts := strings.Split(s, ",")
	vec := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("parsing vector element %d: %w", i, err)
		}
		vec[i] = float32(f)
	}
	return vec, nil
}

// clampSimilarity maps 1 - cosine_distance, which can go negative for
// opposing vectors, onto the [0,1] range similarity scores are
// documented to carry. The SQL ORDER BY already ranked on the raw value.
func clampSimilarity(s float64) float64 {
	if s < 0 {
		return 0
	}
	return s
}

func truncateLiteral(s string) string {
	if len(s) > 32 {
		return s[:32] + "..."
	}
	return s
}
