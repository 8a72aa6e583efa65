package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorRoundTrip(t *testing.T) {
	in := []float32{0.25, -1.5, 0, 3.125}

	out, err := decodeVector(encodeVector(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEncodeVectorLiteral(t *testing.T) {
	assert.Equal(t, "[0.5,-1,2]", encodeVector([]float32{0.5, -1, 2}))
	assert.Equal(t, "[]", encodeVector(nil))
}

func TestDecodeVectorWhitespaceTolerant(t *testing.T) {
	out, err := decodeVector(" [0.1, 0.2, 0.3] ")
	require.NoError(t, err)
	assert.Len(t, out, 3)
}

func TestClampSimilarityRange(t *testing.T) {
	assert.Equal(t, 0.0, clampSimilarity(-0.4))
	assert.Equal(t, 0.0, clampSimilarity(0.0))
	assert.Equal(t, 0.73, clampSimilarity(0.73))
	assert.Equal(t, 1.0, clampSimilarity(1.0))
}

func TestDecodeVectorRejectsMalformed(t *testing.T) {
	for _, s := range []string{"0.1,0.2", "[0.1,oops]", "{0.1}"} {
		_, err := decodeVector(s)
		assert.Error(t, err, "input %q", s)
	}
}
