package database

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorToString(t *testing.T) {
	dm := &DBManager{config: &Config{EmbeddingDims: 3}}
	s, err := dm.vectorToString([]float32{1, float32(math.NaN()), -0.5})
	require.NoError(t, err)
	assert.Equal(t, "[1.000000, 0.000000, -0.500000]", s)

	_, err = dm.vectorToString([]float32{1})
	assert.Error(t, err)

	s, err = dm.vectorToString(nil)
	require.NoError(t, err)
	assert.Equal(t, "[0.0, 0.0, 0.0]", s)
}

func TestExtractVector(t *testing.T) {
	dm := &DBManager{config: &Config{EmbeddingDims: 2}}
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(0.25))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(-2))
	v, err := dm.ExtractVector(buf)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -2}, v)

	_, err = dm.ExtractVector(buf[:5])
	assert.Error(t, err)
}

// FuzzFormatVector checks that any finite or non-finite input renders as a
// bracketed list with one component per element.
func FuzzFormatVector(f *testing.F) {
	f.Add([]byte{1, 2, 3, 4})
	f.Add([]byte{})
	f.Add([]byte{0xff, 0xff, 0xff, 0x7f, 0, 0, 0x80, 0x7f})
	f.Fuzz(func(t *testing.T, b []byte) {
		vec := make([]float32, len(b)/4)
		for i := range vec {
			vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
		}
		s := formatVector(vec)
		if s[0] != '[' || s[len(s)-1] != ']' {
			t.Fatalf("malformed vector string %q", s)
		}
		if len(vec) > 0 {
			assert.NotContains(t, s, "NaN")
			assert.NotContains(t, s, "Inf")
		}
	})
}

func TestDetectDimsFromDDL(t *testing.T) {
	assert.Equal(t, 64, parseBlobDims("CREATE TABLE vectors (embedding F32_BLOB(64))"))
	assert.Equal(t, 0, parseBlobDims("CREATE TABLE vectors (embedding BLOB)"))
}
