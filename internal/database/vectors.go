package database

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// vectorZeroString builds a zero vector string for current embedding dims
func (dm *DBManager) vectorZeroString() string {
	dims := dm.config.EmbeddingDims
	if dims <= 0 {
		dims = 4
	}
	parts := make([]string, dims)
	for i := range parts {
		parts[i] = "0.0"
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// vectorToString converts a float32 array to libSQL vector string format.
// Non-finite components are written as 0.
func (dm *DBManager) vectorToString(numbers []float32) (string, error) {
	if len(numbers) == 0 {
		return dm.vectorZeroString(), nil
	}
	dims := dm.config.EmbeddingDims
	if dims <= 0 {
		dims = 4
	}
	if len(numbers) != dims {
		return "", fmt.Errorf("vector must have exactly %d dimensions, got %d", dims, len(numbers))
	}
	return formatVector(numbers), nil
}

func formatVector(numbers []float32) string {
	var b strings.Builder
	b.Grow(len(numbers) * 10)
	b.WriteByte('[')
	for i, n := range numbers {
		if i > 0 {
			b.WriteString(", ")
		}
		if math.IsNaN(float64(n)) || math.IsInf(float64(n), 0) {
			n = 0
		}
		b.WriteString(strconv.FormatFloat(float64(n), 'f', 6, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// ExtractVector decodes a little-endian F32_BLOB
func (dm *DBManager) ExtractVector(embedding []byte) ([]float32, error) {
	if len(embedding) == 0 {
		return nil, nil
	}
	dims := dm.config.EmbeddingDims
	if len(embedding) != dims*4 {
		return nil, fmt.Errorf("invalid embedding size: expected %d bytes for %d-dimensional vector, got %d", dims*4, dims, len(embedding))
	}
	vector := make([]float32, dims)
	for i := 0; i < dims; i++ {
		bits := binary.LittleEndian.Uint32(embedding[i*4 : (i+1)*4])
		vector[i] = math.Float32frombits(bits)
	}
	return vector, nil
}
