package export

import (
	"encoding/base64"
	"encoding/binary"
	"math"

	"github.com/weftlab/weft/internal/types"
)

// Embeddings travel as base64 over little-endian float64 words so a
// round-trip reproduces the stored vector bit for bit; a decimal text
// rendering would not.

func encodeVector(vec []float64) string {
	buf := make([]byte, 8*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func decodeVector(s string, dims int) ([]float64, error) {
	buf, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, types.NewValidationError("embedding is not valid base64: %v", err)
	}
	if len(buf)%8 != 0 {
		return nil, types.NewValidationError("embedding payload is %d bytes, not a multiple of 8", len(buf))
	}
	vec := make([]float64, len(buf)/8)
	for i := range vec {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	if dims > 0 && len(vec) != dims {
		return nil, types.NewValidationError("embedding has %d dimensions, manifest declares %d", len(vec), dims)
	}
	return vec, nil
}
