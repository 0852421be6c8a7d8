package graph

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/weftlab/weft/internal/types"
)

// vectorHit is one scored id from a vector index query.
type vectorHit struct {
	id    types.ID
	score float64
}

// vectorIndex answers top-k cosine similarity queries over the
// snapshot's embeddings. The interface exists so an approximate index
// can replace the brute-force scan without touching callers.
type vectorIndex interface {
	// query returns up to k hits sorted by descending score, ties by
	// ascending id. A zero-magnitude query matches nothing.
	query(vector []float64, k int) ([]vectorHit, error)
	// len reports how many vectors the index holds.
	len() int
	// dimensions reports the fixed vector width, 0 when empty.
	dimensions() int
}

// bruteForceIndex scans every vector on each query. Magnitudes are
// precomputed at build time so a query costs one dot product per entity.
type bruteForceIndex struct {
	ids  []types.ID
	vecs [][]float64
	mags []float64
	dims int
}

// newBruteForceIndex builds an index over the entities that carry
// embeddings. The input must already be sorted by ascending id; vectors
// of inconsistent width are a build error.
func newBruteForceIndex(entities []*Entity) (*bruteForceIndex, error) {
	ix := &bruteForceIndex{}
	for _, e := range entities {
		if !e.HasEmbedding() {
			continue
		}
		if ix.dims == 0 {
			ix.dims = len(e.Embedding)
		}
		if len(e.Embedding) != ix.dims {
			return nil, types.NewStorageCorruptionError(
				"inconsistent embedding dimensions in stored graph", nil)
		}
		ix.ids = append(ix.ids, e.ID)
		ix.vecs = append(ix.vecs, e.Embedding)
		ix.mags = append(ix.mags, magnitude(e.Embedding))
	}
	return ix, nil
}

func (ix *bruteForceIndex) query(vector []float64, k int) ([]vectorHit, error) {
	if ix.dims == 0 || len(ix.vecs) == 0 {
		return nil, nil
	}
	if len(vector) != ix.dims {
		return nil, types.NewValidationError(
			"query vector has %d dimensions, store expects %d", len(vector), ix.dims)
	}
	qm := magnitude(vector)
	if qm == 0 {
		return nil, nil
	}

	hits := make([]vectorHit, 0, len(ix.vecs))
	for i := range ix.vecs {
		if ix.mags[i] == 0 {
			continue
		}
		s := dot(vector, ix.vecs[i]) / (qm * ix.mags[i])
		if math.IsNaN(s) {
			continue
		}
		hits = append(hits, vectorHit{id: ix.ids[i], score: s})
	}

	sort.Slice(hits, func(a, b int) bool {
		if hits[a].score != hits[b].score {
			return hits[a].score > hits[b].score
		}
		return hits[a].id < hits[b].id
	})
	if k > 0 && k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

func (ix *bruteForceIndex) len() int {
	return len(ix.ids)
}

func (ix *bruteForceIndex) dimensions() int {
	return ix.dims
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func magnitude(v []float64) float64 {
	return math.Sqrt(dot(v, v))
}

// encodeVector serializes a vector as little-endian float64 bytes, the
// on-disk format of the embeddings table.
func encodeVector(v []float64) []byte {
	buf := make([]byte, len(v)*8)
	for i, val := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(val))
	}
	return buf
}

// decodeVector deserializes little-endian float64 bytes. A length that
// does not match the expected dimensions is a corruption signal.
func decodeVector(b []byte, dims int) ([]float64, error) {
	if len(b) != dims*8 {
		return nil, types.NewStorageCorruptionError(
			"embedding blob length does not match store dimensions", nil)
	}
	v := make([]float64, dims)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return v, nil
}
