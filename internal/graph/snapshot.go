package graph

import (
	"time"

	"github.com/weftlab/weft/internal/types"
)

// Neighbor is one nearest-neighbor result: an entity and its cosine
// similarity to the query vector.
type Neighbor struct {
	Entity *Entity `json:"entity"`
	Score  float64 `json:"score"`
}

// Snapshot is an immutable view of the whole graph at one commit point.
// Readers obtained it from an atomic pointer swap, so it never changes
// underneath them; accessors return internal state directly and callers
// must not modify it. Traversals, nearest-neighbor scans, and stats all
// run against a snapshot and keep answering from it while a rebuild is
// in flight.
type Snapshot struct {
	entities map[types.ID]*Entity
	ids      []types.ID // ascending
	edges    []*Edge    // insertion order
	out      map[types.ID][]*Edge
	in       map[types.ID][]*Edge
	meta     map[string]string
	vectors  vectorIndex
}

// newSnapshot indexes entities (already sorted by ascending id) and
// edges (already in insertion order) into an immutable view.
func newSnapshot(entities []*Entity, edges []*Edge, meta map[string]string) (*Snapshot, error) {
	s := &Snapshot{
		entities: make(map[types.ID]*Entity, len(entities)),
		ids:      make([]types.ID, 0, len(entities)),
		edges:    edges,
		out:      make(map[types.ID][]*Edge),
		in:       make(map[types.ID][]*Edge),
		meta:     meta,
	}
	if s.meta == nil {
		s.meta = map[string]string{}
	}

	for _, e := range entities {
		s.entities[e.ID] = e
		s.ids = append(s.ids, e.ID)
	}

	for _, e := range edges {
		if s.entities[e.Source] == nil || s.entities[e.Target] == nil {
			return nil, types.NewDanglingReferenceError(e.Source, e.Target)
		}
		s.out[e.Source] = append(s.out[e.Source], e)
		s.in[e.Target] = append(s.in[e.Target], e)
		// A symmetric edge is incident to both endpoints in both roles.
		if e.Type.Symmetric() && e.Source != e.Target {
			s.out[e.Target] = append(s.out[e.Target], e)
			s.in[e.Source] = append(s.in[e.Source], e)
		}
	}

	ix, err := newBruteForceIndex(entities)
	if err != nil {
		return nil, err
	}
	s.vectors = ix
	return s, nil
}

// Entity returns the entity with the given id, or nil when absent.
func (s *Snapshot) Entity(id types.ID) *Entity {
	return s.entities[id]
}

// Has reports whether an entity with the given id exists.
func (s *Snapshot) Has(id types.ID) bool {
	return s.entities[id] != nil
}

// IDs returns every entity id in ascending order.
func (s *Snapshot) IDs() []types.ID {
	return s.ids
}

// Len reports the number of entities.
func (s *Snapshot) Len() int {
	return len(s.ids)
}

// Edges returns every edge in insertion order.
func (s *Snapshot) Edges() []*Edge {
	return s.edges
}

// EdgeCount reports the number of logical edges.
func (s *Snapshot) EdgeCount() int {
	return len(s.edges)
}

// EdgesFrom returns the edges incident to id as a source, in insertion
// order. Symmetric edges appear regardless of their stored direction.
func (s *Snapshot) EdgesFrom(id types.ID) []*Edge {
	return s.out[id]
}

// EdgesTo returns the edges incident to id as a target, in insertion
// order. Symmetric edges appear regardless of their stored direction.
func (s *Snapshot) EdgesTo(id types.ID) []*Edge {
	return s.in[id]
}

// Nearest returns the top-k entities by descending cosine similarity to
// the query vector, ties broken by ascending id. Entities without
// embeddings never appear.
func (s *Snapshot) Nearest(vector []float64, k int) ([]Neighbor, error) {
	hits, err := s.vectors.query(vector, k)
	if err != nil {
		return nil, err
	}
	out := make([]Neighbor, len(hits))
	for i, h := range hits {
		out[i] = Neighbor{Entity: s.entities[h.id], Score: h.score}
	}
	return out, nil
}

// EmbeddingCount reports how many entities carry vectors.
func (s *Snapshot) EmbeddingCount() int {
	return s.vectors.len()
}

// Dimensions reports the embedding width, 0 when no vectors are stored.
func (s *Snapshot) Dimensions() int {
	return s.vectors.dimensions()
}

// Meta returns the store-wide metadata value for key.
func (s *Snapshot) Meta(key string) (string, bool) {
	v, ok := s.meta[key]
	return v, ok
}

// MetaAll returns a copy of the store-wide metadata.
func (s *Snapshot) MetaAll() map[string]string {
	cp := make(map[string]string, len(s.meta))
	for k, v := range s.meta {
		cp[k] = v
	}
	return cp
}

// BuiltAt returns the commit time of the last graph build, zero when
// the store has never been built.
func (s *Snapshot) BuiltAt() time.Time {
	v, ok := s.meta[MetaBuiltAt]
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
