package builder

import (
	"fmt"
	"math"
	"sort"

	"github.com/weftlab/weft/internal/catalog"
	"github.com/weftlab/weft/internal/graph"
	"github.com/weftlab/weft/internal/types"
)

// pairStats accumulates the co-occurrence evidence for one unordered
// entity pair.
type pairStats struct {
	cooccur  int
	patterns []string
}

// pairKey orders the two ids ascending so (A,B) and (B,A) share stats.
type pairKey struct {
	a, b types.ID
}

func newPairKey(x, y types.ID) pairKey {
	if x > y {
		x, y = y, x
	}
	return pairKey{a: x, b: y}
}

// inferEdges runs stage three: candidate pairs come from shared
// category, pattern co-occurrence, or cosine similarity above the
// candidate threshold; each signal produces its typed edge with a
// strength combining similarity and normalized co-occurrence. Pairs are
// visited in ascending id order so a rebuild of the same catalog emits
// the same edges in the same order.
func inferEdges(entities []*graph.Entity, patterns []catalog.Pattern, cfg Config) []*graph.Edge {
	index := make(map[types.ID]*graph.Entity, len(entities))
	for _, e := range entities {
		index[e.ID] = e
	}

	stats, maxCooccur := collectCooccurrence(patterns, index)

	var edges []*graph.Edge
	for i := 0; i < len(entities); i++ {
		for j := i + 1; j < len(entities); j++ {
			a, b := entities[i], entities[j]
			key := newPairKey(a.ID, b.ID)
			ps := stats[key]

			sim := pairSimilarity(a, b)
			sameCategory := a.Category == b.Category
			cooccur := 0
			if ps != nil {
				cooccur = ps.cooccur
			}

			if !sameCategory && cooccur == 0 && sim < cfg.SimilarityThreshold {
				continue
			}

			strength := edgeStrength(sim, cooccur, maxCooccur, cfg)

			if sameCategory {
				edges = append(edges, graph.NewEdge(a.ID, b.ID, graph.RelationBelongsToCategory).
					WithStrength(strength).
					WithReasoning(fmt.Sprintf("%s and %s are both %s components",
						a.Label, b.Label, a.Category)))
			}
			if cooccur > 0 {
				edges = append(edges, graph.NewEdge(a.ID, b.ID, graph.RelationUsedInPattern).
					WithStrength(strength).
					WithReasoning(fmt.Sprintf("%s and %s appear together in %d automation pattern(s)",
						a.Label, b.Label, cooccur)).
					WithHint(types.MetaKeyPatterns, types.MetaStringList(ps.patterns)))
			}
			if cooccur >= cfg.CompatibleMinCooccur || (cooccur > 0 && sim >= cfg.SimilarityThreshold) {
				edges = append(edges, graph.NewEdge(a.ID, b.ID, graph.RelationCompatibleWith).
					WithStrength(strength).
					WithReasoning(fmt.Sprintf("%s and %s co-occur in working flows and combine cleanly",
						a.Label, b.Label)))
			}
			if sim >= cfg.SimilarThreshold {
				edges = append(edges, graph.NewEdge(a.ID, b.ID, graph.RelationSimilarTo).
					WithStrength(strength).
					WithReasoning(fmt.Sprintf("%s and %s are %d%% semantically similar",
						a.Label, b.Label, int(math.Round(sim*100)))))
			}
		}
	}

	return capFanout(edges, cfg.MaxEdgesPerEntity)
}

// collectCooccurrence counts, per unordered pair, the patterns both
// members appear in. Members missing from the entity index are ignored
// here; the hint pass logs them.
func collectCooccurrence(patterns []catalog.Pattern, index map[types.ID]*graph.Entity) (map[pairKey]*pairStats, int) {
	stats := make(map[pairKey]*pairStats)
	maxCooccur := 0

	for _, p := range patterns {
		members := make([]types.ID, 0, len(p.Members))
		for _, id := range p.Members {
			if index[id] != nil {
				members = append(members, id)
			}
		}
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				key := newPairKey(members[i], members[j])
				ps := stats[key]
				if ps == nil {
					ps = &pairStats{}
					stats[key] = ps
				}
				ps.cooccur++
				ps.patterns = append(ps.patterns, p.ID)
				if ps.cooccur > maxCooccur {
					maxCooccur = ps.cooccur
				}
			}
		}
	}
	return stats, maxCooccur
}

// pairSimilarity returns the cosine similarity of the two entities, or
// 0 when either vector is missing. An absent embedding contributes no
// similarity signal either way.
func pairSimilarity(a, b *graph.Entity) float64 {
	if !a.HasEmbedding() || !b.HasEmbedding() || len(a.Embedding) != len(b.Embedding) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a.Embedding {
		dot += a.Embedding[i] * b.Embedding[i]
		magA += a.Embedding[i] * a.Embedding[i]
		magB += b.Embedding[i] * b.Embedding[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// edgeStrength combines clamped similarity with normalized
// co-occurrence, floored so a zero-signal category pairing still
// carries traversable weight.
func edgeStrength(sim float64, cooccur, maxCooccur int, cfg Config) float64 {
	s := sim
	if s < 0 {
		s = 0
	}
	var normCo float64
	if maxCooccur > 0 {
		normCo = float64(cooccur) / float64(maxCooccur)
	}
	strength := cfg.StrengthSimilarityWeight*s + cfg.StrengthCooccurWeight*normCo
	if strength < cfg.MinEdgeStrength {
		strength = cfg.MinEdgeStrength
	}
	if strength > 1 {
		strength = 1
	}
	return strength
}

// capFanout keeps, for every entity, its strongest cap edges and drops
// the rest. An edge survives when either endpoint ranks it inside its
// cap, so well-connected hubs lose their weakest links first and the
// total edge count stays O(n * cap). Surviving edges keep their
// original order.
func capFanout(edges []*graph.Edge, cap int) []*graph.Edge {
	perEntity := make(map[types.ID][]*graph.Edge)
	for _, e := range edges {
		perEntity[e.Source] = append(perEntity[e.Source], e)
		perEntity[e.Target] = append(perEntity[e.Target], e)
	}

	keep := make(map[*graph.Edge]bool, len(edges))
	for _, incident := range perEntity {
		sort.SliceStable(incident, func(i, j int) bool {
			if incident[i].Strength != incident[j].Strength {
				return incident[i].Strength > incident[j].Strength
			}
			return incident[i].LogicalKey() < incident[j].LogicalKey()
		})
		for i, e := range incident {
			if i >= cap {
				break
			}
			keep[e] = true
		}
	}

	out := make([]*graph.Edge, 0, len(keep))
	for _, e := range edges {
		if keep[e] {
			out = append(out, e)
		}
	}
	return out
}

// hintIssue records one declared relationship the builder had to skip.
type hintIssue struct {
	Source types.ID
	Target types.ID
	Type   graph.RelationType
	Reason string
}

func (i hintIssue) String() string {
	return fmt.Sprintf("%s edge %s -> %s skipped: %s", i.Type, i.Source, i.Target, i.Reason)
}

// hintEdges builds the directed edges declared in the catalog itself:
// requires and solves lists on records, and triggered-by derived from
// pattern order when the first member is a trigger. Hints naming
// missing entities are skipped, never committed dangling. Declared
// edges carry the fixed hint strength and are exempt from the fan-out
// cap.
func hintEdges(records []catalog.Record, patterns []catalog.Pattern, index map[types.ID]*graph.Entity, cfg Config) ([]*graph.Edge, []hintIssue) {
	var (
		edges  []*graph.Edge
		issues []hintIssue
		seen   = map[string]bool{}
	)

	add := func(e *graph.Edge) {
		key := e.LogicalKey()
		if !seen[key] {
			seen[key] = true
			edges = append(edges, e)
		}
	}

	for _, rec := range records {
		src := index[rec.ID]
		if src == nil {
			continue
		}
		for _, target := range rec.Requires {
			tgt := index[target]
			if tgt == nil {
				issues = append(issues, hintIssue{rec.ID, target, graph.RelationRequires, "target not in catalog"})
				continue
			}
			add(graph.NewEdge(rec.ID, target, graph.RelationRequires).
				WithStrength(cfg.HintStrength).
				WithReasoning(fmt.Sprintf("the catalog declares that %s requires %s", src.Label, tgt.Label)))
		}
		for _, target := range rec.Solves {
			tgt := index[target]
			if tgt == nil {
				issues = append(issues, hintIssue{rec.ID, target, graph.RelationSolves, "target not in catalog"})
				continue
			}
			add(graph.NewEdge(rec.ID, target, graph.RelationSolves).
				WithStrength(cfg.HintStrength).
				WithReasoning(fmt.Sprintf("the catalog declares that %s solves for %s", src.Label, tgt.Label)))
		}
	}

	for _, p := range patterns {
		if len(p.Members) < 2 {
			continue
		}
		trigger := index[p.Members[0]]
		if trigger == nil {
			continue
		}
		if kind, _ := trigger.Metadata.GetString(types.MetaKeyKind); kind != catalog.KindTrigger {
			continue
		}
		for _, member := range p.Members[1:] {
			if index[member] == nil {
				issues = append(issues, hintIssue{member, trigger.ID, graph.RelationTriggeredBy, "member not in catalog"})
				continue
			}
			add(graph.NewEdge(member, trigger.ID, graph.RelationTriggeredBy).
				WithStrength(cfg.HintStrength).
				WithReasoning(fmt.Sprintf("pattern %s starts from %s", p.ID, trigger.Label)))
		}
	}

	return edges, issues
}
