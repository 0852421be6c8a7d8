package query

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/weftlab/weft/internal/types"
)

// hybridFetchFactor widens the candidate pools feeding fusion beyond
// the requested k, so an entity strong in only one signal can still
// reach the merged ranking.
const hybridFetchFactor = 3

// HybridSearch fuses semantic and keyword results into one ranking:
// score = semanticWeight * semanticScore + keywordWeight * keywordScore,
// plus the reserved graph boost for 1-hop neighbors of the strongest
// semantic hits that already appear among the candidates. The boost
// never promotes an entity absent from both inputs. Ranking order is
// descending combined score, ties by semantic score then ascending id.
func (e *Engine) HybridSearch(ctx context.Context, text string, k int, opts Options) (*SearchResponse, error) {
	start := time.Now()
	if strings.TrimSpace(text) == "" {
		return nil, types.NewValidationError("query text cannot be empty")
	}

	sw, kw, err := e.resolveWeights(opts)
	if err != nil {
		return nil, err
	}

	snap := e.store.Snapshot()
	k = clampK(k, snap.Len())
	fetch := k * hybridFetchFactor
	if snap.Len() > 0 && fetch > snap.Len() {
		fetch = snap.Len()
	}

	var semantic []Result
	degradedReason := ""
	if snap.EmbeddingCount() == 0 {
		degradedReason = "store holds no embeddings"
	} else {
		vector, embedErr := e.embedQuery(ctx, text)
		if embedErr != nil {
			degradedReason = embedErr.Error()
		} else {
			hits, nnErr := e.store.NearestNeighbors(ctx, vector, fetch)
			if nnErr != nil {
				return nil, nnErr
			}
			semantic = make([]Result, len(hits))
			for i, h := range hits {
				score := clamp01(h.Score)
				semantic[i] = Result{Entity: h.Entity, SemanticScore: score}
			}
		}
	}

	keyword, err := e.keywordResults(ctx, text, fetch)
	if err != nil {
		return nil, err
	}

	if degradedReason != "" {
		// Keyword-only fallback: the ranking survives, the metadata
		// says what happened.
		e.logger.Warn("hybrid search degraded to keyword-only", "reason", degradedReason)
		if len(keyword) > k {
			keyword = keyword[:k]
		}
		resp := &SearchResponse{
			Results: keyword,
			Meta: Meta{
				Strategy:       StrategyKeywordDegraded,
				Degraded:       true,
				DegradedReason: degradedReason,
			},
		}
		e.finish(text, &resp.Meta, len(resp.Results), start)
		return resp, nil
	}

	merged := fuse(semantic, keyword, sw, kw)
	e.applyGraphBoost(merged, semantic)

	ranked := make([]Result, 0, len(merged))
	for _, r := range merged {
		ranked = append(ranked, *r)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if ranked[i].SemanticScore != ranked[j].SemanticScore {
			return ranked[i].SemanticScore > ranked[j].SemanticScore
		}
		return ranked[i].Entity.ID < ranked[j].Entity.ID
	})

	truncated := len(ranked) > k
	if truncated {
		ranked = ranked[:k]
	}
	resp := &SearchResponse{
		Results: ranked,
		Meta:    Meta{Strategy: StrategyHybrid, Truncated: truncated},
	}
	e.finish(text, &resp.Meta, len(resp.Results), start)
	return resp, nil
}

// resolveWeights applies per-call overrides over the configured
// defaults and rejects primary weights summing above 1.
func (e *Engine) resolveWeights(opts Options) (semantic, keyword float64, err error) {
	semantic, keyword = e.cfg.SemanticWeight, e.cfg.KeywordWeight
	if opts.SemanticWeight != nil {
		semantic = *opts.SemanticWeight
	}
	if opts.KeywordWeight != nil {
		keyword = *opts.KeywordWeight
	}
	if semantic < 0 || keyword < 0 {
		return 0, 0, types.NewValidationError("search weights cannot be negative")
	}
	if semantic+keyword > 1.0+1e-9 {
		return 0, 0, types.NewValidationError(
			"semantic and keyword weights sum to %.2f, must not exceed 1", semantic+keyword)
	}
	return semantic, keyword, nil
}

// fuse merges the two candidate lists by entity id under the weighted
// score formula. An entity found by only one strategy keeps a zero
// score from the other.
func fuse(semantic, keyword []Result, sw, kw float64) map[types.ID]*Result {
	merged := make(map[types.ID]*Result, len(semantic)+len(keyword))
	for _, r := range semantic {
		cp := r
		merged[r.Entity.ID] = &cp
	}
	for _, r := range keyword {
		if have, ok := merged[r.Entity.ID]; ok {
			have.KeywordScore = r.KeywordScore
			continue
		}
		cp := r
		cp.Score = 0
		merged[r.Entity.ID] = &cp
	}
	for _, r := range merged {
		r.Score = sw*r.SemanticScore + kw*r.KeywordScore
	}
	return merged
}

// applyGraphBoost adds the reserved graph weight, once, to any merged
// candidate that is a 1-hop neighbor of a top semantic seed. Entities
// outside the merged set are deliberately ignored: graph proximity
// reinforces evidence, it does not create it.
func (e *Engine) applyGraphBoost(merged map[types.ID]*Result, semantic []Result) {
	if e.cfg.GraphWeight == 0 || len(semantic) == 0 {
		return
	}
	snap := e.store.Snapshot()
	seeds := semantic
	if len(seeds) > e.cfg.GraphBoostSeeds {
		seeds = seeds[:e.cfg.GraphBoostSeeds]
	}

	boosted := make(map[types.ID]bool)
	for _, seed := range seeds {
		for _, edge := range incidentEdges(snap, seed.Entity.ID) {
			neighbor := edge.Other(seed.Entity.ID)
			if neighbor == seed.Entity.ID || boosted[neighbor] {
				continue
			}
			if r, ok := merged[neighbor]; ok {
				r.GraphBoost = e.cfg.GraphWeight
				r.Score += e.cfg.GraphWeight
				boosted[neighbor] = true
			}
		}
	}
}
