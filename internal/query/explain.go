package query

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/weftlab/weft/internal/types"
)

// Explain justifies one result entity for one query using only fields
// already stored on the entity and its edges: matched terms and use
// cases for direct hits, connecting edges and their recorded reasoning
// toward the other result entities for graph-boosted hits. The output
// is deterministic template text; nothing is invented.
func (e *Engine) Explain(ctx context.Context, queryText string, id types.ID, resultIDs []types.ID) (*Explanation, error) {
	start := time.Now()
	if strings.TrimSpace(queryText) == "" {
		return nil, types.NewValidationError("query text cannot be empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := e.store.Snapshot()
	ent := snap.Entity(id)
	if ent == nil {
		return nil, types.NewNotFoundError("entity", id)
	}

	exp := &Explanation{EntityID: ent.ID, Label: ent.Label}
	queryTerms := termSet(queryText)

	// Direct evidence: query terms found among the entity's own label,
	// description, and keyword projection.
	entityTerms := termSet(ent.Label + " " + ent.Description)
	if keywords, ok := ent.Metadata.GetStrings(types.MetaKeyKeywords); ok {
		for _, kw := range keywords {
			entityTerms[kw] = true
		}
	}
	for _, term := range sortedTerms(queryTerms) {
		if entityTerms[term] {
			exp.MatchedTerms = append(exp.MatchedTerms, term)
		}
	}

	if useCases, ok := ent.Metadata.GetStrings(types.MetaKeyUseCases); ok {
		for _, uc := range useCases {
			ucTerms := termSet(uc)
			for term := range queryTerms {
				if ucTerms[term] {
					exp.MatchedUseCases = append(exp.MatchedUseCases, uc)
					break
				}
			}
		}
	}

	// Graph evidence: edges connecting this entity to the other result
	// entities, with the reasoning text recorded at build time.
	for _, other := range resultIDs {
		if other == id || !snap.Has(other) {
			continue
		}
		for _, edge := range incidentEdges(snap, id) {
			if edge.Other(id) != other {
				continue
			}
			note := fmt.Sprintf("%s %s (strength %.2f)",
				edge.Type, snap.Entity(other).Label, edge.Strength)
			if edge.Reasoning != "" {
				note += ": " + edge.Reasoning
			}
			exp.Connections = append(exp.Connections, note)
		}
	}

	exp.Text = renderExplanation(exp)

	meta := Meta{Strategy: StrategyExplain}
	e.finish(queryText, &meta, 1, start)
	return exp, nil
}

// renderExplanation assembles the display text from the collected
// evidence, falling back to a plain statement when nothing matched.
func renderExplanation(exp *Explanation) string {
	var parts []string
	if len(exp.MatchedTerms) > 0 {
		parts = append(parts, fmt.Sprintf("%s matches the query terms %s.",
			exp.Label, strings.Join(exp.MatchedTerms, ", ")))
	}
	if len(exp.MatchedUseCases) > 0 {
		parts = append(parts, fmt.Sprintf("Relevant use cases: %s.",
			strings.Join(exp.MatchedUseCases, "; ")))
	}
	if len(exp.Connections) > 0 {
		parts = append(parts, "Graph connections: "+strings.Join(exp.Connections, "; ")+".")
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%s was ranked by overall similarity to the query.", exp.Label)
	}
	return strings.Join(parts, " ")
}

// termSet lowercases and splits text into its distinct terms.
func termSet(text string) map[string]bool {
	terms := map[string]bool{}
	for _, t := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(t) >= 2 {
			terms[t] = true
		}
	}
	return terms
}

func sortedTerms(set map[string]bool) []string {
	terms := make([]string, 0, len(set))
	for t := range set {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return terms
}
