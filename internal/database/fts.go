package database

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// EntityHit is a single lexical match from the FTS index.
// Rank is the raw bm25 value SQLite assigns: negative, with more
// negative meaning a better match.
type EntityHit struct {
	ID   string
	Rank float64
}

// maxSearchTokens bounds the number of OR terms in one MATCH expression.
const maxSearchTokens = 12

// SearchEntities performs a full-text search over entity labels,
// descriptions, use cases, and keywords. Results are ordered best match
// first. Free text is tokenized and quoted before it reaches MATCH, so
// FTS5 operators in user input have no effect.
func SearchEntities(ctx context.Context, db *DB, text string, limit int) ([]EntityHit, error) {
	match := buildMatchQuery(text)
	if match == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	query := `
	SELECT e.id, fts.rank
	FROM entities e
	JOIN entities_fts fts ON e.rowid = fts.rowid
	WHERE entities_fts MATCH ?
	ORDER BY fts.rank
	LIMIT ?`

	rows, err := db.conn.QueryContext(ctx, query, match, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute FTS query: %w", err)
	}
	defer rows.Close()

	var hits []EntityHit
	for rows.Next() {
		var hit EntityHit
		if err := rows.Scan(&hit.ID, &hit.Rank); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		hits = append(hits, hit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}

	return hits, nil
}

// buildMatchQuery turns free text into a safe FTS5 MATCH expression:
// each token double-quoted, tokens joined with OR.
func buildMatchQuery(text string) string {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return ""
	}
	if len(tokens) > maxSearchTokens {
		tokens = tokens[:maxSearchTokens]
	}

	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = `"` + strings.ReplaceAll(tok, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " OR ")
}

// tokenize lowercases the input and splits on anything that is not a
// letter or digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// RebuildFTSIndex rebuilds the FTS index from the entities table and
// merges its b-trees. Called after bulk commits and imports, where the
// per-row triggers have left the index fragmented or the content was
// replaced wholesale.
func RebuildFTSIndex(ctx context.Context, db *DB) error {
	if _, err := db.conn.ExecContext(ctx, "INSERT INTO entities_fts(entities_fts) VALUES('rebuild')"); err != nil {
		return fmt.Errorf("failed to rebuild FTS index: %w", err)
	}
	if _, err := db.conn.ExecContext(ctx, "INSERT INTO entities_fts(entities_fts) VALUES('optimize')"); err != nil {
		return fmt.Errorf("failed to optimize FTS index: %w", err)
	}
	return nil
}

// CheckFTSIntegrity verifies the FTS index against the entities table.
// SQLite reports corruption through the insert itself.
func CheckFTSIntegrity(ctx context.Context, db *DB) error {
	if _, err := db.conn.ExecContext(ctx, "INSERT INTO entities_fts(entities_fts, rank) VALUES('integrity-check', 1)"); err != nil {
		return fmt.Errorf("FTS index out of sync with entities: %w", err)
	}
	return nil
}
