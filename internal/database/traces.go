package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/weftlab/weft/internal/types"
)

// InsertTraces persists a batch of query traces in one transaction.
// The store's background writer hands over whatever accumulated since
// the last flush, so batches are small.
func InsertTraces(ctx context.Context, db *DB, traces []types.QueryTrace) error {
	if len(traces) == 0 {
		return nil
	}

	return db.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO query_traces (id, query_text, strategy, result_count, latency_ms, degraded, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare trace insert: %w", err)
		}
		defer stmt.Close()

		for _, t := range traces {
			degraded := 0
			if t.Degraded {
				degraded = 1
			}
			if _, err := stmt.ExecContext(ctx,
				string(t.ID), t.Query, t.Strategy, t.ResultCount, t.LatencyMS, degraded, t.CreatedAt,
			); err != nil {
				return fmt.Errorf("failed to insert trace %s: %w", t.ID, err)
			}
		}

		return nil
	})
}

// ListRecentTraces returns the n most recent query traces, newest first.
func ListRecentTraces(ctx context.Context, db *DB, n int) ([]types.QueryTrace, error) {
	if n <= 0 {
		n = 20
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, query_text, strategy, result_count, latency_ms, degraded, created_at
		FROM query_traces
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query traces: %w", err)
	}
	defer rows.Close()

	var traces []types.QueryTrace
	for rows.Next() {
		var (
			t         types.QueryTrace
			id        string
			degraded  int
			createdAt time.Time
		)
		if err := rows.Scan(&id, &t.Query, &t.Strategy, &t.ResultCount, &t.LatencyMS, &degraded, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan trace: %w", err)
		}
		t.ID = types.ID(id)
		t.Degraded = degraded != 0
		t.CreatedAt = createdAt
		traces = append(traces, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating traces: %w", err)
	}

	return traces, nil
}

// PruneTraces deletes all but the newest keep traces and reports how
// many rows were removed.
func PruneTraces(ctx context.Context, db *DB, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	res, err := db.conn.ExecContext(ctx, `
		DELETE FROM query_traces
		WHERE id NOT IN (
			SELECT id FROM query_traces
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune traces: %w", err)
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned traces: %w", err)
	}

	return removed, nil
}
