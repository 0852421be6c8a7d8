package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/weftlab/weft/internal/types"
)

// setupTestDB creates a temporary database with the full schema applied
func setupTestDB(t *testing.T) (*DB, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "weft-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "test.db")

	db, err := Open(dbPath)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("failed to open database: %v", err)
	}

	if err := db.InitSchema(context.Background()); err != nil {
		db.Close()
		os.RemoveAll(tmpDir)
		t.Fatalf("failed to init schema: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.RemoveAll(tmpDir)
	}

	return db, cleanup
}

// insertTestEntity inserts a bare entity row for FTS and FK tests
func insertTestEntity(t *testing.T, db *DB, id, label, description, keywords string) {
	t.Helper()

	_, err := db.conn.Exec(`
		INSERT INTO entities (id, label, description, category, metadata, use_cases, keywords)
		VALUES (?, ?, ?, 'general', '{}', '', ?)`,
		id, label, description, keywords)
	if err != nil {
		t.Fatalf("failed to insert entity %s: %v", id, err)
	}
}

// TestOpen tests database opening with WAL mode verification
func TestOpen(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	var journalMode string
	if err := db.conn.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("failed to query journal mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("expected WAL mode, got %s", journalMode)
	}

	var foreignKeys int
	if err := db.conn.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys); err != nil {
		t.Fatalf("failed to query foreign keys: %v", err)
	}
	if foreignKeys != 1 {
		t.Errorf("expected foreign keys enabled, got %d", foreignKeys)
	}
}

// TestOpenWithConfig tests database opening with custom configuration
func TestOpenWithConfig(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "weft-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	cfg := Config{
		Path:            filepath.Join(tmpDir, "test.db"),
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
		BusyTimeout:     3 * time.Second,
	}

	db, err := OpenWithConfig(cfg)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if db.Path() != cfg.Path {
		t.Errorf("expected path %s, got %s", cfg.Path, db.Path())
	}
}

// TestHealth tests the health check on an open and a closed database
func TestHealth(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	if err := db.Health(context.Background()); err != nil {
		t.Errorf("expected healthy database, got %v", err)
	}

	db.Close()
	if err := db.Health(context.Background()); err == nil {
		t.Error("expected error checking closed database")
	}
}

// TestQuickCheck verifies the integrity scan reports ok on a fresh database
func TestQuickCheck(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	verdict, err := db.QuickCheck(context.Background())
	if err != nil {
		t.Fatalf("quick_check failed: %v", err)
	}
	if verdict != "ok" {
		t.Errorf("expected ok, got %s", verdict)
	}
}

// TestMigrate tests that all migrations apply and re-running is a no-op
func TestMigrate(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	m := NewMigrator(db)

	version, err := m.CurrentVersion(ctx)
	if err != nil {
		t.Fatalf("failed to get version: %v", err)
	}
	if version != 2 {
		t.Errorf("expected schema version 2, got %d", version)
	}

	// Re-running must not fail or re-apply anything
	if err := m.Migrate(ctx); err != nil {
		t.Fatalf("re-migrate failed: %v", err)
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		t.Fatalf("failed to list migrations: %v", err)
	}
	if len(applied) != 2 {
		t.Fatalf("expected 2 applied migrations, got %d", len(applied))
	}
	if applied[0].Name != "initial_schema" || applied[1].Name != "query_traces" {
		t.Errorf("unexpected migration names: %+v", applied)
	}

	// All tables from both migrations must exist
	for _, table := range []string{"entities", "edges", "embeddings", "store_meta", "query_traces", "entities_fts"} {
		var name string
		err := db.conn.QueryRow(
			"SELECT name FROM sqlite_master WHERE name = ?", table).Scan(&name)
		if err != nil {
			t.Errorf("expected table %s to exist: %v", table, err)
		}
	}
}

// TestRollback tests rolling back the latest migration and re-applying it
func TestRollback(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	m := NewMigrator(db)

	if err := m.Rollback(ctx, 1); err != nil {
		t.Fatalf("rollback failed: %v", err)
	}

	version, err := m.CurrentVersion(ctx)
	if err != nil {
		t.Fatalf("failed to get version: %v", err)
	}
	if version != 1 {
		t.Errorf("expected version 1 after rollback, got %d", version)
	}

	if _, err := db.conn.Exec("INSERT INTO query_traces (id, query_text, strategy) VALUES ('t', 'q', 's')"); err == nil {
		t.Error("expected insert into dropped table to fail")
	}

	if err := m.Migrate(ctx); err != nil {
		t.Fatalf("re-migrate failed: %v", err)
	}
	version, _ = m.CurrentVersion(ctx)
	if version != 2 {
		t.Errorf("expected version 2 after re-migrate, got %d", version)
	}
}

// TestWithTx tests transaction commit and rollback behavior
func TestWithTx(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO store_meta (key, value) VALUES ('a', '1')")
		return err
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}

	var value string
	if err := db.conn.QueryRow("SELECT value FROM store_meta WHERE key = 'a'").Scan(&value); err != nil {
		t.Fatalf("committed row missing: %v", err)
	}

	// A returned error must roll everything back
	wantErr := fmt.Errorf("boom")
	err = db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO store_meta (key, value) VALUES ('b', '2')"); err != nil {
			return err
		}
		return wantErr
	})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected boom error, got %v", err)
	}

	var count int
	db.conn.QueryRow("SELECT COUNT(*) FROM store_meta WHERE key = 'b'").Scan(&count)
	if count != 0 {
		t.Error("expected rolled-back row to be absent")
	}
}

// TestForeignKeys verifies dangling edge rows are rejected by the schema
func TestForeignKeys(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	insertTestEntity(t, db, "slack", "Slack", "Send messages to Slack channels", "chat messaging")

	_, err := db.conn.Exec(`
		INSERT INTO edges (logical_key, source_id, target_id, rel_type, strength)
		VALUES ('k1', 'slack', 'ghost', 'requires', 0.5)`)
	if err == nil {
		t.Error("expected foreign key violation for missing target")
	}
}

// TestStrengthCheck verifies the strength range constraint
func TestStrengthCheck(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	insertTestEntity(t, db, "a", "A", "", "")
	insertTestEntity(t, db, "b", "B", "", "")

	_, err := db.conn.Exec(`
		INSERT INTO edges (logical_key, source_id, target_id, rel_type, strength)
		VALUES ('k1', 'a', 'b', 'requires', 1.5)`)
	if err == nil {
		t.Error("expected check constraint violation for strength > 1")
	}
}

// TestSearchEntities tests FTS matching, ordering, and input safety
func TestSearchEntities(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	insertTestEntity(t, db, "slack", "Slack", "Send messages to Slack channels", "chat messaging notify")
	insertTestEntity(t, db, "postgres", "PostgreSQL", "Query and store rows in PostgreSQL", "database sql storage")
	insertTestEntity(t, db, "webhook", "Webhook", "Receive HTTP requests to start a flow", "http trigger")

	hits, err := SearchEntities(ctx, db, "slack messaging", 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected at least one hit")
	}
	if hits[0].ID != "slack" {
		t.Errorf("expected slack as best hit, got %s", hits[0].ID)
	}
	for i := 1; i < len(hits); i++ {
		if hits[i-1].Rank > hits[i].Rank {
			t.Errorf("hits not ordered best first: %v", hits)
		}
	}

	// Raw FTS5 operators in user text must be neutralized, not executed
	for _, q := range []string{`slack" OR "x`, "NEAR(a b)", "col:value", "a AND", "*"} {
		if _, err := SearchEntities(ctx, db, q, 10); err != nil {
			t.Errorf("query %q should not error: %v", q, err)
		}
	}

	// Blank input matches nothing and is not an error
	hits, err = SearchEntities(ctx, db, "   ", 10)
	if err != nil {
		t.Fatalf("blank search failed: %v", err)
	}
	if hits != nil {
		t.Errorf("expected no hits for blank input, got %v", hits)
	}
}

// TestFTSStaysInSync tests the trigger chain across update and delete
func TestFTSStaysInSync(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	insertTestEntity(t, db, "sheets", "Google Sheets", "Append rows to spreadsheets", "spreadsheet")

	hits, _ := SearchEntities(ctx, db, "spreadsheets", 10)
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit before update, got %d", len(hits))
	}

	if _, err := db.conn.Exec("UPDATE entities SET description = 'Write tabular data' WHERE id = 'sheets'"); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	hits, _ = SearchEntities(ctx, db, "spreadsheets", 10)
	if len(hits) != 0 {
		t.Errorf("expected stale term to stop matching after update, got %v", hits)
	}
	hits, _ = SearchEntities(ctx, db, "tabular", 10)
	if len(hits) != 1 {
		t.Errorf("expected new term to match after update, got %v", hits)
	}

	if _, err := db.conn.Exec("DELETE FROM entities WHERE id = 'sheets'"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	hits, _ = SearchEntities(ctx, db, "tabular", 10)
	if len(hits) != 0 {
		t.Errorf("expected no hits after delete, got %v", hits)
	}

	if err := CheckFTSIntegrity(ctx, db); err != nil {
		t.Errorf("FTS integrity check failed: %v", err)
	}
}

// TestRebuildFTSIndex tests recovery after a wholesale content swap
func TestRebuildFTSIndex(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	insertTestEntity(t, db, "imap", "IMAP", "Watch a mailbox for new mail", "email")

	if err := RebuildFTSIndex(ctx, db); err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}

	hits, err := SearchEntities(ctx, db, "mailbox", 10)
	if err != nil {
		t.Fatalf("search after rebuild failed: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("expected 1 hit after rebuild, got %d", len(hits))
	}
	if err := CheckFTSIntegrity(ctx, db); err != nil {
		t.Errorf("integrity check after rebuild failed: %v", err)
	}
}

// TestTraces tests trace insert, recency ordering, and pruning
func TestTraces(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var batch []types.QueryTrace
	for i := 0; i < 5; i++ {
		batch = append(batch, types.QueryTrace{
			ID:          types.ID(fmt.Sprintf("trace-%d", i)),
			Query:       fmt.Sprintf("query %d", i),
			Strategy:    "hybrid",
			ResultCount: i,
			LatencyMS:   int64(10 * i),
			Degraded:    i == 3,
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		})
	}

	if err := InsertTraces(ctx, db, batch); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := InsertTraces(ctx, db, nil); err != nil {
		t.Fatalf("empty insert should be a no-op: %v", err)
	}

	traces, err := ListRecentTraces(ctx, db, 3)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(traces) != 3 {
		t.Fatalf("expected 3 traces, got %d", len(traces))
	}
	if traces[0].ID != "trace-4" || traces[2].ID != "trace-2" {
		t.Errorf("expected newest first, got %v", traces)
	}
	if traces[1].ID != "trace-3" || !traces[1].Degraded {
		t.Errorf("expected degraded flag to round-trip, got %+v", traces[1])
	}

	removed, err := PruneTraces(ctx, db, 2)
	if err != nil {
		t.Fatalf("prune failed: %v", err)
	}
	if removed != 3 {
		t.Errorf("expected 3 rows pruned, got %d", removed)
	}

	traces, _ = ListRecentTraces(ctx, db, 10)
	if len(traces) != 2 {
		t.Errorf("expected 2 traces after prune, got %d", len(traces))
	}
}

// TestSplitSQL tests statement splitting around triggers and literals
func TestSplitSQL(t *testing.T) {
	script := `
CREATE TABLE a (id TEXT);
CREATE TRIGGER trg AFTER INSERT ON a BEGIN
    INSERT INTO b VALUES (new.id);
    UPDATE c SET v = 'x;y' WHERE id = new.id;
END;
INSERT INTO a VALUES ('semi;colon');
`
	stmts := splitSQL(script)
	if len(stmts) != 3 {
		t.Fatalf("expected 3 statements, got %d: %q", len(stmts), stmts)
	}
	if !strings.Contains(stmts[1], "END") {
		t.Errorf("trigger body split apart: %q", stmts[1])
	}
	if !strings.Contains(stmts[2], "semi;colon") {
		t.Errorf("string literal split apart: %q", stmts[2])
	}
}

// TestRemoveComments tests comment stripping
func TestRemoveComments(t *testing.T) {
	in := `-- header
CREATE TABLE x ( -- inline
    id TEXT
);
/* block
comment */
`
	out := removeComments(in)
	if strings.Contains(out, "--") || strings.Contains(out, "block") {
		t.Errorf("comments not removed: %q", out)
	}
	if !strings.Contains(out, "CREATE TABLE x") {
		t.Errorf("statement body lost: %q", out)
	}
}
