package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed schema.sql
var initialSchema string

// Migrator handles database schema migrations
type Migrator interface {
	// Migrate applies all pending migrations
	Migrate(ctx context.Context) error

	// CurrentVersion returns the current schema version
	CurrentVersion(ctx context.Context) (int, error)

	// Rollback rolls back to a target version
	Rollback(ctx context.Context, targetVersion int) error

	// GetAppliedMigrations returns a list of all applied migrations
	GetAppliedMigrations(ctx context.Context) ([]MigrationInfo, error)
}

// MigrationInfo contains information about an applied migration
type MigrationInfo struct {
	Version   int
	Name      string
	AppliedAt string
}

// migration represents a single database migration
type migration struct {
	version int
	name    string
	up      string
	down    string
}

// migrator implements the Migrator interface
type migrator struct {
	db         *DB
	migrations []migration
}

// NewMigrator creates a new database migrator
func NewMigrator(db *DB) Migrator {
	return &migrator{
		db:         db,
		migrations: getMigrations(),
	}
}

// getMigrations returns all available migrations in order
func getMigrations() []migration {
	migrations := []migration{
		{
			version: 1,
			name:    "initial_schema",
			up:      initialSchema,
			down:    getDownMigration1(),
		},
		{
			version: 2,
			name:    "query_traces",
			up:      getQueryTracesSchema(),
			down:    getDownMigration2(),
		},
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].version < migrations[j].version
	})

	return migrations
}

// getQueryTracesSchema returns the schema for query telemetry
func getQueryTracesSchema() string {
	return `
-- Append-only query telemetry, written off the query path
CREATE TABLE IF NOT EXISTS query_traces (
    id TEXT PRIMARY KEY,
    query_text TEXT NOT NULL,
    strategy TEXT NOT NULL,
    result_count INTEGER NOT NULL DEFAULT 0,
    latency_ms INTEGER NOT NULL DEFAULT 0,
    degraded INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_query_traces_created ON query_traces(created_at);
`
}

// getDownMigration1 returns the rollback SQL for migration 1
func getDownMigration1() string {
	return `
-- Drop triggers
DROP TRIGGER IF EXISTS entities_fts_delete;
DROP TRIGGER IF EXISTS entities_fts_update;
DROP TRIGGER IF EXISTS entities_fts_insert;

-- Drop FTS table
DROP TABLE IF EXISTS entities_fts;

-- Drop indexes
DROP INDEX IF EXISTS idx_edges_type;
DROP INDEX IF EXISTS idx_edges_target;
DROP INDEX IF EXISTS idx_edges_source;
DROP INDEX IF EXISTS idx_entities_category;

-- Drop tables (do NOT drop migrations table - it's managed separately)
DROP TABLE IF EXISTS store_meta;
DROP TABLE IF EXISTS embeddings;
DROP TABLE IF EXISTS edges;
DROP TABLE IF EXISTS entities;
`
}

// getDownMigration2 returns the rollback SQL for migration 2
func getDownMigration2() string {
	return `
DROP INDEX IF EXISTS idx_query_traces_created;
DROP TABLE IF EXISTS query_traces;
`
}

// Migrate applies all pending migrations
func (m *migrator) Migrate(ctx context.Context) error {
	if err := m.ensureMigrationsTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion, err := m.CurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	for _, mig := range m.migrations {
		if mig.version <= currentVersion {
			continue // Skip already applied migrations
		}

		if err := m.applyMigration(ctx, mig); err != nil {
			return fmt.Errorf("failed to apply migration %d (%s): %w", mig.version, mig.name, err)
		}
	}

	return nil
}

// CurrentVersion returns the current schema version
func (m *migrator) CurrentVersion(ctx context.Context) (int, error) {
	if err := m.ensureMigrationsTable(ctx); err != nil {
		return 0, fmt.Errorf("failed to ensure migrations table: %w", err)
	}

	var version int
	query := "SELECT COALESCE(MAX(version), 0) FROM migrations"
	if err := m.db.conn.QueryRowContext(ctx, query).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to query current version: %w", err)
	}

	return version, nil
}

// Rollback rolls back to a target version
func (m *migrator) Rollback(ctx context.Context, targetVersion int) error {
	if targetVersion < 0 {
		return fmt.Errorf("invalid target version: %d", targetVersion)
	}

	currentVersion, err := m.CurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	if targetVersion > currentVersion {
		return fmt.Errorf("cannot rollback to future version %d (current: %d)", targetVersion, currentVersion)
	}

	// Rollback migrations in reverse order
	for i := len(m.migrations) - 1; i >= 0; i-- {
		mig := m.migrations[i]
		if mig.version <= targetVersion {
			break
		}
		if mig.version > currentVersion {
			continue // Skip unapplied migrations
		}

		if err := m.rollbackMigration(ctx, mig); err != nil {
			return fmt.Errorf("failed to rollback migration %d (%s): %w", mig.version, mig.name, err)
		}
	}

	return nil
}

// GetAppliedMigrations returns a list of all applied migrations
func (m *migrator) GetAppliedMigrations(ctx context.Context) ([]MigrationInfo, error) {
	if err := m.ensureMigrationsTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure migrations table: %w", err)
	}

	query := "SELECT version, name, applied_at FROM migrations ORDER BY version"
	rows, err := m.db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	var migrations []MigrationInfo
	for rows.Next() {
		var info MigrationInfo
		if err := rows.Scan(&info.Version, &info.Name, &info.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration: %w", err)
		}
		migrations = append(migrations, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating migrations: %w", err)
	}

	return migrations, nil
}

// ensureMigrationsTable creates the migrations table if it doesn't exist
func (m *migrator) ensureMigrationsTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	if _, err := m.db.conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	return nil
}

// applyMigration applies a single migration within a transaction
func (m *migrator) applyMigration(ctx context.Context, mig migration) error {
	return m.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range splitSQL(mig.up) {
			clean := removeComments(stmt)
			if clean == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, clean); err != nil {
				return fmt.Errorf("failed to execute statement: %w\nStatement: %s", err, clean)
			}
		}

		_, err := tx.ExecContext(ctx,
			"INSERT INTO migrations (version, name, applied_at) VALUES (?, ?, CURRENT_TIMESTAMP)",
			mig.version, mig.name)
		if err != nil {
			return fmt.Errorf("failed to record migration: %w", err)
		}

		return nil
	})
}

// rollbackMigration rolls back a single migration within a transaction
func (m *migrator) rollbackMigration(ctx context.Context, mig migration) error {
	return m.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range splitSQL(mig.down) {
			clean := removeComments(stmt)
			if clean == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, clean); err != nil {
				return fmt.Errorf("failed to execute rollback statement: %w\nStatement: %s", err, clean)
			}
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM migrations WHERE version = ?", mig.version); err != nil {
			return fmt.Errorf("failed to remove migration record: %w", err)
		}

		return nil
	})
}

// splitSQL splits a SQL script into individual statements. Semicolons
// inside string literals or trigger BEGIN...END bodies do not terminate
// a statement.
func splitSQL(script string) []string {
	var (
		statements []string
		current    strings.Builder
		word       strings.Builder
		inString   rune
		depth      int
	)

	flushWord := func() {
		if word.Len() == 0 {
			return
		}
		switch strings.ToUpper(word.String()) {
		case "BEGIN", "CASE":
			depth++
		case "END":
			if depth > 0 {
				depth--
			}
		}
		word.Reset()
	}

	for _, ch := range script {
		switch {
		case inString != 0:
			current.WriteRune(ch)
			if ch == inString {
				inString = 0
			}

		case ch == '\'' || ch == '"':
			flushWord()
			inString = ch
			current.WriteRune(ch)

		case ch == ';':
			flushWord()
			if depth == 0 {
				if stmt := strings.TrimSpace(current.String()); stmt != "" {
					statements = append(statements, stmt)
				}
				current.Reset()
			} else {
				current.WriteRune(ch)
			}

		case ch == ' ' || ch == '\n' || ch == '\t' || ch == '\r' || ch == '(' || ch == ')' || ch == ',':
			flushWord()
			current.WriteRune(ch)

		default:
			word.WriteRune(ch)
			current.WriteRune(ch)
		}
	}

	flushWord()
	if stmt := strings.TrimSpace(current.String()); stmt != "" {
		statements = append(statements, stmt)
	}

	return statements
}

// removeComments strips SQL comment lines from a statement.
// Handles single-line (--) and multi-line (/* */) comments.
func removeComments(sql string) string {
	var result strings.Builder

	inBlockComment := false
	for _, line := range strings.Split(sql, "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.Contains(trimmed, "/*") {
			inBlockComment = true
		}
		if inBlockComment {
			if strings.Contains(trimmed, "*/") {
				inBlockComment = false
			}
			continue
		}

		if strings.HasPrefix(trimmed, "--") {
			continue
		}
		if idx := strings.Index(line, "--"); idx >= 0 {
			line = line[:idx]
		}

		if strings.TrimSpace(line) != "" {
			result.WriteString(line)
			result.WriteString("\n")
		}
	}

	return strings.TrimSpace(result.String())
}
