package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/weftlab/weft/internal/database"
	"github.com/weftlab/weft/internal/types"
)

// DefaultDimensions is the embedding width a new store is created with.
const DefaultDimensions = 384

const (
	defaultTraceBuffer = 256
	traceFlushBatch    = 64
	traceRetention     = 10000
)

// LocalConfig configures an embedded store.
type LocalConfig struct {
	// Path is the SQLite database file.
	Path string
	// Dimensions is the embedding width for a fresh store. An existing
	// store keeps its persisted width.
	Dimensions int
	// TraceBuffer sizes the query-trace queue; traces are dropped, not
	// blocked on, when it fills.
	TraceBuffer int
	Logger      *slog.Logger
}

// ApplyDefaults fills unset fields with defaults.
func (c *LocalConfig) ApplyDefaults() {
	if c.Dimensions == 0 {
		c.Dimensions = DefaultDimensions
	}
	if c.TraceBuffer == 0 {
		c.TraceBuffer = defaultTraceBuffer
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// LocalStore is the embedded SQLite-backed Store. Readers work from an
// immutable snapshot held in an atomic pointer; every mutation runs
// under one writer mutex, persists through the database, reloads the
// snapshot, and swaps the pointer, so a reader never observes a
// half-written graph and queries keep serving the previous snapshot
// while a build is running.
type LocalStore struct {
	db     *database.DB
	logger *slog.Logger
	dims   int

	writerMu sync.Mutex
	building atomic.Bool
	snap     atomic.Pointer[Snapshot]

	traceMu sync.RWMutex
	traceCh chan types.QueryTrace
	closed  bool
	dropped atomic.Int64
	wg      sync.WaitGroup
}

var _ Store = (*LocalStore)(nil)

// OpenLocal opens (creating if needed) the store at cfg.Path, runs
// migrations, verifies on-disk integrity, and loads the initial
// snapshot. Integrity failures surface as STORAGE_CORRUPTION and the
// store refuses to open; corruption is never silently repaired.
func OpenLocal(ctx context.Context, cfg LocalConfig) (*LocalStore, error) {
	cfg.ApplyDefaults()
	if cfg.Path == "" {
		return nil, types.NewValidationError("store path cannot be empty")
	}

	db, err := database.Open(cfg.Path)
	if err != nil {
		return nil, err
	}

	s := &LocalStore{
		db:      db,
		logger:  cfg.Logger.With("component", "graph.store"),
		dims:    cfg.Dimensions,
		traceCh: make(chan types.QueryTrace, cfg.TraceBuffer),
	}

	if err := db.InitSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate store schema: %w", err)
	}

	// A store that has been built knows its own embedding width; the
	// configured value only seeds a fresh store.
	if v, err := s.readMetaValue(ctx, MetaEmbeddingDims); err != nil {
		db.Close()
		return nil, err
	} else if v != "" {
		if n, convErr := strconv.Atoi(v); convErr == nil && n > 0 {
			if n != cfg.Dimensions {
				s.logger.Debug("using persisted embedding dimensions",
					"persisted", n, "configured", cfg.Dimensions)
			}
			s.dims = n
		}
	}

	if err := s.verifyIntegrity(ctx); err != nil {
		db.Close()
		return nil, err
	}

	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.snap.Store(snap)

	if pruned, err := database.PruneTraces(ctx, s.db, traceRetention); err == nil && pruned > 0 {
		s.logger.Debug("pruned old query traces", "count", pruned)
	}

	s.wg.Add(1)
	go s.traceWriter()

	s.logger.Info("graph store opened",
		"path", cfg.Path,
		"entities", snap.Len(),
		"edges", snap.EdgeCount(),
		"dimensions", s.dims)
	return s, nil
}

// verifyIntegrity runs the open-time corruption scan: SQLite page
// checks, full-text index consistency, dangling edge endpoints, and
// embedding widths. Foreign keys make dangling rows impossible to
// insert through this code, but a tampered or partially restored file
// can still contain them.
func (s *LocalStore) verifyIntegrity(ctx context.Context) error {
	verdict, err := s.db.QuickCheck(ctx)
	if err != nil {
		return types.NewStorageCorruptionError("integrity check failed to run", err)
	}
	if verdict != "ok" {
		return types.NewStorageCorruptionError("sqlite quick_check reported: "+verdict, nil)
	}

	if err := database.CheckFTSIntegrity(ctx, s.db); err != nil {
		return types.NewStorageCorruptionError("full-text index out of sync with entities", err)
	}

	var dangling int
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM edges e
		LEFT JOIN entities src ON e.source_id = src.id
		LEFT JOIN entities tgt ON e.target_id = tgt.id
		WHERE src.id IS NULL OR tgt.id IS NULL
	`).Scan(&dangling)
	if err != nil {
		return types.NewStorageCorruptionError("dangling edge scan failed", err)
	}
	if dangling > 0 {
		return types.NewStorageCorruptionError(
			fmt.Sprintf("%d edges reference missing entities", dangling), nil)
	}

	var badVectors int
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM embeddings
		WHERE dimensions != ? OR length(vector) != ? * 8
	`, s.dims, s.dims).Scan(&badVectors)
	if err != nil {
		return types.NewStorageCorruptionError("embedding width scan failed", err)
	}
	if badVectors > 0 {
		return types.NewStorageCorruptionError(
			fmt.Sprintf("%d embeddings do not match the %d-dimension store width", badVectors, s.dims), nil)
	}
	return nil
}

func (s *LocalStore) readMetaValue(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM store_meta WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", types.WrapError(types.ErrCodeStorageFailed, "failed to read store metadata", err)
	}
	return v, nil
}

// loadSnapshot reads the whole graph into a fresh immutable snapshot.
func (s *LocalStore) loadSnapshot(ctx context.Context) (*Snapshot, error) {
	entities, err := s.loadEntities(ctx)
	if err != nil {
		return nil, err
	}
	edges, err := s.loadEdges(ctx)
	if err != nil {
		return nil, err
	}
	meta, err := s.loadMeta(ctx)
	if err != nil {
		return nil, err
	}
	return newSnapshot(entities, edges, meta)
}

func (s *LocalStore) loadEntities(ctx context.Context) ([]*Entity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.label, e.description, e.category, e.metadata,
		       e.created_at, e.updated_at, emb.vector
		FROM entities e
		LEFT JOIN embeddings emb ON emb.entity_id = e.id
		ORDER BY e.id ASC
	`)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeStorageFailed, "failed to load entities", err)
	}
	defer rows.Close()

	var entities []*Entity
	for rows.Next() {
		var (
			ent      Entity
			category string
			metaJSON string
			vector   []byte
		)
		if err := rows.Scan(&ent.ID, &ent.Label, &ent.Description, &category,
			&metaJSON, &ent.CreatedAt, &ent.UpdatedAt, &vector); err != nil {
			return nil, types.WrapError(types.ErrCodeStorageFailed, "failed to scan entity row", err)
		}

		ent.Category = Category(category)
		if !ent.Category.IsValid() {
			return nil, types.NewStorageCorruptionError(
				fmt.Sprintf("entity %s has unknown category %q", ent.ID, category), nil)
		}
		if err := json.Unmarshal([]byte(metaJSON), &ent.Metadata); err != nil {
			return nil, types.NewStorageCorruptionError(
				fmt.Sprintf("entity %s has unreadable metadata", ent.ID), err)
		}
		if vector != nil {
			ent.Embedding, err = decodeVector(vector, s.dims)
			if err != nil {
				return nil, err
			}
		}
		entities = append(entities, &ent)
	}
	if err := rows.Err(); err != nil {
		return nil, types.WrapError(types.ErrCodeStorageFailed, "error iterating entities", err)
	}
	return entities, nil
}

func (s *LocalStore) loadEdges(ctx context.Context) ([]*Edge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id, target_id, rel_type, strength, reasoning, hints, created_at
		FROM edges
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeStorageFailed, "failed to load edges", err)
	}
	defer rows.Close()

	var edges []*Edge
	for rows.Next() {
		var (
			edge      Edge
			relType   string
			hintsJSON string
		)
		if err := rows.Scan(&edge.Source, &edge.Target, &relType,
			&edge.Strength, &edge.Reasoning, &hintsJSON, &edge.CreatedAt); err != nil {
			return nil, types.WrapError(types.ErrCodeStorageFailed, "failed to scan edge row", err)
		}

		edge.Type = RelationType(relType)
		if !edge.Type.IsValid() {
			return nil, types.NewStorageCorruptionError(
				fmt.Sprintf("edge %s -> %s has unknown relation type %q",
					edge.Source, edge.Target, relType), nil)
		}
		if err := json.Unmarshal([]byte(hintsJSON), &edge.Hints); err != nil {
			return nil, types.NewStorageCorruptionError(
				fmt.Sprintf("edge %s -> %s has unreadable hints", edge.Source, edge.Target), err)
		}
		edges = append(edges, &edge)
	}
	if err := rows.Err(); err != nil {
		return nil, types.WrapError(types.ErrCodeStorageFailed, "error iterating edges", err)
	}
	return edges, nil
}

func (s *LocalStore) loadMeta(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM store_meta`)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeStorageFailed, "failed to load store metadata", err)
	}
	defer rows.Close()

	meta := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, types.WrapError(types.ErrCodeStorageFailed, "failed to scan metadata row", err)
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

// refreshSnapshot reloads from the database and swaps the read
// pointer. Callers hold writerMu.
func (s *LocalStore) refreshSnapshot(ctx context.Context) error {
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return err
	}
	s.snap.Store(snap)
	return nil
}

// Snapshot returns the current immutable read view.
func (s *LocalStore) Snapshot() *Snapshot {
	return s.snap.Load()
}

// PutEntity inserts or overwrites one entity by id.
func (s *LocalStore) PutEntity(ctx context.Context, e *Entity) error {
	if e == nil {
		return types.NewValidationError("entity cannot be nil")
	}
	if err := e.Validate(); err != nil {
		return err
	}
	if e.HasEmbedding() && len(e.Embedding) != s.dims {
		return types.NewValidationError(
			"embedding has %d dimensions, store expects %d", len(e.Embedding), s.dims)
	}

	s.writerMu.Lock()
	defer s.writerMu.Unlock()

	ent := e.Clone()
	now := time.Now().UTC()
	if ent.CreatedAt.IsZero() {
		ent.CreatedAt = now
	}
	ent.UpdatedAt = now

	model := s.currentModel()
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := upsertEntity(ctx, tx, ent); err != nil {
			return err
		}
		return upsertEmbedding(ctx, tx, ent, model)
	})
	if err != nil {
		return types.WrapError(types.ErrCodeStorageFailed, "failed to store entity", err)
	}
	return s.refreshSnapshot(ctx)
}

// GetEntity returns the entity with its embedding hydrated.
func (s *LocalStore) GetEntity(ctx context.Context, id types.ID) (*Entity, error) {
	if err := id.Validate(); err != nil {
		return nil, types.NewValidationError("invalid entity id: %v", err)
	}
	ent := s.Snapshot().Entity(id)
	if ent == nil {
		return nil, types.NewNotFoundError("entity", id)
	}
	return ent.Clone(), nil
}

// PutEdge inserts or overwrites one edge by logical key.
func (s *LocalStore) PutEdge(ctx context.Context, e *Edge) error {
	if e == nil {
		return types.NewValidationError("edge cannot be nil")
	}
	if err := e.Validate(); err != nil {
		return err
	}

	s.writerMu.Lock()
	defer s.writerMu.Unlock()

	snap := s.Snapshot()
	if !snap.Has(e.Source) || !snap.Has(e.Target) {
		return types.NewDanglingReferenceError(e.Source, e.Target)
	}

	edge := e.Clone()
	if edge.CreatedAt.IsZero() {
		edge.CreatedAt = time.Now().UTC()
	}

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		return upsertEdge(ctx, tx, edge)
	})
	if err != nil {
		return types.WrapError(types.ErrCodeStorageFailed, "failed to store edge", err)
	}
	return s.refreshSnapshot(ctx)
}

// EdgesFrom returns edges incident to id as a source, in insertion order.
func (s *LocalStore) EdgesFrom(ctx context.Context, id types.ID) ([]*Edge, error) {
	snap := s.Snapshot()
	if !snap.Has(id) {
		return nil, types.NewNotFoundError("entity", id)
	}
	return append([]*Edge(nil), snap.EdgesFrom(id)...), nil
}

// EdgesTo returns edges incident to id as a target, in insertion order.
func (s *LocalStore) EdgesTo(ctx context.Context, id types.ID) ([]*Edge, error) {
	snap := s.Snapshot()
	if !snap.Has(id) {
		return nil, types.NewNotFoundError("entity", id)
	}
	return append([]*Edge(nil), snap.EdgesTo(id)...), nil
}

// NearestNeighbors returns the top-k entities by descending cosine
// similarity, ties broken by ascending id.
func (s *LocalStore) NearestNeighbors(ctx context.Context, vector []float64, k int) ([]Neighbor, error) {
	if len(vector) == 0 {
		return nil, types.NewValidationError("query vector cannot be empty")
	}
	if k < 1 {
		return nil, types.NewValidationError("k must be positive, got %d", k)
	}
	hits, err := s.Snapshot().Nearest(vector, k)
	if err != nil {
		return nil, err
	}
	out := make([]Neighbor, len(hits))
	for i, h := range hits {
		out[i] = Neighbor{Entity: h.Entity.Clone(), Score: h.Score}
	}
	return out, nil
}

// KeywordHits returns bm25-ranked lexical matches, best first.
func (s *LocalStore) KeywordHits(ctx context.Context, text string, limit int) ([]KeywordHit, error) {
	hits, err := database.SearchEntities(ctx, s.db, text, limit)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeStorageFailed, "keyword search failed", err)
	}

	snap := s.Snapshot()
	out := make([]KeywordHit, 0, len(hits))
	for _, h := range hits {
		ent := snap.Entity(types.ID(h.ID))
		if ent == nil {
			// The FTS table lags the snapshot only mid-commit; a row
			// matching here but missing there is simply skipped.
			continue
		}
		out = append(out, KeywordHit{Entity: ent.Clone(), Rank: h.Rank})
	}
	return out, nil
}

// SetMetadata writes one store-wide key.
func (s *LocalStore) SetMetadata(ctx context.Context, key, value string) error {
	if strings.TrimSpace(key) == "" {
		return types.NewValidationError("metadata key cannot be empty")
	}

	s.writerMu.Lock()
	defer s.writerMu.Unlock()

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		return upsertMeta(ctx, tx, key, value)
	})
	if err != nil {
		return types.WrapError(types.ErrCodeStorageFailed, "failed to store metadata", err)
	}
	return s.refreshSnapshot(ctx)
}

// GetMetadata reads one store-wide key.
func (s *LocalStore) GetMetadata(ctx context.Context, key string) (string, error) {
	v, ok := s.Snapshot().Meta(key)
	if !ok {
		return "", types.NewNotFoundError("metadata key", types.ID(key))
	}
	return v, nil
}

// UpdateEntityMetadata applies a usage-feedback patch to one entity.
func (s *LocalStore) UpdateEntityMetadata(ctx context.Context, id types.ID, patch MetadataPatch) error {
	if patch.IsZero() {
		return types.NewValidationError("metadata patch changes nothing")
	}

	s.writerMu.Lock()
	defer s.writerMu.Unlock()

	ent := s.Snapshot().Entity(id)
	if ent == nil {
		return types.NewNotFoundError("entity", id)
	}

	cp := ent.Clone()
	if cp.Metadata == nil {
		cp.Metadata = types.Metadata{}
	}
	if patch.SuccessRate != nil {
		cp.Metadata[types.MetaKeySuccessRate] = types.MetaNumber(*patch.SuccessRate)
	}
	if patch.Rating != nil {
		cp.Metadata[types.MetaKeyRating] = types.MetaNumber(*patch.Rating)
	}
	if patch.UsageDelta != 0 {
		current, _ := cp.Metadata.GetNumber(types.MetaKeyUsageCount)
		next := current + patch.UsageDelta
		if next < 0 {
			next = 0
		}
		cp.Metadata[types.MetaKeyUsageCount] = types.MetaNumber(next)
	}
	if err := cp.Metadata.Validate(); err != nil {
		return err
	}
	cp.UpdatedAt = time.Now().UTC()

	metaJSON, err := marshalMeta(cp.Metadata)
	if err != nil {
		return types.WrapError(types.ErrCodeStorageFailed, "failed to encode metadata", err)
	}
	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, execErr := tx.ExecContext(ctx,
			`UPDATE entities SET metadata = ?, updated_at = ? WHERE id = ?`,
			metaJSON, cp.UpdatedAt, cp.ID)
		return execErr
	})
	if err != nil {
		return types.WrapError(types.ErrCodeStorageFailed, "failed to update entity metadata", err)
	}
	return s.refreshSnapshot(ctx)
}

// Stats summarizes the committed graph.
func (s *LocalStore) Stats(ctx context.Context) (*StoreStats, error) {
	snap := s.Snapshot()
	st := &StoreStats{
		Entities:       snap.Len(),
		Edges:          snap.EdgeCount(),
		Embeddings:     snap.EmbeddingCount(),
		ByCategory:     map[Category]int{},
		ByRelationType: map[RelationType]int{},
		BuiltAt:        snap.BuiltAt(),
		Dimensions:     s.dims,
		Path:           s.db.Path(),
	}
	st.BuildID, _ = snap.Meta(MetaBuildID)
	st.EmbeddingModel, _ = snap.Meta(MetaEmbeddingModel)

	for _, id := range snap.IDs() {
		st.ByCategory[snap.Entity(id).Category]++
	}
	var sum float64
	for _, e := range snap.Edges() {
		sum += e.Strength
		st.ByRelationType[e.Type]++
	}
	if st.Edges > 0 {
		st.AvgStrength = sum / float64(st.Edges)
	}
	return st, nil
}

// BeginBuild opens the exclusive build transaction. The writer mutex is
// held until Commit or Abort, so ordinary writes queue behind the build
// while reads keep serving the previous snapshot.
func (s *LocalStore) BeginBuild(ctx context.Context) (BuildTxn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.building.CompareAndSwap(false, true) {
		return nil, types.NewBuildInProgressError()
	}
	s.writerMu.Lock()
	return &buildTxn{store: s}, nil
}

// RecordTrace enqueues one query trace without blocking; traces are
// dropped when the buffer is full.
func (s *LocalStore) RecordTrace(t types.QueryTrace) {
	s.traceMu.RLock()
	defer s.traceMu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.traceCh <- t:
	default:
		s.dropped.Add(1)
	}
}

// RecentTraces returns the n most recent query traces, newest first.
func (s *LocalStore) RecentTraces(ctx context.Context, n int) ([]types.QueryTrace, error) {
	traces, err := database.ListRecentTraces(ctx, s.db, n)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeStorageFailed, "failed to read query traces", err)
	}
	return traces, nil
}

// Health reports storage health.
func (s *LocalStore) Health(ctx context.Context) types.HealthStatus {
	s.traceMu.RLock()
	closed := s.closed
	s.traceMu.RUnlock()
	if closed {
		return types.Unhealthy("store is closed")
	}
	if err := s.db.Health(ctx); err != nil {
		return types.Unhealthy(fmt.Sprintf("database unreachable: %v", err))
	}
	if n := s.dropped.Load(); n > 0 {
		return types.Degraded(fmt.Sprintf("%d query traces dropped under load", n))
	}
	snap := s.Snapshot()
	return types.Healthy(fmt.Sprintf("%d entities, %d edges", snap.Len(), snap.EdgeCount()))
}

// Close flushes pending traces and releases the database.
func (s *LocalStore) Close() error {
	s.traceMu.Lock()
	if s.closed {
		s.traceMu.Unlock()
		return nil
	}
	s.closed = true
	close(s.traceCh)
	s.traceMu.Unlock()

	s.wg.Wait()
	return s.db.Close()
}

func (s *LocalStore) currentModel() string {
	if snap := s.Snapshot(); snap != nil {
		if v, ok := snap.Meta(MetaEmbeddingModel); ok {
			return v
		}
	}
	return ""
}

// traceWriter drains the trace queue in batches off the query path.
func (s *LocalStore) traceWriter() {
	defer s.wg.Done()
	for t := range s.traceCh {
		batch := append(make([]types.QueryTrace, 0, traceFlushBatch), t)
	drain:
		for len(batch) < traceFlushBatch {
			select {
			case more, ok := <-s.traceCh:
				if !ok {
					break drain
				}
				batch = append(batch, more)
			default:
				break drain
			}
		}
		s.flushTraces(batch)
	}
}

func (s *LocalStore) flushTraces(batch []types.QueryTrace) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := database.InsertTraces(ctx, s.db, batch); err != nil {
		s.logger.Warn("failed to persist query traces", "error", err, "count", len(batch))
	}
}

// buildTxn is the single in-flight build transaction. Commit or Abort
// releases the writer mutex and the build slot exactly once.
type buildTxn struct {
	store *LocalStore
	mu    sync.Mutex
	done  bool
}

var _ BuildTxn = (*buildTxn)(nil)

// Commit validates the staged set, replaces the persisted graph inside
// one database transaction, rebuilds the full-text index, and swaps the
// read snapshot. On failure the previous graph stays committed and
// visible.
func (t *buildTxn) Commit(ctx context.Context, set *GraphSet) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return types.NewError(types.ErrCodeStorageFailed, "build transaction already finished")
	}
	defer t.release()

	if set == nil {
		return types.NewValidationError("build set cannot be nil")
	}
	if err := t.store.validateSet(set); err != nil {
		return err
	}
	if err := t.store.replaceGraph(ctx, set); err != nil {
		return types.WrapError(types.ErrCodeStorageFailed, "build commit failed", err)
	}
	if err := t.store.refreshSnapshot(ctx); err != nil {
		return err
	}

	t.store.logger.Info("graph build committed",
		"entities", len(set.Entities),
		"edges", len(set.Edges))
	return nil
}

// Abort releases the build slot leaving the previous graph untouched.
func (t *buildTxn) Abort() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	t.release()
	t.store.logger.Debug("graph build aborted")
}

func (t *buildTxn) release() {
	t.done = true
	t.store.building.Store(false)
	t.store.writerMu.Unlock()
}

// validateSet rejects a staged graph containing invalid entities,
// duplicate ids, mismatched embedding widths, or dangling edges.
func (s *LocalStore) validateSet(set *GraphSet) error {
	seen := make(map[types.ID]struct{}, len(set.Entities))
	for _, e := range set.Entities {
		if e == nil {
			return types.NewValidationError("build set contains a nil entity")
		}
		if err := e.Validate(); err != nil {
			return err
		}
		if e.HasEmbedding() && len(e.Embedding) != s.dims {
			return types.NewValidationError(
				"entity %s embedding has %d dimensions, store expects %d",
				e.ID, len(e.Embedding), s.dims)
		}
		if _, dup := seen[e.ID]; dup {
			return types.NewValidationError("duplicate entity id %s in build set", e.ID)
		}
		seen[e.ID] = struct{}{}
	}
	for _, e := range set.Edges {
		if e == nil {
			return types.NewValidationError("build set contains a nil edge")
		}
		if err := e.Validate(); err != nil {
			return err
		}
		if _, ok := seen[e.Source]; !ok {
			return types.NewDanglingReferenceError(e.Source, e.Target)
		}
		if _, ok := seen[e.Target]; !ok {
			return types.NewDanglingReferenceError(e.Source, e.Target)
		}
	}
	return nil
}

// replaceGraph swaps the persisted graph wholesale inside one database
// transaction and rebuilds the full-text index from the new rows.
func (s *LocalStore) replaceGraph(ctx context.Context, set *GraphSet) error {
	now := time.Now().UTC()
	model := set.Meta[MetaEmbeddingModel]

	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM edges`,
			`DELETE FROM embeddings`,
			`DELETE FROM entities`,
		} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}

		for _, ent := range set.Entities {
			e := *ent
			if e.CreatedAt.IsZero() {
				e.CreatedAt = now
			}
			if e.UpdatedAt.IsZero() {
				e.UpdatedAt = e.CreatedAt
			}
			if err := upsertEntity(ctx, tx, &e); err != nil {
				return err
			}
			if err := upsertEmbedding(ctx, tx, &e, model); err != nil {
				return err
			}
		}

		// Plain inserts would suffice on an emptied table, but the
		// upsert keeps last-write-wins semantics if the builder stages
		// two edges with the same logical key.
		for _, edge := range set.Edges {
			e := *edge
			if e.CreatedAt.IsZero() {
				e.CreatedAt = now
			}
			if err := upsertEdge(ctx, tx, &e); err != nil {
				return err
			}
		}

		meta := map[string]string{}
		for k, v := range set.Meta {
			meta[k] = v
		}
		meta[MetaBuiltAt] = now.Format(time.RFC3339Nano)
		meta[MetaBuildID] = uuid.NewString()
		meta[MetaEntityCount] = strconv.Itoa(len(set.Entities))
		meta[MetaEdgeCount] = strconv.Itoa(len(set.Edges))
		meta[MetaEmbeddingDims] = strconv.Itoa(s.dims)

		keys := make([]string, 0, len(meta))
		for k := range meta {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := upsertMeta(ctx, tx, k, meta[k]); err != nil {
				return err
			}
		}

		for _, cmd := range []string{"rebuild", "optimize"} {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO entities_fts(entities_fts) VALUES(?)`, cmd); err != nil {
				return fmt.Errorf("fts %s failed: %w", cmd, err)
			}
		}
		return nil
	})
}

func upsertEntity(ctx context.Context, tx *sql.Tx, e *Entity) error {
	metaJSON, err := marshalMeta(e.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata for %s: %w", e.ID, err)
	}
	useCases, keywords := ftsProjection(e.Metadata)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entities (id, label, description, category, metadata,
		                      use_cases, keywords, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			label       = excluded.label,
			description = excluded.description,
			category    = excluded.category,
			metadata    = excluded.metadata,
			use_cases   = excluded.use_cases,
			keywords    = excluded.keywords,
			updated_at  = excluded.updated_at
	`, e.ID, e.Label, e.Description, string(e.Category), metaJSON,
		useCases, keywords, e.CreatedAt, e.UpdatedAt)
	return err
}

func upsertEmbedding(ctx context.Context, tx *sql.Tx, e *Entity, model string) error {
	if !e.HasEmbedding() {
		_, err := tx.ExecContext(ctx, `DELETE FROM embeddings WHERE entity_id = ?`, e.ID)
		return err
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO embeddings (entity_id, vector, dimensions, model)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(entity_id) DO UPDATE SET
			vector     = excluded.vector,
			dimensions = excluded.dimensions,
			model      = excluded.model
	`, e.ID, encodeVector(e.Embedding), len(e.Embedding), model)
	return err
}

func upsertEdge(ctx context.Context, tx *sql.Tx, e *Edge) error {
	hintsJSON, err := marshalMeta(e.Hints)
	if err != nil {
		return fmt.Errorf("failed to encode hints for %s -> %s: %w", e.Source, e.Target, err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO edges (logical_key, source_id, target_id, rel_type,
		                   strength, reasoning, hints, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(logical_key) DO UPDATE SET
			source_id  = excluded.source_id,
			target_id  = excluded.target_id,
			strength   = excluded.strength,
			reasoning  = excluded.reasoning,
			hints      = excluded.hints,
			created_at = excluded.created_at
	`, e.LogicalKey(), e.Source, e.Target, string(e.Type),
		e.Strength, e.Reasoning, hintsJSON, e.CreatedAt)
	return err
}

func upsertMeta(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO store_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// marshalMeta encodes metadata as the JSON object stored in the
// database; an empty or nil map is stored as "{}" so column defaults
// and Go values agree.
func marshalMeta(m types.Metadata) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ftsProjection flattens the searchable metadata lists into the
// space-joined text columns the full-text index shadows.
func ftsProjection(m types.Metadata) (useCases, keywords string) {
	if list, ok := m.GetStrings(types.MetaKeyUseCases); ok {
		useCases = strings.Join(list, " ")
	}
	if list, ok := m.GetStrings(types.MetaKeyKeywords); ok {
		keywords = strings.Join(list, " ")
	}
	return useCases, keywords
}
