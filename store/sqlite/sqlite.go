// Package sqlite implements docdex.ChildIndex using pure-Go SQLite with
// in-process brute-force vector search. Zero CGO required.
//
// Embeddings are stored as JSON text and scored with cosine similarity at
// query time. The similarity metric is fixed here, at index creation;
// queries must be embedded with the same model the index was built with,
// which readers verify through the persisted build manifest.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/wicaksana/docdex"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// IndexOption configures an Index.
type IndexOption func(*Index)

// WithLogger sets a structured logger for the index. When set, the index
// emits debug logs for every operation including timing and row counts.
func WithLogger(l *slog.Logger) IndexOption {
	return func(ix *Index) { ix.logger = l }
}

// Index implements docdex.ChildIndex backed by a local SQLite file.
type Index struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ docdex.ChildIndex = (*Index)(nil)
var _ docdex.ManifestKeeper = (*Index)(nil)

var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// New creates an Index using a local SQLite file at dbPath.
// It opens a single shared connection pool with SetMaxOpenConns(1) so that
// all goroutines serialize through one connection, eliminating SQLITE_BUSY
// errors caused by concurrent writers opening independent connections.
// Read traffic may still come from many goroutines; the pool handle is
// safe to share.
func New(dbPath string, opts ...IndexOption) *Index {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		// sql.Open only fails when the driver is not registered; with the
		// blank import above that never happens.
		panic(fmt.Sprintf("sqlite: open driver: %v", err))
	}
	db.SetMaxOpenConns(1)
	ix := &Index{db: db, logger: nopLogger}
	for _, o := range opts {
		o(ix)
	}
	ix.logger.Debug("sqlite: index opened", "path", dbPath)
	return ix
}

// Init creates the required tables.
func (ix *Index) Init(ctx context.Context) error {
	start := time.Now()
	tables := []string{
		`CREATE TABLE IF NOT EXISTS children (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			text TEXT NOT NULL,
			parent_id TEXT NOT NULL,
			embedding TEXT NOT NULL,
			metadata TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_children_parent ON children(parent_id)`,
	}
	for _, ddl := range tables {
		if _, err := ix.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	ix.logger.Info("sqlite: init completed", "duration", time.Since(start))
	return nil
}

// Add inserts one child chunk and returns its row id. The incoming ID
// field is ignored: child ids are store-local row sequence numbers.
func (ix *Index) Add(ctx context.Context, child docdex.ChildChunk) (string, error) {
	ids, err := ix.AddBatch(ctx, []docdex.ChildChunk{child})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// AddBatch inserts children in a single transaction, returning their row
// ids in input order. A failed insert rolls back the whole batch.
func (ix *Index) AddBatch(ctx context.Context, children []docdex.ChildChunk) ([]string, error) {
	start := time.Now()
	if len(children) == 0 {
		return nil, nil
	}
	ix.logger.Debug("sqlite: add batch", "count", len(children))

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ids := make([]string, 0, len(children))
	for _, child := range children {
		if child.ParentID == "" {
			return nil, fmt.Errorf("child chunk missing parent id")
		}
		if len(child.Embedding) == 0 {
			return nil, fmt.Errorf("child chunk of parent %s missing embedding", child.ParentID)
		}
		metaJSON, err := json.Marshal(child.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO children (text, parent_id, embedding, metadata) VALUES (?, ?, ?, ?)`,
			child.Text, child.ParentID, serializeEmbedding(child.Embedding), string(metaJSON),
		)
		if err != nil {
			ix.logger.Error("sqlite: insert child failed", "parent_id", child.ParentID, "error", err)
			return nil, fmt.Errorf("insert child: %w", err)
		}
		rowID, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("insert child id: %w", err)
		}
		ids = append(ids, strconv.FormatInt(rowID, 10))
	}

	if err := tx.Commit(); err != nil {
		ix.logger.Error("sqlite: add batch commit failed", "error", err)
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	ix.logger.Debug("sqlite: add batch ok", "count", len(children), "duration", time.Since(start))
	return ids, nil
}

// Search performs brute-force cosine similarity search over all children,
// returning the topK nearest ordered by descending similarity.
func (ix *Index) Search(ctx context.Context, embedding []float32, topK int) ([]docdex.ScoredChild, error) {
	start := time.Now()
	if len(embedding) == 0 {
		return nil, fmt.Errorf("search: empty query embedding")
	}
	if topK <= 0 {
		return nil, fmt.Errorf("search: top-k must be positive, got %d", topK)
	}
	ix.logger.Debug("sqlite: search", "top_k", topK, "embedding_dim", len(embedding))

	rows, err := ix.db.QueryContext(ctx,
		`SELECT id, text, parent_id, embedding, metadata FROM children`)
	if err != nil {
		return nil, fmt.Errorf("search children: %w", err)
	}
	defer rows.Close()

	var results []docdex.ScoredChild
	scanned := 0
	for rows.Next() {
		child, stored, err := scanChild(rows)
		if err != nil {
			return nil, err
		}
		scanned++
		if len(stored) != len(embedding) {
			return nil, fmt.Errorf("search: stored embedding has %d dimensions, query has %d (index built with a different model?)",
				len(stored), len(embedding))
		}
		results = append(results, docdex.ScoredChild{
			ChildChunk: child,
			Score:      cosineSimilarity(embedding, stored),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate children: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	ix.logger.Debug("sqlite: search ok", "scanned", scanned, "returned", len(results), "duration", time.Since(start))
	return results, nil
}

// All enumerates every stored child including its embedding, in row order.
// Intended for one-shot export passes over a quiescent index.
func (ix *Index) All(ctx context.Context) ([]docdex.ChildChunk, error) {
	start := time.Now()
	rows, err := ix.db.QueryContext(ctx,
		`SELECT id, text, parent_id, embedding, metadata FROM children ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	var children []docdex.ChildChunk
	for rows.Next() {
		child, stored, err := scanChild(rows)
		if err != nil {
			return nil, err
		}
		child.Embedding = stored
		children = append(children, child)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate children: %w", err)
	}
	ix.logger.Debug("sqlite: list all ok", "count", len(children), "duration", time.Since(start))
	return children, nil
}

// Count returns the number of stored children.
func (ix *Index) Count(ctx context.Context) (int, error) {
	var n int
	if err := ix.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM children`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count children: %w", err)
	}
	return n, nil
}

// Wipe removes all children, resets the row sequence, and clears the build
// manifest. Used only at the start of a rebuild.
func (ix *Index) Wipe(ctx context.Context) error {
	start := time.Now()
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM children`); err != nil {
		return fmt.Errorf("wipe children: %w", err)
	}
	// Restart row ids at 1 so child ids are stable across rebuilds.
	if _, err := tx.ExecContext(ctx, `DELETE FROM sqlite_sequence WHERE name = 'children'`); err != nil {
		return fmt.Errorf("reset sequence: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM meta`); err != nil {
		return fmt.Errorf("wipe meta: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	ix.logger.Info("sqlite: wiped", "duration", time.Since(start))
	return nil
}

// SetManifest persists the build manifest. Written once per rebuild, after
// all children are in place.
func (ix *Index) SetManifest(ctx context.Context, m docdex.Manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	_, err = ix.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO meta (key, value) VALUES ('manifest', ?)`, string(data))
	if err != nil {
		return fmt.Errorf("store manifest: %w", err)
	}
	return nil
}

// Manifest returns the persisted build manifest, or docdex.ErrNotFound if
// the index has never completed a build.
func (ix *Index) Manifest(ctx context.Context) (docdex.Manifest, error) {
	var data string
	err := ix.db.QueryRowContext(ctx,
		`SELECT value FROM meta WHERE key = 'manifest'`).Scan(&data)
	if err == sql.ErrNoRows {
		return docdex.Manifest{}, fmt.Errorf("manifest: %w", docdex.ErrNotFound)
	}
	if err != nil {
		return docdex.Manifest{}, fmt.Errorf("load manifest: %w", err)
	}
	var m docdex.Manifest
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return docdex.Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}

// DB exposes the underlying handle for maintenance tooling.
func (ix *Index) DB() *sql.DB { return ix.db }

// Close closes the database handle.
func (ix *Index) Close() error {
	ix.logger.Debug("sqlite: index closed")
	return ix.db.Close()
}

// scanChild reads one children row. The embedding comes back separately so
// Search can score it without attaching it to the returned chunk.
func scanChild(rows *sql.Rows) (docdex.ChildChunk, []float32, error) {
	var child docdex.ChildChunk
	var rowID int64
	var embJSON string
	var metaJSON sql.NullString
	if err := rows.Scan(&rowID, &child.Text, &child.ParentID, &embJSON, &metaJSON); err != nil {
		return docdex.ChildChunk{}, nil, fmt.Errorf("scan child: %w", err)
	}
	child.ID = strconv.FormatInt(rowID, 10)
	if metaJSON.Valid && metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &child.Metadata); err != nil {
			return docdex.ChildChunk{}, nil, fmt.Errorf("decode child %s metadata: %w", child.ID, err)
		}
	}
	stored, err := deserializeEmbedding(embJSON)
	if err != nil {
		return docdex.ChildChunk{}, nil, fmt.Errorf("decode child %s embedding: %w", child.ID, err)
	}
	return child, stored, nil
}

// --- Vector math ---

// cosineSimilarity computes the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return float32(dot / denom)
}

// serializeEmbedding converts []float32 to a JSON array string.
func serializeEmbedding(embedding []float32) string {
	data, _ := json.Marshal(embedding)
	return string(data)
}

// deserializeEmbedding parses a JSON array string back to []float32.
func deserializeEmbedding(s string) ([]float32, error) {
	var v []float32
	err := json.Unmarshal([]byte(s), &v)
	return v, err
}
