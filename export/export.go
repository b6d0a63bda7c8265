// Package export serializes a fully-built index into one portable JSON
// artifact: parent chunks, child chunks with embeddings, and the
// parent↔child linkage, tagged with the embedding model and chunking
// strategy that produced them.
//
// The artifact is the sole contract with out-of-process consumers. It is
// plain data: loading it requires a JSON parser and nothing else from this
// repository.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/wicaksana/docdex"
)

// Version identifies the snapshot layout. Version 2 is the parent-child
// hierarchy: parents carry content only, children carry embeddings and a
// parent_id back-reference.
const Version = 2

// Snapshot is the exported index. Immutable once written; a re-export
// replaces the whole artifact.
type Snapshot struct {
	Version          int                   `json:"version"`
	EmbeddingModel   string                `json:"embedding_model"`
	ChunkingStrategy string                `json:"chunking_strategy"`
	ParentChunks     []docdex.ParentChunk  `json:"parent_chunks"`
	ChildChunks      []docdex.ChildChunk   `json:"child_chunks"`
}

// Stats summarizes an export or inspection pass. Orphans counts children
// whose parent_id did not resolve; they are still exported, but surfaced
// loudly here.
type Stats struct {
	Parents          int            `json:"parents"`
	Children         int            `json:"children"`
	Orphans          int            `json:"orphans"`
	ChildlessParents int            `json:"childless_parents"`
	ChildrenBySource map[string]int `json:"children_by_source,omitempty"`
}

// ExporterOption configures an Exporter.
type ExporterOption func(*Exporter)

// WithLogger sets a structured logger. Orphaned children are logged at
// WARN during export.
func WithLogger(l *slog.Logger) ExporterOption {
	return func(e *Exporter) { e.logger = l }
}

// Exporter reads a complete, quiescent index and materializes it as a
// Snapshot. It holds no locks: the caller must not run a rebuild
// concurrently with an export.
type Exporter struct {
	parents  docdex.ParentStore
	children docdex.ChildIndex
	logger   *slog.Logger
}

// NewExporter creates an Exporter over the given stores.
func NewExporter(parents docdex.ParentStore, children docdex.ChildIndex, opts ...ExporterOption) *Exporter {
	e := &Exporter{parents: parents, children: children, logger: nopLogger}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Export enumerates both stores in full and assembles the snapshot.
//
// Every child's parent_id is validated against the enumerated parents;
// orphans are counted and logged but still included, so the consumer can
// apply its own policy. The embedding model and strategy tags come from
// the index's build manifest when available.
func (e *Exporter) Export(ctx context.Context) (*Snapshot, Stats, error) {
	snap := &Snapshot{Version: Version}
	var stats Stats

	if mk, ok := e.children.(docdex.ManifestKeeper); ok {
		m, err := mk.Manifest(ctx)
		switch {
		case errors.Is(err, docdex.ErrNotFound):
			e.logger.Warn("export: index has no build manifest, model/strategy tags will be empty")
		case err != nil:
			return nil, stats, fmt.Errorf("read manifest: %w", err)
		default:
			snap.EmbeddingModel = m.EmbeddingModel
			snap.ChunkingStrategy = m.ChunkingStrategy
		}
	}

	ids, err := e.parents.ListIDs(ctx)
	if err != nil {
		return nil, stats, fmt.Errorf("enumerate parents: %w", err)
	}
	parents, err := e.parents.GetMany(ctx, ids)
	if err != nil {
		return nil, stats, fmt.Errorf("materialize parents: %w", err)
	}
	parentSet := make(map[string]bool, len(ids))
	for i, p := range parents {
		if p == nil {
			// Listed a moment ago but gone now: a writer raced the
			// export, which the caller promised not to do.
			return nil, stats, fmt.Errorf("parent %s vanished during export", ids[i])
		}
		snap.ParentChunks = append(snap.ParentChunks, *p)
		parentSet[p.ID] = true
	}

	children, err := e.children.All(ctx)
	if err != nil {
		return nil, stats, fmt.Errorf("enumerate children: %w", err)
	}
	childCounts := make(map[string]int, len(parentSet))
	stats.ChildrenBySource = make(map[string]int)
	for _, c := range children {
		if !parentSet[c.ParentID] {
			stats.Orphans++
			e.logger.Warn("export: orphaned child chunk", "child_id", c.ID, "parent_id", c.ParentID)
		} else {
			childCounts[c.ParentID]++
		}
		stats.ChildrenBySource[c.Metadata.SourceName]++
		snap.ChildChunks = append(snap.ChildChunks, c)
	}
	for id := range parentSet {
		if childCounts[id] == 0 {
			stats.ChildlessParents++
		}
	}

	stats.Parents = len(snap.ParentChunks)
	stats.Children = len(snap.ChildChunks)

	e.logger.Info("export assembled",
		"parents", stats.Parents,
		"children", stats.Children,
		"orphans", stats.Orphans)
	return snap, stats, nil
}

// WriteFile serializes the snapshot to path as JSON, written to a temp
// file and renamed into place so a crashed export never leaves a partial
// artifact behind.
func WriteFile(snap *Snapshot, path string) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot back from path. Used by tests and by consumers
// that want the typed form; the artifact itself is plain JSON.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != Version {
		return nil, fmt.Errorf("unsupported snapshot version %d (want %d)", snap.Version, Version)
	}
	return &snap, nil
}

// Inspect runs the same full read pass as Export but keeps only the
// statistics. Useful for checking index health without materializing
// every embedding in memory for serialization.
func Inspect(ctx context.Context, parents docdex.ParentStore, children docdex.ChildIndex) (Stats, error) {
	var stats Stats

	ids, err := parents.ListIDs(ctx)
	if err != nil {
		return stats, fmt.Errorf("enumerate parents: %w", err)
	}
	parentSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		parentSet[id] = true
	}

	all, err := children.All(ctx)
	if err != nil {
		return stats, fmt.Errorf("enumerate children: %w", err)
	}
	childCounts := make(map[string]int, len(parentSet))
	stats.ChildrenBySource = make(map[string]int)
	for _, c := range all {
		if !parentSet[c.ParentID] {
			stats.Orphans++
		} else {
			childCounts[c.ParentID]++
		}
		stats.ChildrenBySource[c.Metadata.SourceName]++
	}
	for id := range parentSet {
		if childCounts[id] == 0 {
			stats.ChildlessParents++
		}
	}
	stats.Parents = len(ids)
	stats.Children = len(all)
	return stats, nil
}
