package docdex

import "context"

// ParentStore is a durable key→content mapping for parent chunks.
//
// Entries are write-once per id: a Put for an existing id is a caller bug.
// Implementations must be safe for one writer with many concurrent readers,
// and a returned Put must survive process restart.
type ParentStore interface {
	// Put stores a parent chunk under parent.ID.
	Put(ctx context.Context, parent ParentChunk) error
	// Get returns the parent chunk for id, or ErrNotFound.
	Get(ctx context.Context, id string) (ParentChunk, error)
	// GetMany returns one entry per requested id, aligned with ids.
	// Missing entries are nil, never silently skipped.
	GetMany(ctx context.Context, ids []string) ([]*ParentChunk, error)
	// ListIDs enumerates every stored id. The enumeration is finite and
	// restartable: calling it again re-reads the store from the start.
	ListIDs(ctx context.Context) ([]string, error)
	// Count returns the number of stored parents.
	Count(ctx context.Context) (int, error)
	// Wipe removes all entries. Used only at the start of a rebuild.
	Wipe(ctx context.Context) error
	Close() error
}

// ChildIndex is a vector-searchable collection of child chunks.
//
// The similarity metric is fixed when the index is created (cosine for the
// sqlite implementation) and must match the metric assumed at query time.
// A single writer performs bulk inserts; concurrent readers are only safe
// once the build has completed.
type ChildIndex interface {
	// Add inserts one child chunk and returns its store-local id.
	// The ID field of the argument is ignored.
	Add(ctx context.Context, child ChildChunk) (string, error)
	// AddBatch inserts children in one transaction, returning their ids
	// in input order.
	AddBatch(ctx context.Context, children []ChildChunk) ([]string, error)
	// Search returns the topK children nearest to the query embedding,
	// ordered by descending similarity.
	Search(ctx context.Context, embedding []float32, topK int) ([]ScoredChild, error)
	// All enumerates every stored child including its embedding.
	// Intended for one-shot export passes over a quiescent index.
	All(ctx context.Context) ([]ChildChunk, error)
	// Count returns the number of stored children.
	Count(ctx context.Context) (int, error)
	// Wipe removes all entries and the build manifest.
	Wipe(ctx context.Context) error
	Close() error
}

// Manifest records how an index was built. It is written once per rebuild
// and consulted by readers to detect configuration drift before serving.
type Manifest struct {
	EmbeddingModel   string `json:"embedding_model"`
	Dimensions       int    `json:"dimensions"`
	ChunkingStrategy string `json:"chunking_strategy"`
	BuiltAt          int64  `json:"built_at"`
}

// ManifestKeeper is an optional ChildIndex capability. Implementations that
// persist the build manifest expose it here; callers discover the
// capability via type assertion.
type ManifestKeeper interface {
	SetManifest(ctx context.Context, m Manifest) error
	Manifest(ctx context.Context) (Manifest, error)
}
