package docdex

// --- Domain types ---

// Document is a raw input unit produced by a loader: the text of one page
// (or one file, for unpaged formats) plus its provenance. Documents are
// consumed by the index builder and never stored as-is.
type Document struct {
	Text       string `json:"text"`
	SourcePath string `json:"source_path"`
	SourceName string `json:"source_name"`
	Page       int    `json:"page,omitempty"` // 1-based; 0 = not paginated
}

// ChunkMeta is the provenance metadata carried by every stored chunk.
// Category is best-effort: structure-aware splitting fills it with the
// owning section heading, generic splitting leaves it empty.
type ChunkMeta struct {
	SourceName string `json:"source_name"`
	Page       int    `json:"page,omitempty"`
	Category   string `json:"category,omitempty"`
}

// ParentChunk is a large context unit. It is stored in a ParentStore keyed
// by ID and returned whole when any of its children matches a query.
// Parents are write-once: created during a rebuild, immutable until the
// next full wipe.
type ParentChunk struct {
	ID       string    `json:"id"`
	Content  string    `json:"content"`
	Metadata ChunkMeta `json:"metadata"`
}

// ChildChunk is a small search unit. Its embedding is computed once at
// creation; ParentID must reference a ParentChunk written in the same build.
type ChildChunk struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	ParentID  string    `json:"parent_id"`
	Metadata  ChunkMeta `json:"metadata"`
	Embedding []float32 `json:"embedding"`
}

// ScoredChild is a child chunk with its similarity to a query embedding.
type ScoredChild struct {
	ChildChunk
	Score float32 `json:"score"`
}

// Context is one deduplicated retrieval result: the full content of the
// parent whose child matched, ranked by the best-scoring child.
type Context struct {
	ParentID string    `json:"parent_id"`
	Content  string    `json:"content"`
	Score    float32   `json:"score"`
	Metadata ChunkMeta `json:"metadata"`
}
