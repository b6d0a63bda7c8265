package docdex

import (
	"context"
	"fmt"
	"log/slog"
)

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithTopK sets how many child hits are fetched per query (default 8).
// The returned context set is at most this long after deduplication.
func WithTopK(k int) RetrieverOption {
	return func(r *Retriever) { r.topK = k }
}

// WithMinScore drops child hits scoring below the threshold before parent
// resolution. Default 0 (no filtering).
func WithMinScore(s float32) RetrieverOption {
	return func(r *Retriever) { r.minScore = s }
}

// WithRetrieverLogger sets a structured logger. Orphaned hits and other
// recoverable query-time problems are logged at WARN.
func WithRetrieverLogger(l *slog.Logger) RetrieverOption {
	return func(r *Retriever) { r.logger = l }
}

// Retriever is the read path: embed a question, search the child index,
// and resolve each hit back to its parent's full content.
//
// Children exist to match precisely; parents exist to carry enough context
// for generation. Retrieve therefore never returns child snippets.
type Retriever struct {
	parents  ParentStore
	children ChildIndex
	embedder Embedder
	topK     int
	minScore float32
	logger   *slog.Logger
}

// NewRetriever constructs a Retriever over an already-built index.
//
// If the index keeps a build manifest, the embedder's model identity is
// checked against it here: a mismatch is a configuration error and fails
// construction rather than silently degrading every query.
func NewRetriever(ctx context.Context, parents ParentStore, children ChildIndex, embedder Embedder, opts ...RetrieverOption) (*Retriever, error) {
	r := &Retriever{
		parents:  parents,
		children: children,
		embedder: embedder,
		topK:     8,
		logger:   nopLogger,
	}
	for _, o := range opts {
		o(r)
	}
	if r.topK <= 0 {
		return nil, fmt.Errorf("retriever: top-k must be positive, got %d", r.topK)
	}

	if mk, ok := children.(ManifestKeeper); ok {
		m, err := mk.Manifest(ctx)
		switch {
		case err != nil:
			r.logger.Warn("retriever: no build manifest, skipping model check", "error", err)
		case m.EmbeddingModel != "" && m.EmbeddingModel != embedder.Model():
			return nil, &ModelMismatchError{IndexModel: m.EmbeddingModel, CallerModel: embedder.Model()}
		}
	}
	return r, nil
}

// Query embeds the question, searches the child index, and returns the
// deduplicated parent contents, most-similar child first.
//
// A hit whose parent id no longer resolves is an integrity defect in the
// index: the hit is dropped and logged, and the query continues with the
// remaining hits.
func (r *Retriever) Query(ctx context.Context, question string) ([]Context, error) {
	embs, err := r.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(embs) == 0 {
		return nil, fmt.Errorf("embed query: no embedding returned")
	}

	hits, err := r.children.Search(ctx, embs[0], r.topK)
	if err != nil {
		return nil, fmt.Errorf("search children: %w", err)
	}
	if r.minScore > 0 {
		filtered := hits[:0]
		for _, h := range hits {
			if h.Score >= r.minScore {
				filtered = append(filtered, h)
			}
		}
		hits = filtered
	}
	if len(hits) == 0 {
		return nil, nil
	}

	parentIDs := make([]string, len(hits))
	for i, h := range hits {
		parentIDs[i] = h.ParentID
	}
	parents, err := r.parents.GetMany(ctx, parentIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve parents: %w", err)
	}

	// Hits arrive ordered by descending similarity; first-seen wins, so a
	// parent matched by several children keeps its best-ranked score.
	seen := make(map[string]bool, len(hits))
	var contexts []Context
	for i, h := range hits {
		p := parents[i]
		if p == nil {
			r.logger.Warn("retriever: dropping orphaned hit",
				"child_id", h.ID,
				"parent_id", h.ParentID,
				"score", h.Score)
			continue
		}
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		contexts = append(contexts, Context{
			ParentID: p.ID,
			Content:  p.Content,
			Score:    h.Score,
			Metadata: p.Metadata,
		})
	}
	return contexts, nil
}
