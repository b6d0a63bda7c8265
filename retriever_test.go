package docdex

import (
	"context"
	"errors"
	"testing"
)

// memParents is an in-memory ParentStore for tests.
type memParents struct {
	m map[string]ParentChunk
}

func newMemParents(parents ...ParentChunk) *memParents {
	s := &memParents{m: make(map[string]ParentChunk)}
	for _, p := range parents {
		s.m[p.ID] = p
	}
	return s
}

func (s *memParents) Put(_ context.Context, p ParentChunk) error {
	if _, ok := s.m[p.ID]; ok {
		return errors.New("duplicate id")
	}
	s.m[p.ID] = p
	return nil
}

func (s *memParents) Get(_ context.Context, id string) (ParentChunk, error) {
	p, ok := s.m[id]
	if !ok {
		return ParentChunk{}, ErrNotFound
	}
	return p, nil
}

func (s *memParents) GetMany(_ context.Context, ids []string) ([]*ParentChunk, error) {
	out := make([]*ParentChunk, len(ids))
	for i, id := range ids {
		if p, ok := s.m[id]; ok {
			cp := p
			out[i] = &cp
		}
	}
	return out, nil
}

func (s *memParents) ListIDs(_ context.Context) ([]string, error) {
	ids := make([]string, 0, len(s.m))
	for id := range s.m {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *memParents) Count(_ context.Context) (int, error) { return len(s.m), nil }
func (s *memParents) Wipe(_ context.Context) error {
	s.m = make(map[string]ParentChunk)
	return nil
}
func (s *memParents) Close() error { return nil }

var _ ParentStore = (*memParents)(nil)

// fixedIndex returns a canned hit list from Search, ignoring the query.
type fixedIndex struct {
	hits     []ScoredChild
	manifest *Manifest
}

func (f *fixedIndex) Add(_ context.Context, _ ChildChunk) (string, error) { return "1", nil }
func (f *fixedIndex) AddBatch(_ context.Context, cs []ChildChunk) ([]string, error) {
	return make([]string, len(cs)), nil
}
func (f *fixedIndex) Search(_ context.Context, _ []float32, topK int) ([]ScoredChild, error) {
	if len(f.hits) > topK {
		return f.hits[:topK], nil
	}
	return f.hits, nil
}
func (f *fixedIndex) All(_ context.Context) ([]ChildChunk, error) { return nil, nil }
func (f *fixedIndex) Count(_ context.Context) (int, error)        { return len(f.hits), nil }
func (f *fixedIndex) Wipe(_ context.Context) error                { return nil }
func (f *fixedIndex) Close() error                                { return nil }

func (f *fixedIndex) SetManifest(_ context.Context, m Manifest) error {
	f.manifest = &m
	return nil
}
func (f *fixedIndex) Manifest(_ context.Context) (Manifest, error) {
	if f.manifest == nil {
		return Manifest{}, ErrNotFound
	}
	return *f.manifest, nil
}

var _ ChildIndex = (*fixedIndex)(nil)
var _ ManifestKeeper = (*fixedIndex)(nil)

// fixedEmbedder returns the same vector for every text.
type fixedEmbedder struct {
	model string
	dims  int
}

func (e *fixedEmbedder) Name() string    { return "fixed" }
func (e *fixedEmbedder) Model() string   { return e.model }
func (e *fixedEmbedder) Dimensions() int { return e.dims }
func (e *fixedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, e.dims)
		vec[0] = 1
		out[i] = vec
	}
	return out, nil
}

func hit(childID, parentID string, score float32) ScoredChild {
	return ScoredChild{
		ChildChunk: ChildChunk{ID: childID, ParentID: parentID, Text: "child " + childID},
		Score:      score,
	}
}

func TestQueryResolvesParents(t *testing.T) {
	parents := newMemParents(
		ParentChunk{ID: "p1", Content: "first parent", Metadata: ChunkMeta{SourceName: "a.md"}},
		ParentChunk{ID: "p2", Content: "second parent", Metadata: ChunkMeta{SourceName: "b.md"}},
	)
	index := &fixedIndex{hits: []ScoredChild{
		hit("c1", "p1", 0.9),
		hit("c2", "p2", 0.8),
	}}
	r, err := NewRetriever(context.Background(), parents, index, &fixedEmbedder{model: "m", dims: 4})
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}

	got, err := r.Query(context.Background(), "question")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 contexts, got %d", len(got))
	}
	if got[0].ParentID != "p1" || got[0].Content != "first parent" {
		t.Errorf("first context = %+v, want parent p1", got[0])
	}
	if got[0].Score != 0.9 {
		t.Errorf("first score = %v, want 0.9", got[0].Score)
	}
	if got[1].Metadata.SourceName != "b.md" {
		t.Errorf("second metadata = %+v, want source b.md", got[1].Metadata)
	}
}

func TestQueryDeduplicatesParents(t *testing.T) {
	parents := newMemParents(
		ParentChunk{ID: "p1", Content: "shared parent"},
		ParentChunk{ID: "p2", Content: "other parent"},
	)
	// Two children of p1 rank above p2's child; p1 must appear once with
	// its best score.
	index := &fixedIndex{hits: []ScoredChild{
		hit("c1", "p1", 0.95),
		hit("c2", "p1", 0.90),
		hit("c3", "p2", 0.85),
	}}
	r, err := NewRetriever(context.Background(), parents, index, &fixedEmbedder{model: "m", dims: 4})
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}

	got, err := r.Query(context.Background(), "question")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 contexts after dedup, got %d", len(got))
	}
	if got[0].ParentID != "p1" || got[0].Score != 0.95 {
		t.Errorf("got %+v, want p1 with score 0.95", got[0])
	}
	if got[1].ParentID != "p2" {
		t.Errorf("got %+v, want p2 second", got[1])
	}
}

func TestQueryDropsOrphanedHits(t *testing.T) {
	parents := newMemParents(ParentChunk{ID: "p1", Content: "valid parent"})
	index := &fixedIndex{hits: []ScoredChild{
		hit("c1", "ghost", 0.99),
		hit("c2", "p1", 0.70),
	}}
	r, err := NewRetriever(context.Background(), parents, index, &fixedEmbedder{model: "m", dims: 4})
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}

	got, err := r.Query(context.Background(), "question")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 context, got %d", len(got))
	}
	if got[0].ParentID != "p1" {
		t.Errorf("got parent %s, want p1", got[0].ParentID)
	}
}

func TestQueryMinScoreFilter(t *testing.T) {
	parents := newMemParents(
		ParentChunk{ID: "p1", Content: "a"},
		ParentChunk{ID: "p2", Content: "b"},
	)
	index := &fixedIndex{hits: []ScoredChild{
		hit("c1", "p1", 0.9),
		hit("c2", "p2", 0.2),
	}}
	r, err := NewRetriever(context.Background(), parents, index,
		&fixedEmbedder{model: "m", dims: 4}, WithMinScore(0.5))
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}

	got, err := r.Query(context.Background(), "question")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 || got[0].ParentID != "p1" {
		t.Fatalf("expected only p1, got %+v", got)
	}
}

func TestQueryNoHits(t *testing.T) {
	r, err := NewRetriever(context.Background(), newMemParents(), &fixedIndex{},
		&fixedEmbedder{model: "m", dims: 4})
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}
	got, err := r.Query(context.Background(), "question")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no contexts, got %d", len(got))
	}
}

func TestNewRetrieverModelMismatch(t *testing.T) {
	index := &fixedIndex{manifest: &Manifest{EmbeddingModel: "model-a", Dimensions: 4}}
	_, err := NewRetriever(context.Background(), newMemParents(), index,
		&fixedEmbedder{model: "model-b", dims: 4})
	var mismatch *ModelMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected ModelMismatchError, got %v", err)
	}
	if mismatch.IndexModel != "model-a" || mismatch.CallerModel != "model-b" {
		t.Errorf("unexpected mismatch detail: %+v", mismatch)
	}
}

func TestNewRetrieverMatchingModel(t *testing.T) {
	index := &fixedIndex{manifest: &Manifest{EmbeddingModel: "model-a", Dimensions: 4}}
	if _, err := NewRetriever(context.Background(), newMemParents(), index,
		&fixedEmbedder{model: "model-a", dims: 4}); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestNewRetrieverNoManifest(t *testing.T) {
	// An index that has never completed a build must still be readable.
	if _, err := NewRetriever(context.Background(), newMemParents(), &fixedIndex{},
		&fixedEmbedder{model: "m", dims: 4}); err != nil {
		t.Fatalf("expected success without manifest, got %v", err)
	}
}

func TestNewRetrieverRejectsBadTopK(t *testing.T) {
	_, err := NewRetriever(context.Background(), newMemParents(), &fixedIndex{},
		&fixedEmbedder{model: "m", dims: 4}, WithTopK(0))
	if err == nil {
		t.Fatal("expected error for top-k 0")
	}
}
