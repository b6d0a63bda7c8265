package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/wicaksana/docdex"
)

func testIndex(t *testing.T) *Index {
	t.Helper()
	ix := New(filepath.Join(t.TempDir(), "test.db"))
	if err := ix.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { ix.Close() })
	return ix
}

func child(parentID, text string, embedding []float32) docdex.ChildChunk {
	return docdex.ChildChunk{
		Text:      text,
		ParentID:  parentID,
		Embedding: embedding,
		Metadata:  docdex.ChunkMeta{SourceName: "doc.md"},
	}
}

func TestInitIdempotent(t *testing.T) {
	ix := New(filepath.Join(t.TempDir(), "init.db"))
	defer ix.Close()
	ctx := context.Background()
	if err := ix.Init(ctx); err != nil {
		t.Fatalf("first Init: %v", err)
	}
	if err := ix.Init(ctx); err != nil {
		t.Fatalf("second Init: %v", err)
	}
}

func TestAddBatchReturnsSequentialIDs(t *testing.T) {
	ix := testIndex(t)
	ctx := context.Background()

	ids, err := ix.AddBatch(ctx, []docdex.ChildChunk{
		child("p1", "one", []float32{1, 0}),
		child("p1", "two", []float32{0, 1}),
	})
	if err != nil {
		t.Fatalf("AddBatch: %v", err)
	}
	if len(ids) != 2 || ids[0] != "1" || ids[1] != "2" {
		t.Errorf("got ids %v, want [1 2]", ids)
	}

	n, err := ix.Count(ctx)
	if err != nil || n != 2 {
		t.Errorf("Count = %d, %v; want 2", n, err)
	}
}

func TestAddBatchValidates(t *testing.T) {
	ix := testIndex(t)
	ctx := context.Background()

	if _, err := ix.AddBatch(ctx, []docdex.ChildChunk{child("", "text", []float32{1})}); err == nil {
		t.Error("expected error for missing parent id")
	}
	if _, err := ix.AddBatch(ctx, []docdex.ChildChunk{child("p1", "text", nil)}); err == nil {
		t.Error("expected error for missing embedding")
	}
	// The failed batch must not have written anything.
	if n, _ := ix.Count(ctx); n != 0 {
		t.Errorf("Count = %d after failed batches, want 0", n)
	}
}

func TestSearchOrdersByDescendingSimilarity(t *testing.T) {
	ix := testIndex(t)
	ctx := context.Background()

	_, err := ix.AddBatch(ctx, []docdex.ChildChunk{
		child("p1", "exact", []float32{1, 0, 0}),
		child("p2", "close", []float32{0.9, 0.1, 0}),
		child("p3", "far", []float32{0, 0, 1}),
	})
	if err != nil {
		t.Fatalf("AddBatch: %v", err)
	}

	got, err := ix.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
	if got[0].Text != "exact" || got[1].Text != "close" {
		t.Errorf("order wrong: %q then %q", got[0].Text, got[1].Text)
	}
	if got[0].Score < got[1].Score {
		t.Errorf("scores not descending: %v then %v", got[0].Score, got[1].Score)
	}
	if got[0].ParentID != "p1" {
		t.Errorf("result lost parent linkage: %+v", got[0])
	}
	if got[0].Metadata.SourceName != "doc.md" {
		t.Errorf("result lost metadata: %+v", got[0].Metadata)
	}
}

func TestSearchDimensionMismatch(t *testing.T) {
	ix := testIndex(t)
	ctx := context.Background()

	if _, err := ix.AddBatch(ctx, []docdex.ChildChunk{child("p1", "x", []float32{1, 0, 0})}); err != nil {
		t.Fatalf("AddBatch: %v", err)
	}
	if _, err := ix.Search(ctx, []float32{1, 0}, 5); err == nil {
		t.Fatal("expected error for mismatched query dimensions")
	}
}

func TestSearchRejectsBadArgs(t *testing.T) {
	ix := testIndex(t)
	ctx := context.Background()
	if _, err := ix.Search(ctx, nil, 5); err == nil {
		t.Error("expected error for empty embedding")
	}
	if _, err := ix.Search(ctx, []float32{1}, 0); err == nil {
		t.Error("expected error for top-k 0")
	}
}

func TestAllReturnsEmbeddings(t *testing.T) {
	ix := testIndex(t)
	ctx := context.Background()

	if _, err := ix.AddBatch(ctx, []docdex.ChildChunk{
		child("p1", "one", []float32{0.5, 0.5}),
		child("p2", "two", []float32{1, 0}),
	}); err != nil {
		t.Fatalf("AddBatch: %v", err)
	}

	all, err := ix.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d children, want 2", len(all))
	}
	if all[0].Text != "one" || all[1].Text != "two" {
		t.Errorf("row order wrong: %q then %q", all[0].Text, all[1].Text)
	}
	if len(all[0].Embedding) != 2 || all[0].Embedding[0] != 0.5 {
		t.Errorf("embedding not round-tripped: %v", all[0].Embedding)
	}
}

func TestWipeResetsIDsAndManifest(t *testing.T) {
	ix := testIndex(t)
	ctx := context.Background()

	if _, err := ix.AddBatch(ctx, []docdex.ChildChunk{child("p1", "x", []float32{1})}); err != nil {
		t.Fatalf("AddBatch: %v", err)
	}
	if err := ix.SetManifest(ctx, docdex.Manifest{EmbeddingModel: "m"}); err != nil {
		t.Fatalf("SetManifest: %v", err)
	}

	if err := ix.Wipe(ctx); err != nil {
		t.Fatalf("Wipe: %v", err)
	}
	if n, _ := ix.Count(ctx); n != 0 {
		t.Errorf("Count after wipe = %d, want 0", n)
	}
	if _, err := ix.Manifest(ctx); !errors.Is(err, docdex.ErrNotFound) {
		t.Errorf("manifest should be gone after wipe, got %v", err)
	}

	// Row ids restart at 1 so child ids are stable across rebuilds.
	ids, err := ix.AddBatch(ctx, []docdex.ChildChunk{child("p1", "y", []float32{1})})
	if err != nil {
		t.Fatalf("AddBatch after wipe: %v", err)
	}
	if ids[0] != "1" {
		t.Errorf("first id after wipe = %s, want 1", ids[0])
	}
}

func TestManifestRoundTrip(t *testing.T) {
	ix := testIndex(t)
	ctx := context.Background()

	if _, err := ix.Manifest(ctx); !errors.Is(err, docdex.ErrNotFound) {
		t.Fatalf("fresh index should have no manifest, got %v", err)
	}

	want := docdex.Manifest{
		EmbeddingModel:   "text-embedding-004",
		Dimensions:       768,
		ChunkingStrategy: "heading",
		BuiltAt:          1700000000,
	}
	if err := ix.SetManifest(ctx, want); err != nil {
		t.Fatalf("SetManifest: %v", err)
	}
	got, err := ix.Manifest(ctx)
	if err != nil {
		t.Fatalf("Manifest: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}

	// A second build overwrites the first manifest.
	want.ChunkingStrategy = "recursive"
	if err := ix.SetManifest(ctx, want); err != nil {
		t.Fatalf("SetManifest again: %v", err)
	}
	got, _ = ix.Manifest(ctx)
	if got.ChunkingStrategy != "recursive" {
		t.Errorf("manifest not replaced: %+v", got)
	}
}

func TestCosineSimilarity(t *testing.T) {
	if got := cosineSimilarity([]float32{1, 0}, []float32{1, 0}); got < 0.999 {
		t.Errorf("identical vectors: got %v, want 1", got)
	}
	if got := cosineSimilarity([]float32{1, 0}, []float32{0, 1}); got > 0.001 {
		t.Errorf("orthogonal vectors: got %v, want 0", got)
	}
	if got := cosineSimilarity([]float32{1, 0}, []float32{1}); got != 0 {
		t.Errorf("mismatched lengths: got %v, want 0", got)
	}
	if got := cosineSimilarity([]float32{0, 0}, []float32{0, 0}); got != 0 {
		t.Errorf("zero vectors: got %v, want 0", got)
	}
}
