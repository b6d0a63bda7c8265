package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileLoaderPlainText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("Some plain notes."), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	docs, err := FileLoader{}.Load(context.Background(), Source{Path: path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d documents, want 1", len(docs))
	}
	if docs[0].Text != "Some plain notes." {
		t.Errorf("text = %q", docs[0].Text)
	}
	if docs[0].SourceName != "notes.txt" {
		t.Errorf("source name = %q, want the base name by default", docs[0].SourceName)
	}
}

func TestFileLoaderExplicitName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.md")
	if err := os.WriteFile(path, []byte("# Title"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	docs, err := FileLoader{}.Load(context.Background(), Source{Path: path, Name: "handbook"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if docs[0].SourceName != "handbook" {
		t.Errorf("source name = %q, want handbook", docs[0].SourceName)
	}
}

func TestFileLoaderMissingFile(t *testing.T) {
	_, err := FileLoader{}.Load(context.Background(), Source{Path: filepath.Join(t.TempDir(), "absent.txt")})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
