package split

import (
	"errors"
	"strings"
	"testing"

	"github.com/wicaksana/docdex"
)

func headingStrategy(t *testing.T, cfg Config) *Heading {
	t.Helper()
	s, err := New("heading", cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s.(*Heading)
}

func TestHeadingSplitsAtSections(t *testing.T) {
	s := headingStrategy(t, Config{ParentSize: 2048, ChildSize: 512})
	doc := docdex.Document{Text: `# Install

Download the binary and place it on your PATH.

# Configure

Write a config file with your API key.

## Advanced

Tune batch sizes for large corpora.
`}

	pieces, err := s.SplitParents(doc)
	if err != nil {
		t.Fatalf("SplitParents: %v", err)
	}
	if len(pieces) != 3 {
		t.Fatalf("got %d pieces, want 3 sections", len(pieces))
	}
	wantTitles := []string{"Install", "Configure", "Advanced"}
	for i, p := range pieces {
		if p.Category != wantTitles[i] {
			t.Errorf("piece %d category %q, want %q", i, p.Category, wantTitles[i])
		}
		if !strings.Contains(p.Text, "#") {
			t.Errorf("piece %d lost its heading marker: %q", i, p.Text)
		}
	}
	if !strings.Contains(pieces[0].Text, "Download the binary") {
		t.Errorf("section body missing: %q", pieces[0].Text)
	}
}

func TestHeadingPreambleKeptWithoutTitle(t *testing.T) {
	s := headingStrategy(t, Config{ParentSize: 2048, ChildSize: 512})
	doc := docdex.Document{Text: `Introductory text before any heading.

# First Section

Body of the first section.
`}
	pieces, err := s.SplitParents(doc)
	if err != nil {
		t.Fatalf("SplitParents: %v", err)
	}
	if len(pieces) != 2 {
		t.Fatalf("got %d pieces, want preamble + section", len(pieces))
	}
	if pieces[0].Category != "" {
		t.Errorf("preamble has category %q, want empty", pieces[0].Category)
	}
	if !strings.Contains(pieces[0].Text, "Introductory text") {
		t.Errorf("preamble content lost: %q", pieces[0].Text)
	}
}

func TestHeadingNoStructure(t *testing.T) {
	s := headingStrategy(t, Config{ParentSize: 2048, ChildSize: 512})
	doc := docdex.Document{Text: "Plain prose with no headings at all. Just sentences."}
	_, err := s.SplitParents(doc)
	if !errors.Is(err, ErrNoStructure) {
		t.Fatalf("got %v, want ErrNoStructure", err)
	}
}

func TestHeadingEmptyDocument(t *testing.T) {
	s := headingStrategy(t, Config{ParentSize: 2048, ChildSize: 512})
	pieces, err := s.SplitParents(docdex.Document{Text: "   \n  "})
	if err != nil {
		t.Fatalf("SplitParents: %v", err)
	}
	if len(pieces) != 0 {
		t.Errorf("got %d pieces for blank doc, want 0", len(pieces))
	}
}

func TestHeadingCombinesSmallSections(t *testing.T) {
	s := headingStrategy(t, Config{ParentSize: 2048, ChildSize: 512, CombineUnder: 200})
	doc := docdex.Document{Text: `# Tiny

One line.

# Next

` + strings.Repeat("A longer body sentence for this section. ", 10)}

	pieces, err := s.SplitParents(doc)
	if err != nil {
		t.Fatalf("SplitParents: %v", err)
	}
	if len(pieces) != 1 {
		t.Fatalf("got %d pieces, want the tiny section merged into its successor", len(pieces))
	}
	if pieces[0].Category != "Tiny" {
		t.Errorf("merged category %q, want the first title kept", pieces[0].Category)
	}
	if !strings.Contains(pieces[0].Text, "One line.") || !strings.Contains(pieces[0].Text, "A longer body") {
		t.Errorf("merged piece lost content: %q", pieces[0].Text)
	}
}

func TestHeadingOversizedSectionRechunked(t *testing.T) {
	body := strings.Repeat("A sentence that fills the section with content. ", 40)
	s := headingStrategy(t, Config{ParentSize: 500, ChildSize: 125})
	doc := docdex.Document{Text: "# Big Section\n\n" + body}

	pieces, err := s.SplitParents(doc)
	if err != nil {
		t.Fatalf("SplitParents: %v", err)
	}
	if len(pieces) < 2 {
		t.Fatalf("oversized section should split, got %d pieces", len(pieces))
	}
	for i, p := range pieces {
		if len(p.Text) > 500 {
			t.Errorf("piece %d has %d bytes", i, len(p.Text))
		}
		if p.Category != "Big Section" {
			t.Errorf("piece %d lost its category: %q", i, p.Category)
		}
	}
}

func TestHeadingSplitChildrenBounded(t *testing.T) {
	s := headingStrategy(t, Config{ParentSize: 1000, ChildSize: 100})
	parent := strings.Repeat("Child sized sentences go here. ", 20)
	for i, c := range s.SplitChildren(parent) {
		if len(c) > 100 {
			t.Errorf("child %d has %d bytes", i, len(c))
		}
	}
}
