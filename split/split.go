// Package split implements the chunking strategies that turn documents into
// parent chunks (large context units) and parent chunks into child chunks
// (small search units).
//
// Strategies are pure and deterministic: identical input and configuration
// always produce identical chunk sequences, which rebuilds and tests rely
// on. Variants are selected by name through New; an unknown name is a
// configuration error raised at selection time, never deferred to first use.
package split

import (
	"errors"
	"fmt"
	"sort"

	"github.com/wicaksana/docdex"
)

// ErrNoStructure is returned by a structure-aware strategy when a document
// exposes no usable structure (no headings, or the markup fails to parse).
// The caller decides the fallback: the index builder switches to the
// generic strategy for that one document and records which path ran.
var ErrNoStructure = errors.New("split: no document structure detected")

// Piece is one parent-sized span of a document. Category is best-effort:
// the heading strategy fills it with the owning section heading, the
// recursive strategy leaves it empty.
type Piece struct {
	Text     string
	Category string
}

// Strategy is the two-level chunking contract. SplitParents divides a
// document into ordered parent pieces; SplitChildren divides one parent's
// text into ordered child texts. Child texts never exceed the configured
// child size, which is in turn bounded by the parent size.
type Strategy interface {
	SplitParents(doc docdex.Document) ([]Piece, error)
	SplitChildren(parentText string) []string
	// Name returns the registry name the strategy was selected by.
	Name() string
	// Describe returns a human-readable summary of the configuration.
	Describe() string
}

// Config holds the knobs shared by all strategies. Sizes are in bytes of
// UTF-8 text.
type Config struct {
	// ParentSize is the maximum parent chunk size.
	ParentSize int
	// ChildSize is the maximum child chunk size. Must not exceed ParentSize.
	ChildSize int
	// Overlap is carried between consecutive sibling chunks.
	Overlap int
	// CombineUnder merges structural sections smaller than this into their
	// successor. Only the heading strategy reads it. 0 disables merging.
	CombineUnder int
}

// DefaultConfig mirrors the long-standing production settings: 2048-byte
// parents, 512-byte children, no overlap.
func DefaultConfig() Config {
	return Config{ParentSize: 2048, ChildSize: 512, Overlap: 0, CombineUnder: 200}
}

// Validate reports configuration errors. It is called by New so that bad
// numeric parameters fail at construction.
func (c Config) Validate() error {
	if c.ParentSize <= 0 {
		return fmt.Errorf("split: parent size must be positive, got %d", c.ParentSize)
	}
	if c.ChildSize <= 0 {
		return fmt.Errorf("split: child size must be positive, got %d", c.ChildSize)
	}
	if c.ChildSize > c.ParentSize {
		return fmt.Errorf("split: child size %d exceeds parent size %d", c.ChildSize, c.ParentSize)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("split: overlap must not be negative, got %d", c.Overlap)
	}
	if c.Overlap >= c.ChildSize {
		return fmt.Errorf("split: overlap %d must be smaller than child size %d", c.Overlap, c.ChildSize)
	}
	if c.CombineUnder < 0 {
		return fmt.Errorf("split: combine-under must not be negative, got %d", c.CombineUnder)
	}
	return nil
}

var registry = map[string]func(Config) Strategy{
	"recursive": func(cfg Config) Strategy { return NewRecursive(cfg) },
	"heading":   func(cfg Config) Strategy { return NewHeading(cfg) },
}

// Names returns the registered strategy names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// New selects a strategy by name and validates cfg. Unknown names and
// invalid configurations are rejected here, before any document is touched.
func New(name string, cfg Config) (Strategy, error) {
	build, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("split: unknown strategy %q (available: %v)", name, Names())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return build(cfg), nil
}
