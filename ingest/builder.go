// Package ingest implements the write path of the index: load documents,
// split them into parent and child chunks, embed the children, and
// populate the parent store and child index with consistent linkage.
//
// The model is rebuild-or-nothing: a rebuild wipes both stores and
// repopulates them from scratch. There is no incremental merge; adding a
// single document means rebuilding the whole index.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wicaksana/docdex"
	"github.com/wicaksana/docdex/split"
)

// DocReport records how one document was processed, including which
// strategy actually ran (the configured one, or the fallback).
type DocReport struct {
	SourceName string `json:"source_name"`
	Page       int    `json:"page,omitempty"`
	Strategy   string `json:"strategy"`
	Parents    int    `json:"parents"`
	Children   int    `json:"children"`
}

// Report summarizes a rebuild. Recoverable problems (unreadable sources,
// embedding failures scoped to one document, empty chunks) end up in
// Warnings and counters; only configuration and storage errors abort a
// rebuild entirely.
type Report struct {
	ParentsWritten     int         `json:"parents_written"`
	ChildrenWritten    int         `json:"children_written"`
	DocsProcessed      int         `json:"docs_processed"`
	DocsSkipped        int         `json:"docs_skipped"`
	EmptyChunksSkipped int         `json:"empty_chunks_skipped"`
	ChildlessParents   int         `json:"childless_parents"`
	FallbackDocs       int         `json:"fallback_docs"`
	Documents          []DocReport `json:"documents,omitempty"`
	Warnings           []string    `json:"warnings,omitempty"`
}

func (r *Report) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Option configures a Builder.
type Option func(*Builder)

// WithLoader sets the document loader (default FileLoader).
func WithLoader(l Loader) Option {
	return func(b *Builder) { b.loader = l }
}

// WithFallback sets the strategy used for a document when the primary
// strategy reports split.ErrNoStructure. Without a fallback such a
// document is skipped with a warning.
func WithFallback(s split.Strategy) Option {
	return func(b *Builder) { b.fallback = s }
}

// WithBatchSize sets how many child texts are embedded per provider call
// (default 32). On provider failure the builder halves the batch before
// escalating, so this is an upper bound.
func WithBatchSize(n int) Option {
	return func(b *Builder) { b.batchSize = n }
}

// WithLogger sets a structured logger for build progress and warnings.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// Builder orchestrates a rebuild. It is the only writer to either store;
// callers must not serve reads from the same stores while Rebuild runs.
type Builder struct {
	parents   docdex.ParentStore
	children  docdex.ChildIndex
	embedder  docdex.Embedder
	strategy  split.Strategy
	fallback  split.Strategy
	loader    Loader
	batchSize int
	logger    *slog.Logger
}

// NewBuilder creates a Builder writing through the given stores.
func NewBuilder(parents docdex.ParentStore, children docdex.ChildIndex, embedder docdex.Embedder, strategy split.Strategy, opts ...Option) (*Builder, error) {
	if strategy == nil {
		return nil, fmt.Errorf("ingest: strategy must not be nil")
	}
	b := &Builder{
		parents:   parents,
		children:  children,
		embedder:  embedder,
		strategy:  strategy,
		loader:    FileLoader{},
		batchSize: 32,
		logger:    nopLogger,
	}
	for _, o := range opts {
		o(b)
	}
	if b.batchSize <= 0 {
		return nil, fmt.Errorf("ingest: batch size must be positive, got %d", b.batchSize)
	}
	return b, nil
}

// Rebuild wipes both stores and repopulates them from sources.
//
// Per-document problems (unreadable source, exhausted embedding retries,
// empty chunks) are recorded in the report and the build continues.
// Storage write failures are fatal: a partially built index is unsafe to
// serve, so the error propagates and the caller must treat the index as
// unusable until a rebuild succeeds.
func (b *Builder) Rebuild(ctx context.Context, sources []Source) (Report, error) {
	var report Report

	b.logger.Info("rebuild started",
		"sources", len(sources),
		"strategy", b.strategy.Name(),
		"embedding_model", b.embedder.Model())
	b.logger.Info("strategy configured", "detail", b.strategy.Describe())

	if err := b.parents.Wipe(ctx); err != nil {
		return report, fmt.Errorf("wipe parent store: %w", err)
	}
	if err := b.children.Wipe(ctx); err != nil {
		return report, fmt.Errorf("wipe child index: %w", err)
	}

	for _, src := range sources {
		docs, err := b.loader.Load(ctx, src)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			b.logger.Warn("skipping unreadable source", "path", src.Path, "error", err)
			report.warnf("skipped source %s: %v", src.Path, err)
			report.DocsSkipped++
			continue
		}
		for _, doc := range docs {
			if err := b.indexDocument(ctx, doc, &report); err != nil {
				return report, err
			}
		}
	}

	if mk, ok := b.children.(docdex.ManifestKeeper); ok {
		m := docdex.Manifest{
			EmbeddingModel:   b.embedder.Model(),
			Dimensions:       b.embedder.Dimensions(),
			ChunkingStrategy: b.strategy.Name(),
			BuiltAt:          docdex.NowUnix(),
		}
		if err := mk.SetManifest(ctx, m); err != nil {
			return report, fmt.Errorf("store manifest: %w", err)
		}
	}

	b.logger.Info("rebuild completed",
		"parents", report.ParentsWritten,
		"children", report.ChildrenWritten,
		"docs_skipped", report.DocsSkipped,
		"warnings", len(report.Warnings))
	return report, nil
}

// indexDocument writes one document's parents and children. Returned
// errors are fatal for the whole build (storage or cancellation);
// everything recoverable is absorbed into the report.
func (b *Builder) indexDocument(ctx context.Context, doc docdex.Document, report *Report) error {
	pieces, strategyUsed, err := b.splitParents(doc)
	if err != nil {
		b.logger.Warn("skipping unsplittable document",
			"source", doc.SourceName, "page", doc.Page, "error", err)
		report.warnf("skipped %s page %d: %v", doc.SourceName, doc.Page, err)
		report.DocsSkipped++
		return nil
	}
	if strategyUsed != b.strategy {
		b.logger.Warn("structure-aware split unavailable, fell back to generic strategy",
			"source", doc.SourceName, "page", doc.Page, "fallback", strategyUsed.Name())
		report.FallbackDocs++
	}

	docReport := DocReport{
		SourceName: doc.SourceName,
		Page:       doc.Page,
		Strategy:   strategyUsed.Name(),
	}

	// Parents first: children reference their ids.
	type pendingChild struct {
		text   string
		parent docdex.ParentChunk
	}
	var pending []pendingChild

	for _, piece := range pieces {
		if piece.Text == "" {
			report.EmptyChunksSkipped++
			continue
		}
		parent := docdex.ParentChunk{
			ID:      docdex.NewID(),
			Content: piece.Text,
			Metadata: docdex.ChunkMeta{
				SourceName: doc.SourceName,
				Page:       doc.Page,
				Category:   piece.Category,
			},
		}
		if err := b.parents.Put(ctx, parent); err != nil {
			return fmt.Errorf("write parent: %w", err)
		}
		report.ParentsWritten++
		docReport.Parents++

		childTexts := strategyUsed.SplitChildren(parent.Content)
		wrote := 0
		for _, t := range childTexts {
			if t == "" {
				report.EmptyChunksSkipped++
				continue
			}
			pending = append(pending, pendingChild{text: t, parent: parent})
			wrote++
		}
		if wrote == 0 {
			b.logger.Warn("parent chunk has no extractable child content",
				"parent_id", parent.ID, "source", doc.SourceName, "page", doc.Page)
			report.warnf("parent %s (%s p.%d) has no child chunks", parent.ID, doc.SourceName, doc.Page)
			report.ChildlessParents++
		}
	}

	if len(pending) > 0 {
		texts := make([]string, len(pending))
		for i, pc := range pending {
			texts[i] = pc.text
		}
		embeddings, err := b.embedBatches(ctx, texts)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Scoped to this document: its parents stay in place (and will
			// surface as childless), the rest of the corpus still builds.
			b.logger.Error("embedding failed for document after retries",
				"source", doc.SourceName, "page", doc.Page, "error", err)
			report.warnf("embedding failed for %s page %d: %v", doc.SourceName, doc.Page, err)
			report.DocsSkipped++
			return nil
		}

		children := make([]docdex.ChildChunk, len(pending))
		for i, pc := range pending {
			children[i] = docdex.ChildChunk{
				Text:      pc.text,
				ParentID:  pc.parent.ID,
				Metadata:  docdex.ChunkMeta{SourceName: doc.SourceName, Page: doc.Page, Category: pc.parent.Metadata.Category},
				Embedding: embeddings[i],
			}
		}
		if _, err := b.children.AddBatch(ctx, children); err != nil {
			return fmt.Errorf("write children: %w", err)
		}
		report.ChildrenWritten += len(children)
		docReport.Children = len(children)
	}

	report.DocsProcessed++
	report.Documents = append(report.Documents, docReport)
	return nil
}

// splitParents runs the configured strategy, falling back to the generic
// one when the document exposes no structure. The strategy that actually
// ran is returned so the report can record it per document.
func (b *Builder) splitParents(doc docdex.Document) ([]split.Piece, split.Strategy, error) {
	pieces, err := b.strategy.SplitParents(doc)
	if err == nil {
		return pieces, b.strategy, nil
	}
	if !errors.Is(err, split.ErrNoStructure) || b.fallback == nil {
		return nil, b.strategy, err
	}
	pieces, err = b.fallback.SplitParents(doc)
	if err != nil {
		return nil, b.fallback, err
	}
	return pieces, b.fallback, nil
}

// embedBatches embeds texts in bounded batches. On provider failure the
// batch size is halved and the same window retried; only a failure at
// batch size 1 escalates to the caller.
func (b *Builder) embedBatches(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	batch := b.batchSize
	i := 0
	for i < len(texts) {
		end := min(i+batch, len(texts))
		embeddings, err := b.embedder.Embed(ctx, texts[i:end])
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if batch > 1 {
				batch /= 2
				b.logger.Warn("embedding batch failed, retrying with smaller batch",
					"batch_size", batch, "error", err)
				continue
			}
			return nil, fmt.Errorf("embed batch %d-%d: %w", i, end, err)
		}
		if len(embeddings) != end-i {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(embeddings), end-i)
		}
		out = append(out, embeddings...)
		i = end
	}
	return out, nil
}
