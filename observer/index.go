package observer

import (
	"context"
	"time"

	"github.com/wicaksana/docdex"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ObservedIndex wraps a docdex.ChildIndex with OTEL instrumentation for
// writes and searches. Pass-through methods are not instrumented.
type ObservedIndex struct {
	inner docdex.ChildIndex
	inst  *Instruments
}

// WrapIndex returns an instrumented child index.
func WrapIndex(inner docdex.ChildIndex, inst *Instruments) *ObservedIndex {
	return &ObservedIndex{inner: inner, inst: inst}
}

func (o *ObservedIndex) Add(ctx context.Context, c docdex.ChildChunk) (string, error) {
	id, err := o.inner.Add(ctx, c)
	if err == nil {
		o.inst.ChunksWritten.Add(ctx, 1)
	}
	return id, err
}

func (o *ObservedIndex) AddBatch(ctx context.Context, chunks []docdex.ChildChunk) ([]string, error) {
	ctx, span := o.inst.Tracer.Start(ctx, "index.add_batch", trace.WithAttributes(
		AttrChunkCount.Int(len(chunks)),
	))
	defer span.End()

	ids, err := o.inner.AddBatch(ctx, chunks)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	o.inst.ChunksWritten.Add(ctx, int64(len(ids)))
	return ids, nil
}

func (o *ObservedIndex) Search(ctx context.Context, embedding []float32, topK int) ([]docdex.ScoredChild, error) {
	ctx, span := o.inst.Tracer.Start(ctx, "index.search", trace.WithAttributes(
		AttrSearchTopK.Int(topK),
	))
	defer span.End()
	start := time.Now()

	results, err := o.inner.Search(ctx, embedding, topK)

	durationMs := float64(time.Since(start).Milliseconds())
	o.inst.SearchRequests.Add(ctx, 1)
	o.inst.SearchDuration.Record(ctx, durationMs, metric.WithAttributes())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(AttrSearchResults.Int(len(results)))
	o.inst.SearchResults.Record(ctx, int64(len(results)))
	return results, nil
}

func (o *ObservedIndex) All(ctx context.Context) ([]docdex.ChildChunk, error) {
	return o.inner.All(ctx)
}

func (o *ObservedIndex) Count(ctx context.Context) (int, error) { return o.inner.Count(ctx) }
func (o *ObservedIndex) Wipe(ctx context.Context) error         { return o.inner.Wipe(ctx) }
func (o *ObservedIndex) Close() error                           { return o.inner.Close() }

// SetManifest forwards to the inner index when it records manifests.
func (o *ObservedIndex) SetManifest(ctx context.Context, m docdex.Manifest) error {
	if mk, ok := o.inner.(docdex.ManifestKeeper); ok {
		return mk.SetManifest(ctx, m)
	}
	return nil
}

// Manifest forwards to the inner index when it records manifests.
func (o *ObservedIndex) Manifest(ctx context.Context) (docdex.Manifest, error) {
	if mk, ok := o.inner.(docdex.ManifestKeeper); ok {
		return mk.Manifest(ctx)
	}
	return docdex.Manifest{}, docdex.ErrNotFound
}

var _ docdex.ChildIndex = (*ObservedIndex)(nil)
var _ docdex.ManifestKeeper = (*ObservedIndex)(nil)
