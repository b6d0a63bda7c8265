package docdex

import (
	"context"
	"errors"
	"testing"
	"time"
)

// queueEmbedder returns pre-configured results in call order.
type queueEmbedder struct {
	calls   int
	results []queueResult
}

type queueResult struct {
	vecs [][]float32
	err  error
}

func (q *queueEmbedder) Name() string    { return "queue" }
func (q *queueEmbedder) Model() string   { return "queue-model" }
func (q *queueEmbedder) Dimensions() int { return 2 }

func (q *queueEmbedder) Embed(_ context.Context, _ []string) ([][]float32, error) {
	i := q.calls
	q.calls++
	if i < len(q.results) {
		return q.results[i].vecs, q.results[i].err
	}
	return nil, nil
}

var _ Embedder = (*queueEmbedder)(nil)

func TestRetrySucceedsFirstAttempt(t *testing.T) {
	stub := &queueEmbedder{results: []queueResult{
		{vecs: [][]float32{{1, 0}}},
	}}
	e := WithEmbeddingRetry(stub, RetryBaseDelay(0))

	vecs, err := e.Embed(context.Background(), []string{"a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 1 {
		t.Errorf("got %d vectors, want 1", len(vecs))
	}
	if stub.calls != 1 {
		t.Errorf("got %d calls, want 1", stub.calls)
	}
}

func TestRetryRetriesOn503(t *testing.T) {
	stub := &queueEmbedder{results: []queueResult{
		{err: &ErrHTTP{Status: 503, Body: "unavailable"}},
		{vecs: [][]float32{{1, 0}}},
	}}
	e := WithEmbeddingRetry(stub, RetryBaseDelay(0))

	if _, err := e.Embed(context.Background(), []string{"a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stub.calls != 2 {
		t.Errorf("got %d calls, want 2", stub.calls)
	}
}

func TestRetryRetriesOn429(t *testing.T) {
	stub := &queueEmbedder{results: []queueResult{
		{err: &ErrHTTP{Status: 429, Body: "rate limited"}},
		{vecs: [][]float32{{1, 0}}},
	}}
	e := WithEmbeddingRetry(stub, RetryBaseDelay(0))

	if _, err := e.Embed(context.Background(), []string{"a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stub.calls != 2 {
		t.Errorf("got %d calls, want 2", stub.calls)
	}
}

func TestRetryDoesNotRetryNonTransient(t *testing.T) {
	stub := &queueEmbedder{results: []queueResult{
		{err: &ErrHTTP{Status: 500, Body: "internal error"}},
	}}
	e := WithEmbeddingRetry(stub, RetryBaseDelay(0))

	_, err := e.Embed(context.Background(), []string{"a"})
	if err == nil {
		t.Fatal("expected error")
	}
	if stub.calls != 1 {
		t.Errorf("got %d calls, want 1", stub.calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	fail := &ErrHTTP{Status: 429, Body: "rate limited"}
	stub := &queueEmbedder{results: []queueResult{
		{err: fail}, {err: fail}, {err: fail}, {err: fail},
	}}
	e := WithEmbeddingRetry(stub, RetryBaseDelay(0), RetryMaxAttempts(3))

	_, err := e.Embed(context.Background(), []string{"a"})
	var httpErr *ErrHTTP
	if !errors.As(err, &httpErr) || httpErr.Status != 429 {
		t.Fatalf("expected final 429, got %v", err)
	}
	if stub.calls != 3 {
		t.Errorf("got %d calls, want 3", stub.calls)
	}
}

func TestRetryHonorsRetryAfterFloor(t *testing.T) {
	stub := &queueEmbedder{results: []queueResult{
		{err: &ErrHTTP{Status: 429, RetryAfter: 30 * time.Millisecond}},
		{vecs: [][]float32{{1, 0}}},
	}}
	e := WithEmbeddingRetry(stub, RetryBaseDelay(0))

	start := time.Now()
	if _, err := e.Embed(context.Background(), []string{"a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("retried after %v, want at least 30ms", elapsed)
	}
}

func TestRetryCanceledContext(t *testing.T) {
	stub := &queueEmbedder{results: []queueResult{
		{err: &ErrHTTP{Status: 503}},
		{vecs: [][]float32{{1, 0}}},
	}}
	e := WithEmbeddingRetry(stub, RetryBaseDelay(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Embed(ctx, []string{"a"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{&ErrHTTP{Status: 429}, true},
		{&ErrHTTP{Status: 503}, true},
		{&ErrHTTP{Status: 500}, false},
		{&ErrHTTP{Status: 400}, false},
		{errors.New("plain"), false},
		{nil, false},
	}
	for _, c := range cases {
		if got := IsTransient(c.err); got != c.want {
			t.Errorf("IsTransient(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}
