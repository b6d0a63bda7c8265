// Package gemini implements docdex.Embedder against the Google Generative
// Language embedding API.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wicaksana/docdex"
)

var baseURL = "https://generativelanguage.googleapis.com/v1beta"

// Embedding calls Gemini embedding models (text-embedding-004 and newer).
// A single Embed call maps to one batchEmbedContents request, so the
// caller's batch size bounds the request size directly.
type Embedding struct {
	apiKey     string
	model      string
	dims       int
	httpClient *http.Client
}

// Option configures an Embedding provider.
type Option func(*Embedding)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Embedding) { e.httpClient = c }
}

// New creates a Gemini embedding provider. dims is the requested output
// dimensionality; the API truncates to it server-side.
func New(apiKey, model string, dims int, opts ...Option) *Embedding {
	e := &Embedding{
		apiKey:     apiKey,
		model:      model,
		dims:       dims,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Name returns "gemini".
func (e *Embedding) Name() string { return "gemini" }

// Model returns the configured model identifier.
func (e *Embedding) Model() string { return e.model }

// Dimensions returns the configured embedding dimensionality.
func (e *Embedding) Dimensions() int { return e.dims }

type embedValues struct {
	Values []float64 `json:"values"`
}

type batchEmbedResponse struct {
	Embeddings []embedValues `json:"embeddings"`
}

// Embed embeds the texts in one API call and returns one vector per input,
// in input order.
func (e *Embedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	reqs := make([]map[string]any, 0, len(texts))
	for _, text := range texts {
		reqs = append(reqs, map[string]any{
			"model": "models/" + e.model,
			"content": map[string]any{
				"parts": []map[string]any{
					{"text": text},
				},
			},
			"outputDimensionality": e.dims,
		})
	}
	payload, err := json.Marshal(map[string]any{"requests": reqs})
	if err != nil {
		return nil, e.wrapErr("marshal embed body: " + err.Error())
	}

	url := fmt.Sprintf("%s/models/%s:batchEmbedContents?key=%s", baseURL, e.model, e.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(payload)))
	if err != nil {
		return nil, e.wrapErr("create embed request: " + err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, e.wrapErr("embed request failed: " + err.Error())
	}
	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, e.wrapErr("read embed response: " + err.Error())
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, httpErr(resp, string(respBody))
	}

	var parsed batchEmbedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, e.wrapErr("parse embed response: " + err.Error())
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, e.wrapErr(fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(parsed.Embeddings)))
	}

	vectors := make([][]float32, len(parsed.Embeddings))
	for i, emb := range parsed.Embeddings {
		vec := make([]float32, len(emb.Values))
		for j, v := range emb.Values {
			vec[j] = float32(v)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (e *Embedding) wrapErr(msg string) error {
	return &docdex.ErrEmbed{Provider: "gemini", Message: msg}
}

// httpErr creates an ErrHTTP from an HTTP response, extracting the retry
// delay from the Retry-After header or from the google.rpc.RetryInfo detail
// in the JSON error body.
func httpErr(resp *http.Response, body string) *docdex.ErrHTTP {
	ra := docdex.ParseRetryAfter(resp.Header.Get("Retry-After"))
	if ra == 0 {
		ra = parseRetryInfo(body)
	}
	return &docdex.ErrHTTP{
		Status:     resp.StatusCode,
		Body:       body,
		RetryAfter: ra,
	}
}

// parseRetryInfo extracts the retryDelay from a Gemini error body containing
// a google.rpc.RetryInfo detail. Returns 0 if not found or unparseable.
func parseRetryInfo(body string) time.Duration {
	var envelope struct {
		Error struct {
			Details []json.RawMessage `json:"details"`
		} `json:"error"`
	}
	if json.Unmarshal([]byte(body), &envelope) != nil {
		return 0
	}
	for _, raw := range envelope.Error.Details {
		var detail struct {
			Type       string `json:"@type"`
			RetryDelay string `json:"retryDelay"`
		}
		if json.Unmarshal(raw, &detail) != nil {
			continue
		}
		if detail.Type == "type.googleapis.com/google.rpc.RetryInfo" && detail.RetryDelay != "" {
			if d, err := time.ParseDuration(detail.RetryDelay); err == nil {
				return d
			}
		}
	}
	return 0
}

var _ docdex.Embedder = (*Embedding)(nil)
