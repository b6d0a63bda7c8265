package ingest

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/wicaksana/docdex"
)

// Source names one corpus input: a path on disk plus the friendly name
// stamped into chunk provenance metadata. An empty Name defaults to the
// file's base name.
type Source struct {
	Path string
	Name string
}

// Loader turns a source into an ordered sequence of documents. A PDF
// yields one document per page; flat text formats yield a single document.
// Load fails with a read error when the source is unreadable; the builder
// treats that as skip-and-warn, not fatal.
type Loader interface {
	Load(ctx context.Context, src Source) ([]docdex.Document, error)
}

// FileLoader reads local files, dispatching on the file extension.
// PDF content goes through ledongthuc/pdf page by page; everything else
// (txt, md, and unknown extensions) is read as one plain-text document.
type FileLoader struct{}

var _ Loader = (*FileLoader)(nil)

// Load reads src.Path and returns its documents.
func (FileLoader) Load(ctx context.Context, src Source) ([]docdex.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content, err := os.ReadFile(src.Path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", src.Path, err)
	}

	name := src.Name
	if name == "" {
		name = filepath.Base(src.Path)
	}

	if strings.EqualFold(filepath.Ext(src.Path), ".pdf") {
		return loadPDF(content, src.Path, name)
	}

	text := strings.TrimSpace(string(content))
	if text == "" {
		return nil, nil
	}
	return []docdex.Document{{
		Text:       text,
		SourcePath: src.Path,
		SourceName: name,
	}}, nil
}

// loadPDF extracts one document per non-empty page. Pages that fail text
// extraction are skipped; a PDF that cannot be opened at all is a load
// error.
func loadPDF(content []byte, path, name string) ([]docdex.Document, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("load %s: empty PDF", path)
	}
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}

	var docs []docdex.Document
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		docs = append(docs, docdex.Document{
			Text:       pageText,
			SourcePath: path,
			SourceName: name,
			Page:       i,
		})
	}
	return docs, nil
}
