// Package fskv implements docdex.ParentStore as one JSON file per parent
// chunk under a root directory. The layout is deliberately dumb: the file
// name is the parent id, the file body is the full record. That keeps the
// store inspectable with ls and cat, makes Put durability a matter of
// rename(2), and lets a rebuild wipe state by removing one directory.
package fskv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/wicaksana/docdex"
)

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets a structured logger. When set, the store emits debug
// logs with timing and counts for every operation.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// Store is a directory-backed parent chunk store.
//
// Entries are write-once: Put refuses to overwrite an existing id. One
// writer and any number of concurrent readers are safe because entries are
// immutable once the rename that creates them completes.
type Store struct {
	root   string
	logger *slog.Logger
}

var _ docdex.ParentStore = (*Store)(nil)

var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string, opts ...StoreOption) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("fskv: root directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("fskv: create root: %w", err)
	}
	s := &Store{root: dir, logger: nopLogger}
	for _, o := range opts {
		o(s)
	}
	s.logger.Debug("fskv: store opened", "root", dir)
	return s, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.root, id+".json")
}

// validID rejects ids that would escape the root directory or collide with
// the temp-file suffix.
func validID(id string) bool {
	return id != "" &&
		!strings.ContainsAny(id, `/\`) &&
		id != "." && id != ".." &&
		!strings.HasSuffix(id, ".tmp")
}

// Put writes the parent record. The record is written to a temp file and
// renamed into place, so readers never observe a partial entry and a
// completed Put survives process death.
func (s *Store) Put(ctx context.Context, parent docdex.ParentChunk) error {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validID(parent.ID) {
		return fmt.Errorf("fskv: invalid id %q", parent.ID)
	}

	dst := s.path(parent.ID)
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("fskv: id %q already exists (entries are write-once)", parent.ID)
	}

	data, err := json.Marshal(parent)
	if err != nil {
		return fmt.Errorf("fskv: marshal parent %s: %w", parent.ID, err)
	}

	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("fskv: write parent %s: %w", parent.ID, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("fskv: commit parent %s: %w", parent.ID, err)
	}
	s.logger.Debug("fskv: put ok", "id", parent.ID, "bytes", len(data), "duration", time.Since(start))
	return nil
}

// Get returns the parent for id, or docdex.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (docdex.ParentChunk, error) {
	if err := ctx.Err(); err != nil {
		return docdex.ParentChunk{}, err
	}
	if !validID(id) {
		return docdex.ParentChunk{}, fmt.Errorf("fskv: invalid id %q", id)
	}
	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return docdex.ParentChunk{}, fmt.Errorf("fskv: parent %s: %w", id, docdex.ErrNotFound)
	}
	if err != nil {
		return docdex.ParentChunk{}, fmt.Errorf("fskv: read parent %s: %w", id, err)
	}
	var parent docdex.ParentChunk
	if err := json.Unmarshal(data, &parent); err != nil {
		return docdex.ParentChunk{}, fmt.Errorf("fskv: decode parent %s: %w", id, err)
	}
	return parent, nil
}

// GetMany returns one entry per id, aligned with ids; entries whose id does
// not resolve are nil. Read errors other than absence abort the call.
func (s *Store) GetMany(ctx context.Context, ids []string) ([]*docdex.ParentChunk, error) {
	start := time.Now()
	out := make([]*docdex.ParentChunk, len(ids))
	missing := 0
	for i, id := range ids {
		parent, err := s.Get(ctx, id)
		if errors.Is(err, docdex.ErrNotFound) {
			missing++
			continue
		}
		if err != nil {
			return nil, err
		}
		p := parent
		out[i] = &p
	}
	s.logger.Debug("fskv: get many ok", "requested", len(ids), "missing", missing, "duration", time.Since(start))
	return out, nil
}

// ListIDs enumerates every stored parent id, sorted for determinism.
// Each call re-reads the directory, so the enumeration is restartable.
func (s *Store) ListIDs(ctx context.Context) ([]string, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("fskv: list: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	s.logger.Debug("fskv: list ids ok", "count", len(ids), "duration", time.Since(start))
	return ids, nil
}

// Count returns the number of stored parents.
func (s *Store) Count(ctx context.Context) (int, error) {
	ids, err := s.ListIDs(ctx)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Wipe removes every entry. Used only at the start of a rebuild.
func (s *Store) Wipe(ctx context.Context) error {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.RemoveAll(s.root); err != nil {
		return fmt.Errorf("fskv: wipe: %w", err)
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("fskv: recreate root: %w", err)
	}
	s.logger.Info("fskv: wiped", "root", s.root, "duration", time.Since(start))
	return nil
}

// Close is a no-op; the store holds no open handles between operations.
func (s *Store) Close() error { return nil }
