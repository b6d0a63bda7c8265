package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/wicaksana/docdex"
	"github.com/wicaksana/docdex/embed/gemini"
	"github.com/wicaksana/docdex/internal/config"
	"github.com/wicaksana/docdex/observer"
	"github.com/wicaksana/docdex/split"
	"github.com/wicaksana/docdex/store/fskv"
	"github.com/wicaksana/docdex/store/sqlite"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "docdex",
	Short: "Two-tier document index: small chunks for search, large chunks for context",
	Long: `docdex indexes documents twice over: large parent chunks preserve
surrounding context, small child chunks are embedded for precise similarity
search. Queries match against children and return their parents.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default docdex.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// app bundles everything a subcommand needs. Close releases the stores.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	parents  docdex.ParentStore
	children docdex.ChildIndex
	inst     *observer.Instruments
	shutdown func(context.Context) error
}

func (a *app) Close(ctx context.Context) {
	_ = a.parents.Close()
	_ = a.children.Close()
	if a.shutdown != nil {
		_ = a.shutdown(ctx)
	}
}

// openApp loads config and opens both stores. When the observer is enabled
// the child index is wrapped with instrumentation.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := newLogger()

	parents, err := fskv.New(cfg.Storage.DocstorePath, fskv.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open docstore: %w", err)
	}

	index := sqlite.New(cfg.Storage.IndexPath)
	if err := index.Init(ctx); err != nil {
		_ = parents.Close()
		_ = index.Close()
		return nil, fmt.Errorf("init index: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, parents: parents, children: index}

	if cfg.Observer.Enabled {
		inst, shutdown, err := observer.Init(ctx)
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("init observer: %w", err)
		}
		a.children = observer.WrapIndex(index, inst)
		a.shutdown = shutdown
		a.inst = inst
	}
	return a, nil
}

// newEmbedder builds the configured embedding provider with retry, and
// observer instrumentation when enabled.
func (a *app) newEmbedder() (docdex.Embedder, error) {
	if a.cfg.Embedding.Provider != "gemini" {
		return nil, fmt.Errorf("unknown embedding provider %q", a.cfg.Embedding.Provider)
	}
	if a.cfg.Embedding.APIKey == "" {
		return nil, fmt.Errorf("embedding api key not set (DOCDEX_EMBEDDING_API_KEY)")
	}
	var e docdex.Embedder = gemini.New(a.cfg.Embedding.APIKey, a.cfg.Embedding.Model, a.cfg.Embedding.Dimensions)
	if a.inst != nil {
		e = observer.WrapEmbedder(e, a.inst)
	}
	return docdex.WithEmbeddingRetry(e, docdex.RetryLogger(a.logger)), nil
}

// newStrategy builds the primary chunking strategy and its fallback from
// config. The fallback may be nil.
func (a *app) newStrategy() (split.Strategy, split.Strategy, error) {
	cfg := split.Config{
		ParentSize:   a.cfg.Chunking.ParentSize,
		ChildSize:    a.cfg.Chunking.ChildSize,
		Overlap:      a.cfg.Chunking.Overlap,
		CombineUnder: a.cfg.Chunking.CombineUnder,
	}
	primary, err := split.New(a.cfg.Chunking.Strategy, cfg)
	if err != nil {
		return nil, nil, err
	}
	var fallback split.Strategy
	if name := a.cfg.Chunking.Fallback; name != "" && name != a.cfg.Chunking.Strategy {
		fallback, err = split.New(name, cfg)
		if err != nil {
			return nil, nil, err
		}
	}
	return primary, fallback, nil
}
