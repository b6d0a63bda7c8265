// Package config loads docdex CLI configuration from TOML with env overrides.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Sources   []SourceConfig  `toml:"sources"`
	Chunking  ChunkingConfig  `toml:"chunking"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Storage   StorageConfig   `toml:"storage"`
	Query     QueryConfig     `toml:"query"`
	Export    ExportConfig    `toml:"export"`
	Observer  ObserverConfig  `toml:"observer"`
}

// SourceConfig names one corpus input. Name defaults to the file's base
// name when empty.
type SourceConfig struct {
	Path string `toml:"path"`
	Name string `toml:"name"`
}

type ChunkingConfig struct {
	Strategy     string `toml:"strategy"`
	Fallback     string `toml:"fallback"`
	ParentSize   int    `toml:"parent_size"`
	ChildSize    int    `toml:"child_size"`
	Overlap      int    `toml:"overlap"`
	CombineUnder int    `toml:"combine_under"`
}

type EmbeddingConfig struct {
	Provider   string `toml:"provider"`
	Model      string `toml:"model"`
	Dimensions int    `toml:"dimensions"`
	APIKey     string `toml:"api_key"`
	BatchSize  int    `toml:"batch_size"`
}

type StorageConfig struct {
	IndexPath    string `toml:"index_path"`
	DocstorePath string `toml:"docstore_path"`
}

type QueryConfig struct {
	TopK     int     `toml:"top_k"`
	MinScore float64 `toml:"min_score"`
}

type ExportConfig struct {
	OutputPath string `toml:"output_path"`
}

type ObserverConfig struct {
	Enabled bool `toml:"enabled"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Chunking: ChunkingConfig{
			Strategy:     "heading",
			Fallback:     "recursive",
			ParentSize:   2048,
			ChildSize:    512,
			Overlap:      0,
			CombineUnder: 200,
		},
		Embedding: EmbeddingConfig{
			Provider:   "gemini",
			Model:      "text-embedding-004",
			Dimensions: 768,
			BatchSize:  32,
		},
		Storage: StorageConfig{
			IndexPath:    "docdex.db",
			DocstorePath: "docstore",
		},
		Query:  QueryConfig{TopK: 8},
		Export: ExportConfig{OutputPath: "index-export.json"},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins).
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = "docdex.toml"
	}

	if data, err := os.ReadFile(path); err == nil {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	// Env overrides
	if v := os.Getenv("DOCDEX_EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("DOCDEX_INDEX_PATH"); v != "" {
		cfg.Storage.IndexPath = v
	}
	if v := os.Getenv("DOCDEX_DOCSTORE_PATH"); v != "" {
		cfg.Storage.DocstorePath = v
	}
	if os.Getenv("DOCDEX_OBSERVER_ENABLED") == "true" || os.Getenv("DOCDEX_OBSERVER_ENABLED") == "1" {
		cfg.Observer.Enabled = true
	}

	return cfg, nil
}
