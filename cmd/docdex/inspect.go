package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/wicaksana/docdex"
	"github.com/wicaksana/docdex/export"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print index statistics",
	Args:  cobra.NoArgs,
	RunE:  runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	if mk, ok := a.children.(docdex.ManifestKeeper); ok {
		m, err := mk.Manifest(ctx)
		if err == nil {
			cmd.Printf("Model:    %s (%d dims)\n", m.EmbeddingModel, m.Dimensions)
			cmd.Printf("Strategy: %s\n", m.ChunkingStrategy)
			cmd.Printf("Built:    %s\n", time.Unix(m.BuiltAt, 0).UTC().Format(time.RFC3339))
		}
	}

	stats, err := export.Inspect(ctx, a.parents, a.children)
	if err != nil {
		return fmt.Errorf("inspect: %w", err)
	}

	cmd.Printf("Parents:  %d\n", stats.Parents)
	cmd.Printf("Children: %d\n", stats.Children)
	if stats.Orphans > 0 {
		cmd.Printf("Orphans:  %d\n", stats.Orphans)
	}
	if stats.ChildlessParents > 0 {
		cmd.Printf("Childless parents: %d\n", stats.ChildlessParents)
	}

	if len(stats.ChildrenBySource) > 0 {
		names := make([]string, 0, len(stats.ChildrenBySource))
		for name := range stats.ChildrenBySource {
			names = append(names, name)
		}
		sort.Strings(names)
		cmd.Println("Children by source:")
		for _, name := range names {
			cmd.Printf("  %-30s %d\n", name, stats.ChildrenBySource[name])
		}
	}
	return nil
}
