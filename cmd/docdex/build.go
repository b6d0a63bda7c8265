package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wicaksana/docdex/ingest"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Rebuild the index from the configured sources",
	Long: `Wipes the document store and the vector index, then re-ingests every
configured source. There is no incremental update: a build replaces the
whole index or fails leaving it empty.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	if len(a.cfg.Sources) == 0 {
		return fmt.Errorf("no sources configured")
	}

	embedder, err := a.newEmbedder()
	if err != nil {
		return err
	}
	primary, fallback, err := a.newStrategy()
	if err != nil {
		return err
	}

	builder, err := ingest.NewBuilder(a.parents, a.children, embedder, primary,
		ingest.WithFallback(fallback),
		ingest.WithBatchSize(a.cfg.Embedding.BatchSize),
		ingest.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}

	sources := make([]ingest.Source, 0, len(a.cfg.Sources))
	for _, s := range a.cfg.Sources {
		sources = append(sources, ingest.Source{Path: s.Path, Name: s.Name})
	}

	report, err := builder.Rebuild(ctx, sources)
	if err != nil {
		return fmt.Errorf("rebuild: %w", err)
	}

	cmd.Printf("Indexed %d parents, %d children from %d documents\n",
		report.ParentsWritten, report.ChildrenWritten, report.DocsProcessed)
	if report.DocsSkipped > 0 {
		cmd.Printf("Skipped %d documents\n", report.DocsSkipped)
	}
	if report.FallbackDocs > 0 {
		cmd.Printf("Fallback strategy used for %d documents\n", report.FallbackDocs)
	}
	for _, w := range report.Warnings {
		cmd.Println("warning:", w)
	}
	return nil
}
