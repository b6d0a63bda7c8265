package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wicaksana/docdex/export"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the index to a portable JSON snapshot",
	Long: `Writes every parent and child chunk, embeddings included, to a single
JSON file that external consumers can load without this tool.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output path (default from config)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	out := a.cfg.Export.OutputPath
	if exportOutput != "" {
		out = exportOutput
	}

	exporter := export.NewExporter(a.parents, a.children, export.WithLogger(a.logger))
	snap, stats, err := exporter.Export(ctx)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := export.WriteFile(snap, out); err != nil {
		return err
	}

	cmd.Printf("Wrote %s: %d parents, %d children\n", out, stats.Parents, stats.Children)
	if stats.Orphans > 0 {
		cmd.Printf("warning: %d orphaned children (parent missing)\n", stats.Orphans)
	}
	return nil
}
