package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wicaksana/docdex"
)

var (
	queryTopK int
	queryJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Retrieve context for a question",
	Long: `Embeds the question, searches the child index, and prints the parent
chunks the best-matching children belong to.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "child matches to consider (0 = config default)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	embedder, err := a.newEmbedder()
	if err != nil {
		return err
	}

	topK := a.cfg.Query.TopK
	if queryTopK > 0 {
		topK = queryTopK
	}
	retriever, err := docdex.NewRetriever(ctx, a.parents, a.children, embedder,
		docdex.WithTopK(topK),
		docdex.WithMinScore(float32(a.cfg.Query.MinScore)),
		docdex.WithRetrieverLogger(a.logger),
	)
	if err != nil {
		return err
	}

	results, err := retriever.Query(ctx, args[0])
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}

	if queryJSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(data))
		return nil
	}

	if len(results) == 0 {
		cmd.Println("No results.")
		return nil
	}
	for i, r := range results {
		cmd.Printf("[%d] %s (%.3f)\n", i+1, r.Metadata.SourceName, r.Score)
		cmd.Println(r.Content)
		cmd.Println()
	}
	return nil
}
