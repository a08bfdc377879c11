package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/lore-assistant/internal/core/domain"
)

var flagSearchK int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Show the passages closest to a query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&flagSearchK, "top-k", "k", 0, "Number of results (default RAG_TOP_K)")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, _, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	topK := flagSearchK
	if topK <= 0 {
		topK = app.Config.RAGTopK
	}
	query := strings.Join(args, " ")
	results, err := app.SearchUC.Search(ctx, query, topK)
	if err != nil {
		return err
	}
	printSearchResults(cmd.OutOrStdout(), query, results)
	return nil
}

func printSearchResults(w io.Writer, query string, results []domain.SearchResult) {
	fmt.Fprintf(w, "Query: %s\n", query)
	for i, res := range results {
		title := res.Payload.Metadata.Title
		if title == "" {
			title = "No Title"
		}
		fmt.Fprintf(w, "\nResult %d:\nTitle: %s\nScore: %.4f\nContent: %s\n", i+1, title, res.Score, res.Payload.Content)
	}
}
