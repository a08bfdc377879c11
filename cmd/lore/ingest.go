package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	flagIngestDrop        bool
	flagIngestLockTimeout time.Duration
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Index wiki_pages_N.json batches from DATA_PATH",
	Long: `Reads wiki_pages_0.json, wiki_pages_1.json, ... from DATA_PATH until the
first missing file, and indexes every valid page. Re-ingesting without --drop
stores duplicate points.`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&flagIngestDrop, "drop", false, "Drop the collection before indexing")
	ingestCmd.Flags().DurationVar(&flagIngestLockTimeout, "lock-timeout", 5*time.Second, "How long to wait for a running ingest to finish")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	app, logger, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	corpus, err := app.Corpus()
	if err != nil {
		return err
	}
	unlock, err := corpus.Lock(flagIngestLockTimeout)
	if err != nil {
		return err
	}
	defer unlock()

	if flagIngestDrop {
		if err := app.ResetCollection(ctx); err != nil {
			return fmt.Errorf("drop collection: %w", err)
		}
		logger.Info("collection_dropped", "collection", app.Config.QdrantCollection)
	}

	report, err := app.IngestUC.IngestCorpus(ctx, corpus)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Batches: %d\nPages indexed: %d\nPages skipped: %d\nChunks indexed: %d\nChunks failed: %d\n",
		report.Batches, report.PagesIndexed, report.PagesSkipped, report.ChunksIndexed, report.ChunksFailed)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	fmt.Fprintln(out, "All done!")
	return nil
}
