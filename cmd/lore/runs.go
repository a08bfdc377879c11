package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/lore-assistant/internal/infrastructure/repository/postgres"
)

var flagRunsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent ingestion runs from the journal (INGEST_JOURNAL_DSN)",
	Args:  cobra.NoArgs,
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().IntVar(&flagRunsLimit, "limit", 10, "Number of runs to show")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	app, _, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if app.Journal == nil {
		return errors.New("ingest journal is disabled: set INGEST_JOURNAL_DSN")
	}
	runs, err := app.Journal.RecentRuns(ctx, flagRunsLimit)
	if err != nil {
		return err
	}
	printRuns(cmd.OutOrStdout(), runs)
	return nil
}

func printRuns(w io.Writer, runs []postgres.RunSummary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tSTATUS\tPAGES\tSKIPPED\tCHUNKS\tFAILED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			r.ID, r.StartedAt.Format(time.RFC3339), r.Status,
			r.Report.PagesIndexed, r.Report.PagesSkipped, r.Report.ChunksIndexed, r.Report.ChunksFailed)
	}
	_ = tw.Flush()
}
