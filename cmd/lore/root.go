package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kirillkom/lore-assistant/internal/bootstrap"
	"github.com/kirillkom/lore-assistant/internal/config"
	"github.com/kirillkom/lore-assistant/internal/observability/logging"
)

var flagLogLevel string

var rootCmd = &cobra.Command{
	Use:          "lore",
	Short:        "Question answering over the S.T.A.L.K.E.R. wiki",
	SilenceUsage: true,
	Long: `lore indexes wiki page batches into a vector store and answers
questions about the game world from the retrieved passages.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")
}

// Execute runs the command tree with a context cancelled on SIGINT or SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadApp reads configuration and wires the shared components. Callers must
// Close the returned app.
func loadApp(ctx context.Context) (*bootstrap.App, *slog.Logger, error) {
	cfg := config.Load()
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	logger := logging.NewJSONLogger("lore", cfg.LogLevel)

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: %w", err)
	}
	return app, logger, nil
}
