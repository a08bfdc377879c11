package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	httpadapter "github.com/kirillkom/lore-assistant/internal/adapters/http"
	"github.com/kirillkom/lore-assistant/internal/observability/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve search and answers over HTTP on API_PORT",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	app, logger, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	answerer, err := app.NewAnswerer(ctx, app.Config.LLM)
	if err != nil {
		return err
	}

	router := httpadapter.NewRouter(app.Config, app.SearchUC, answerer,
		httpadapter.WithLogger(logger),
		httpadapter.WithReadiness(app.Ready),
		httpadapter.WithMetrics(metrics.NewHTTPServerMetrics(app.Registry, "lore-api"), metrics.Handler(app.Registry)),
	)
	server := &http.Server{
		Addr:              ":" + app.Config.APIPort,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      app.Config.LLM.Timeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api_listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
		return err
	}
	return nil
}
